package bucket

import (
	"context"
	"sync"
	"time"

	"consentd/internal/ratelimit/models"
)

// sweepEvery bounds how many Allow calls pass between evictions of idle
// windows. The public endpoint sees one key per client IP.
const sweepEvery = 1024

// InMemoryBucketStore keeps one sliding window of hit timestamps per key.
// Windows are per process; RedisBucketStore shares them between instances.
type InMemoryBucketStore struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	calls   int
	now     func() time.Time
}

func NewInMemoryBucketStore() *InMemoryBucketStore {
	return &InMemoryBucketStore{
		windows: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Allow records a hit for key unless limit hits already fall inside window.
func (s *InMemoryBucketStore) Allow(_ context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.calls++
	if s.calls%sweepEvery == 0 {
		s.sweep(now, window)
	}

	hits := prune(s.windows[key], now, window)
	if len(hits) >= limit {
		s.windows[key] = hits
		resetAt := now.Add(window)
		if len(hits) > 0 {
			resetAt = hits[0].Add(window)
		}
		return &models.RateLimitResult{
			Allowed:    false,
			Limit:      limit,
			ResetAt:    resetAt,
			RetryAfter: models.RetryAfterSeconds(now, resetAt),
		}, nil
	}

	hits = append(hits, now)
	s.windows[key] = hits
	return &models.RateLimitResult{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(hits),
		ResetAt:   hits[0].Add(window),
	}, nil
}

func (s *InMemoryBucketStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, key)
	return nil
}

// count is the number of live hits for key.
func (s *InMemoryBucketStore) count(key string, window time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(prune(s.windows[key], s.now(), window))
}

// sweep drops keys whose newest hit left the window. Caller holds s.mu.
func (s *InMemoryBucketStore) sweep(now time.Time, window time.Duration) {
	for key, hits := range s.windows {
		if len(prune(hits, now, window)) == 0 {
			delete(s.windows, key)
		}
	}
}

// prune returns hits without the timestamps at or before now-window.
func prune(hits []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	return hits[i:]
}
