package bucket

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"consentd/internal/ratelimit/models"
)

const (
	testLimit  = 10
	testWindow = time.Minute
)

type InMemoryBucketStoreSuite struct {
	suite.Suite
	store *InMemoryBucketStore
	ctx   context.Context
	clock time.Time
}

func TestInMemoryBucketStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryBucketStoreSuite))
}

func (s *InMemoryBucketStoreSuite) SetupTest() {
	s.store = NewInMemoryBucketStore()
	s.clock = time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)
	s.store.now = func() time.Time { return s.clock }
	s.ctx = context.Background()
}

func (s *InMemoryBucketStoreSuite) key(ip string) string {
	return models.NewRateLimitKey(models.KeyPrefixIP, ip, "consent-record").String()
}

func (s *InMemoryBucketStoreSuite) fill(key string) {
	for range testLimit {
		res, err := s.store.Allow(s.ctx, key, testLimit, testWindow)
		s.Require().NoError(err)
		s.Require().True(res.Allowed)
	}
}

func (s *InMemoryBucketStoreSuite) TestFirstHit() {
	res, err := s.store.Allow(s.ctx, s.key("203.0.113.7"), testLimit, testWindow)
	s.Require().NoError(err)
	s.True(res.Allowed)
	s.Equal(testLimit, res.Limit)
	s.Equal(testLimit-1, res.Remaining)
	s.Equal(s.clock.Add(testWindow), res.ResetAt)
	s.Zero(res.RetryAfter)
}

func (s *InMemoryBucketStoreSuite) TestDeniedAfterLimit() {
	key := s.key("203.0.113.7")
	s.fill(key)

	s.clock = s.clock.Add(20 * time.Second)
	res, err := s.store.Allow(s.ctx, key, testLimit, testWindow)
	s.Require().NoError(err)
	s.False(res.Allowed)
	s.Equal(0, res.Remaining)
	s.Equal(40, res.RetryAfter)

	// denied hits are not recorded
	s.Equal(testLimit, s.store.count(key, testWindow))
}

func (s *InMemoryBucketStoreSuite) TestWindowSlides() {
	key := s.key("203.0.113.7")
	s.fill(key)

	s.clock = s.clock.Add(testWindow)
	res, err := s.store.Allow(s.ctx, key, testLimit, testWindow)
	s.Require().NoError(err)
	s.True(res.Allowed)
	s.Equal(testLimit-1, res.Remaining)
	s.Equal(1, s.store.count(key, testWindow))
}

func (s *InMemoryBucketStoreSuite) TestKeysAreIndependent() {
	s.fill(s.key("203.0.113.7"))

	res, err := s.store.Allow(s.ctx, s.key("198.51.100.9"), testLimit, testWindow)
	s.Require().NoError(err)
	s.True(res.Allowed)
}

func (s *InMemoryBucketStoreSuite) TestReset() {
	key := s.key("203.0.113.7")
	s.fill(key)
	s.Require().NoError(s.store.Reset(s.ctx, key))

	res, err := s.store.Allow(s.ctx, key, testLimit, testWindow)
	s.Require().NoError(err)
	s.True(res.Allowed)
	s.Equal(testLimit-1, res.Remaining)
}

func (s *InMemoryBucketStoreSuite) TestSweepDropsIdleKeys() {
	_, err := s.store.Allow(s.ctx, s.key("203.0.113.7"), testLimit, testWindow)
	s.Require().NoError(err)

	s.clock = s.clock.Add(2 * testWindow)
	for i := 1; i < sweepEvery; i++ {
		_, err := s.store.Allow(s.ctx, s.key("198.51.100.9"), sweepEvery, testWindow)
		s.Require().NoError(err)
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	s.NotContains(s.store.windows, s.key("203.0.113.7"))
	s.Contains(s.store.windows, s.key("198.51.100.9"))
}

func (s *InMemoryBucketStoreSuite) TestConcurrent() {
	limit := 100
	key := s.key("203.0.113.7")
	var (
		wg      sync.WaitGroup
		allowed atomic.Int32
	)
	for range 200 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.store.Allow(s.ctx, key, limit, testWindow)
			if err == nil && res.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	s.Equal(int32(limit), allowed.Load())
}
