// Package ports defines the interfaces the rate limiter consumes.
package ports

import (
	"context"
	"time"

	"consentd/internal/ratelimit/models"
	"consentd/pkg/platform/audit"
)

// BucketStore manages sliding window rate limit counters.
type BucketStore interface {
	// Allow checks if a single request is allowed and consumes one slot if so.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)

	// Reset clears the rate limit counter for a key.
	Reset(ctx context.Context, key string) error
}

type AuditPublisher = audit.Publisher
