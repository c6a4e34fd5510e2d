package models

import (
	"time"
)

// KeyPrefix namespaces bucket keys by the identity being limited.
type KeyPrefix string

const (
	KeyPrefixIP KeyPrefix = "ip"
)

// RateLimitKey identifies one sliding-window bucket.
type RateLimitKey struct {
	prefix     KeyPrefix
	identifier string
	scope      string
}

// NewRateLimitKey builds a key for identifier within scope. Segments are
// sanitized so an identifier cannot spill into a neighbouring bucket.
func NewRateLimitKey(prefix KeyPrefix, identifier, scope string) RateLimitKey {
	return RateLimitKey{
		prefix:     prefix,
		identifier: SanitizeKeySegment(identifier),
		scope:      SanitizeKeySegment(scope),
	}
}

func (k RateLimitKey) String() string {
	return "ratelimit:" + string(k.prefix) + ":" + k.identifier + ":" + k.scope
}

// RateLimitResult represents the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
}

// RetryAfterSeconds rounds the wait until resetAt up to whole seconds, never
// below one.
func RetryAfterSeconds(now, resetAt time.Time) int {
	d := resetAt.Sub(now)
	secs := int((d + time.Second - 1) / time.Second)
	return max(secs, 1)
}

// RateLimitExceededResponse is the 429 body, shaped like every other error
// the consent endpoint returns.
type RateLimitExceededResponse struct {
	Success    bool   `json:"success"`
	Error      string `json:"error"`
	Code       string `json:"code"`
	RetryAfter int    `json:"retryAfter"`
}
