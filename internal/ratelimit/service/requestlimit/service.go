package requestlimit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"consentd/internal/ratelimit/metrics"
	"consentd/internal/ratelimit/models"
	"consentd/internal/ratelimit/ports"
	dErrors "consentd/pkg/domain-errors"
	"consentd/pkg/platform/audit"
	"consentd/pkg/platform/privacy"
)

// Type aliases for interfaces from ports package.
type (
	BucketStore    = ports.BucketStore
	AuditPublisher = ports.AuditPublisher
)

const (
	DefaultRequestsPerWindow = 100
	DefaultWindow            = time.Minute
)

type Service struct {
	buckets           BucketStore
	auditPublisher    AuditPublisher
	logger            *slog.Logger
	metrics           *metrics.Metrics
	requestsPerWindow int
	window            time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLimit sets how many requests one IP may make per window.
func WithLimit(requestsPerWindow int, window time.Duration) Option {
	return func(s *Service) {
		if requestsPerWindow > 0 {
			s.requestsPerWindow = requestsPerWindow
		}
		if window > 0 {
			s.window = window
		}
	}
}

func New(buckets BucketStore, opts ...Option) (*Service, error) {
	if buckets == nil {
		return nil, errors.New("buckets store is required")
	}

	svc := &Service{
		buckets:           buckets,
		requestsPerWindow: DefaultRequestsPerWindow,
		window:            DefaultWindow,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CheckIP consumes one slot of ip's bucket for scope.
func (s *Service) CheckIP(ctx context.Context, ip, scope string) (*models.RateLimitResult, error) {
	key := models.NewRateLimitKey(models.KeyPrefixIP, ip, scope)
	result, err := s.buckets.Allow(ctx, key.String(), s.requestsPerWindow, s.window)
	if err != nil {
		s.metrics.IncrementStoreErrors()
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check rate limit")
	}
	s.metrics.ObserveCheck(result.Allowed)

	if !result.Allowed {
		prefix := privacy.AnonymizeIP(ip)
		audit.LogAudit(ctx, s.logger, s.auditPublisher, audit.Event{
			Action:   string(audit.EventRateLimitExceeded),
			ClientIP: prefix,
			Reason:   scope,
		},
			"identifier", prefix,
			"scope", scope,
			"limit", s.requestsPerWindow,
			"window_seconds", int(s.window.Seconds()),
		)
	}
	return result, nil
}
