// Package service admits or refuses new consent records against the tenant's
// monthly plan allowance.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"consentd/internal/quota/metrics"
	"consentd/internal/quota/models"
	"consentd/internal/quota/ports"
	dErrors "consentd/pkg/domain-errors"
	"consentd/pkg/platform/audit"
	"consentd/pkg/platform/sentinel"
	"consentd/pkg/requestcontext"
)

// Type aliases for shared interfaces.
type (
	EntitlementStore = ports.EntitlementStore
	UsageCounter     = ports.UsageCounter
	AuditPublisher   = ports.AuditPublisher
)

type Service struct {
	entitlements   EntitlementStore
	usage          UsageCounter
	auditPublisher AuditPublisher
	logger         *slog.Logger
	metrics        *metrics.Metrics
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

func New(entitlements EntitlementStore, usage UsageCounter, opts ...Option) (*Service, error) {
	if entitlements == nil {
		return nil, fmt.Errorf("entitlement store is required")
	}
	if usage == nil {
		return nil, fmt.Errorf("usage counter is required")
	}

	svc := &Service{
		entitlements: entitlements,
		usage:        usage,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Check reports whether the tenant may create one more consent record in the
// current billing period. It never reserves capacity.
func (s *Service) Check(ctx context.Context, tenantID string) (*models.Decision, error) {
	if tenantID == "" {
		return nil, dErrors.New(dErrors.CodeInternal, "tenant id is required for quota check")
	}

	ent, err := s.entitlements.GetEntitlements(ctx, tenantID)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		ent = models.DefaultEntitlement(tenantID)
	case err != nil:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load tenant entitlements")
	case ent == nil:
		ent = models.DefaultEntitlement(tenantID)
	}

	start, end := models.BillingPeriod(requestcontext.Now(ctx))
	decision := &models.Decision{
		Allowed:     true,
		Limit:       ent.MonthlyConsentLimit,
		Plan:        ent.Plan,
		PeriodStart: start,
		PeriodEnd:   end,
	}
	if ent.Unlimited() {
		decision.Limit = 0
		s.metrics.ObserveCheck(string(ent.Plan), true)
		return decision, nil
	}

	used, err := s.usage.CountSince(ctx, tenantID, start)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count consent usage")
	}
	decision.Used = used
	decision.Allowed = used < ent.MonthlyConsentLimit

	s.metrics.ObserveCheck(string(ent.Plan), decision.Allowed)
	return decision, nil
}

// Admit runs Check and converts a denial into a CodeQuotaExceeded error
// wrapping *models.ExceededError.
func (s *Service) Admit(ctx context.Context, tenantID, widgetID string) (*models.Decision, error) {
	decision, err := s.Check(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if decision.Allowed {
		return decision, nil
	}

	audit.LogAudit(ctx, s.logger, s.auditPublisher, audit.Event{
		Action:   string(audit.EventConsentQuotaDenied),
		TenantID: tenantID,
		WidgetID: widgetID,
		Decision: "denied",
		Reason:   "monthly_limit_reached",
	},
		"tenant_id", tenantID,
		"widget_id", widgetID,
		"used", decision.Used,
		"limit", decision.Limit,
		"plan", string(decision.Plan),
	)

	exceeded := &models.ExceededError{Used: decision.Used, Limit: decision.Limit, Plan: decision.Plan}
	return decision, dErrors.Wrap(exceeded, dErrors.CodeQuotaExceeded, "Monthly consent limit reached for this plan")
}
