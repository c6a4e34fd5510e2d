package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose so sinks can
// route and retain them differently.
type EventCategory string

const (
	// CategoryCompliance covers consent lifecycle changes. These are the events a
	// data protection authority may ask for.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers abuse signals such as rate-limit rejections.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers quota and capacity signals.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	Action    string        `json:"action"`
	TenantID  string        `json:"tenantId,omitempty"`
	WidgetID  string        `json:"widgetId,omitempty"`
	VisitorID string        `json:"visitorId,omitempty"`
	ConsentID string        `json:"consentId,omitempty"`
	// Decision is the reconciled consent status, or "denied" for admission
	// rejections.
	Decision  string `json:"decision,omitempty"`
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"requestId,omitempty"`
	// ClientIP is always the anonymized prefix, never the raw address.
	ClientIP string `json:"clientIp,omitempty"`
}

type AuditEvent string

const (
	// Consent lifecycle
	EventConsentRecorded AuditEvent = "consent_recorded"
	EventConsentUpdated  AuditEvent = "consent_updated"
	EventConsentRevoked  AuditEvent = "consent_revoked"

	// Admission
	EventConsentQuotaDenied AuditEvent = "consent_quota_denied"
	EventRateLimitExceeded  AuditEvent = "rate_limit_exceeded"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventConsentRecorded: CategoryCompliance,
	EventConsentUpdated:  CategoryCompliance,
	EventConsentRevoked:  CategoryCompliance,

	EventRateLimitExceeded: CategorySecurity,

	EventConsentQuotaDenied: CategoryOperations,
}

// Category returns the category for an audit event.
// Unknown events default to operations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists or forwards audit events. Implementations must be safe for
// concurrent use.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Publisher is the port services emit through.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}
