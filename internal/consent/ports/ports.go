// Package ports defines the collaborators the consent engine consumes.
package ports

import (
	"context"
	"time"

	"consentd/internal/consent/device"
	"consentd/internal/consent/matcher"
	"consentd/internal/consent/models"
	quotaModels "consentd/internal/quota/models"
	widgetModels "consentd/internal/widget/models"
	"consentd/pkg/platform/audit"
)

// WidgetStore returns widget configuration or an error wrapping sentinel.ErrNotFound.
type WidgetStore interface {
	FindByID(ctx context.Context, widgetID string) (*widgetModels.Widget, error)
}

// RecordStore is the system of record. Writes return errors wrapping
// sentinel.ErrConstraint when an integrity rule rejects them.
type RecordStore interface {
	matcher.RecordFinder
	Create(ctx context.Context, rec *models.ConsentRecord) error
	Update(ctx context.Context, rec *models.ConsentRecord) error
}

// PreferenceStore maintains the derived per-activity projection.
type PreferenceStore interface {
	Upsert(ctx context.Context, rows []models.PreferenceRow) error
	WithdrawAll(ctx context.Context, visitorID, widgetID, consentID string, at time.Time) (int, error)
}

// QuotaAdmitter refuses new records once a tenant's monthly allowance is spent.
type QuotaAdmitter interface {
	Admit(ctx context.Context, tenantID, widgetID string) (*quotaModels.Decision, error)
}

type DeviceClassifier interface {
	Classify(in device.Input) models.DeviceInfo
}

type NoticeBuilder interface {
	Build(ctx context.Context, widget *widgetModels.Widget, page models.PageMetadata, pageURL string, now time.Time) (*models.NoticeSnapshot, error)
}

type EmailHasher interface {
	Hash(email string) string
}

type EmailVerifier interface {
	Verified(email, proof string, now time.Time) bool
}

type ConsentIDGenerator interface {
	Verified(widgetID, emailHash string, now time.Time) string
	Anonymous(widgetID, visitorID string, now time.Time) (string, error)
}

type Matcher interface {
	Resolve(ctx context.Context, in matcher.Input) matcher.Verdict
}

type AuditPublisher = audit.Publisher
