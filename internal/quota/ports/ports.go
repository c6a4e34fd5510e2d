// Package ports defines the collaborators the quota service depends on.
package ports

import (
	"context"
	"time"

	"consentd/internal/quota/models"
	"consentd/pkg/platform/audit"
)

// EntitlementStore returns a tenant's entitlement, or an error wrapping
// sentinel.ErrNotFound when the tenant has none on file.
type EntitlementStore interface {
	GetEntitlements(ctx context.Context, tenantID string) (*models.Entitlement, error)
}

// UsageCounter counts consent records a tenant created at or after since.
type UsageCounter interface {
	CountSince(ctx context.Context, tenantID string, since time.Time) (int, error)
}

type AuditPublisher = audit.Publisher
