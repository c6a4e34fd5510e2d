package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"consentd/internal/quota/models"
	"consentd/pkg/platform/sentinel"
)

// PostgresStore reads tenant entitlements. Plan management is owned by billing;
// this service only reads, plus Save for seeding.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) GetEntitlements(ctx context.Context, tenantID string) (*models.Entitlement, error) {
	var (
		ent  models.Entitlement
		plan string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT tenant_id, plan, monthly_consent_limit, updated_at
		FROM tenant_entitlements
		WHERE tenant_id = $1
	`, tenantID).Scan(&ent.TenantID, &plan, &ent.MonthlyConsentLimit, &ent.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("entitlements for tenant %s: %w", tenantID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get entitlements: %w", err)
	}
	ent.Plan = models.Plan(plan)
	return &ent, nil
}

func (s *PostgresStore) Save(ctx context.Context, ent *models.Entitlement) error {
	if ent == nil || ent.TenantID == "" {
		return fmt.Errorf("entitlement tenant id is required: %w", sentinel.ErrConstraint)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tenant_entitlements (tenant_id, plan, monthly_consent_limit, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (tenant_id) DO UPDATE SET
			plan = EXCLUDED.plan,
			monthly_consent_limit = EXCLUDED.monthly_consent_limit,
			updated_at = now()
	`, ent.TenantID, string(ent.Plan), ent.MonthlyConsentLimit)
	if err != nil {
		return fmt.Errorf("upsert entitlements: %w", err)
	}
	return nil
}
