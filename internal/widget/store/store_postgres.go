package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"consentd/internal/widget/models"
	"consentd/pkg/platform/sentinel"
)

// PostgresStore reads widget configuration from the widgets table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Save upserts a widget configuration. Used by seeding and tests; widget
// management itself lives outside this service.
func (s *PostgresStore) Save(ctx context.Context, w *models.Widget) error {
	activities, err := json.Marshal(w.Activities)
	if err != nil {
		return fmt.Errorf("marshal activities: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO widgets (id, user_id, is_active, consent_duration_default, domain, notice_version, activities, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			is_active = EXCLUDED.is_active,
			consent_duration_default = EXCLUDED.consent_duration_default,
			domain = EXCLUDED.domain,
			notice_version = EXCLUDED.notice_version,
			activities = EXCLUDED.activities,
			updated_at = now()
	`, w.ID, w.UserID, w.IsActive, w.ConsentDurationDefault, w.Domain, w.NoticeVersion, activities)
	if err != nil {
		return fmt.Errorf("upsert widget: %w", err)
	}
	return nil
}

// FindByID returns the widget or sentinel.ErrNotFound.
func (s *PostgresStore) FindByID(ctx context.Context, widgetID string) (*models.Widget, error) {
	var (
		w          models.Widget
		activities []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, is_active, consent_duration_default, domain, notice_version, activities, created_at, updated_at
		FROM widgets WHERE id = $1
	`, widgetID).Scan(&w.ID, &w.UserID, &w.IsActive, &w.ConsentDurationDefault, &w.Domain,
		&w.NoticeVersion, &activities, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("widget %s: %w", widgetID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find widget: %w", err)
	}
	if len(activities) > 0 {
		if err := json.Unmarshal(activities, &w.Activities); err != nil {
			return nil, fmt.Errorf("unmarshal activities: %w", err)
		}
	}
	return &w, nil
}
