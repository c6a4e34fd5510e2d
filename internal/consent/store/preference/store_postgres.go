package preference

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"consentd/internal/consent/models"
)

// PostgresStore maintains consent_preferences over database/sql. Rows are
// written in one statement per (visitor, widget, consent) batch.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type batchKey struct {
	visitorID string
	widgetID  string
	consentID string
	at        time.Time
}

type batch struct {
	activityIDs []string
	statuses    []string
}

func (s *PostgresStore) Upsert(ctx context.Context, rows []models.PreferenceRow) error {
	if len(rows) == 0 {
		return nil
	}

	batches := make(map[batchKey]*batch)
	var order []batchKey
	for _, row := range rows {
		k := batchKey{row.VisitorID, row.WidgetID, row.ConsentID, row.UpdatedAt}
		b, ok := batches[k]
		if !ok {
			b = &batch{}
			batches[k] = b
			order = append(order, k)
		}
		b.activityIDs = append(b.activityIDs, row.ActivityID)
		b.statuses = append(b.statuses, string(row.Status))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin preference upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, k := range order {
		b := batches[k]
		_, err := tx.ExecContext(ctx, `
			INSERT INTO consent_preferences (visitor_id, widget_id, activity_id, status, consent_id, updated_at)
			SELECT $1, $2, a.activity_id, a.status, $3, $4
			FROM unnest($5::text[], $6::text[]) AS a(activity_id, status)
			ON CONFLICT (visitor_id, widget_id, activity_id) DO UPDATE SET
				status = EXCLUDED.status,
				consent_id = EXCLUDED.consent_id,
				updated_at = EXCLUDED.updated_at
			WHERE consent_preferences.updated_at <= EXCLUDED.updated_at
		`, k.visitorID, k.widgetID, k.consentID, k.at, pq.Array(b.activityIDs), pq.Array(b.statuses))
		if err != nil {
			return fmt.Errorf("upsert preferences: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit preference upsert: %w", err)
	}
	return nil
}

func (s *PostgresStore) WithdrawAll(ctx context.Context, visitorID, widgetID, consentID string, at time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE consent_preferences
		SET status = 'withdrawn', consent_id = $3, updated_at = $4
		WHERE visitor_id = $1 AND widget_id = $2 AND status <> 'withdrawn'
	`, visitorID, widgetID, consentID, at)
	if err != nil {
		return 0, fmt.Errorf("withdraw preferences: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("withdraw preferences: %w", err)
	}
	return int(n), nil
}

func (s *PostgresStore) ListByVisitor(ctx context.Context, visitorID, widgetID string) ([]models.PreferenceRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT visitor_id, widget_id, activity_id, status, consent_id, updated_at
		FROM consent_preferences
		WHERE visitor_id = $1 AND widget_id = $2
		ORDER BY activity_id
	`, visitorID, widgetID)
	if err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}
	defer rows.Close()

	var out []models.PreferenceRow
	for rows.Next() {
		var (
			row    models.PreferenceRow
			status string
		)
		if err := rows.Scan(&row.VisitorID, &row.WidgetID, &row.ActivityID, &status, &row.ConsentID, &row.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan preference: %w", err)
		}
		row.Status = models.PreferenceStatus(status)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}
	return out, nil
}
