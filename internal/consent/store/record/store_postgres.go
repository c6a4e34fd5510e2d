package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"consentd/internal/consent/models"
	"consentd/pkg/platform/sentinel"
)

const (
	pgCheckViolation  = "23514"
	pgUniqueViolation = "23505"
)

const recordColumns = `id, consent_id, widget_id, tenant_id, visitor_id, visitor_email, visitor_email_hash,
	status, consented_activities, rejected_activities, consent_details,
	given_at, updated_at, expires_at, revoked_at, revocation_reason, notice_version`

// PostgresStore persists consent records in the consent_records table. The
// table's CHECK constraints are the last line for the record invariants.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Create(ctx context.Context, rec *models.ConsentRecord) error {
	details, err := json.Marshal(rec.Details)
	if err != nil {
		return fmt.Errorf("marshal consent details: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO consent_records (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`,
		rec.ID, rec.ConsentID, rec.WidgetID, rec.TenantID, rec.VisitorID, rec.VisitorEmail, rec.VisitorEmailHash,
		string(rec.Status), nonNil(rec.ConsentedActivities), nonNil(rec.RejectedActivities), details,
		rec.GivenAt, rec.UpdatedAt, rec.ExpiresAt, rec.RevokedAt, rec.RevocationReason, rec.NoticeVersion,
	)
	if err != nil {
		return translate("create consent record", err)
	}
	return nil
}

// Update overwrites the mutable columns. Identity columns (consent id, widget,
// tenant, visitor, givenAt, notice version) are never rewritten.
func (s *PostgresStore) Update(ctx context.Context, rec *models.ConsentRecord) error {
	details, err := json.Marshal(rec.Details)
	if err != nil {
		return fmt.Errorf("marshal consent details: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE consent_records SET
			status = $2,
			consented_activities = $3,
			rejected_activities = $4,
			consent_details = $5,
			visitor_email = $6,
			visitor_email_hash = $7,
			updated_at = $8,
			expires_at = $9,
			revoked_at = $10,
			revocation_reason = $11
		WHERE id = $1
	`,
		rec.ID, string(rec.Status), nonNil(rec.ConsentedActivities), nonNil(rec.RejectedActivities), details,
		rec.VisitorEmail, rec.VisitorEmailHash, rec.UpdatedAt, rec.ExpiresAt, rec.RevokedAt, rec.RevocationReason,
	)
	if err != nil {
		return translate("update consent record", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("record %s: %w", rec.ID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) FindLatestByEmailHash(ctx context.Context, widgetID, emailHash string) (*models.ConsentRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+recordColumns+`
		FROM consent_records
		WHERE widget_id = $1 AND visitor_email_hash = $2
		ORDER BY updated_at DESC
		LIMIT 1
	`, widgetID, emailHash)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("record for email hash: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find by email hash: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) ListByVisitor(ctx context.Context, widgetID, visitorID string, limit int) ([]*models.ConsentRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM consent_records
		WHERE widget_id = $1 AND visitor_id = $2
		ORDER BY updated_at DESC`
	args := []any{widgetID, visitorID}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list by visitor: %w", err)
	}
	defer rows.Close()

	var out []*models.ConsentRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan consent record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list by visitor: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) FindByConsentID(ctx context.Context, consentID string) (*models.ConsentRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM consent_records WHERE consent_id = $1`, consentID)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("consent %s: %w", consentID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find by consent id: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) CountSince(ctx context.Context, tenantID string, since time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM consent_records WHERE tenant_id = $1 AND given_at >= $2
	`, tenantID, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count consent records: %w", err)
	}
	return n, nil
}

func scanRecord(row pgx.Row) (*models.ConsentRecord, error) {
	var (
		rec     models.ConsentRecord
		status  string
		details []byte
	)
	err := row.Scan(
		&rec.ID, &rec.ConsentID, &rec.WidgetID, &rec.TenantID, &rec.VisitorID, &rec.VisitorEmail, &rec.VisitorEmailHash,
		&status, &rec.ConsentedActivities, &rec.RejectedActivities, &details,
		&rec.GivenAt, &rec.UpdatedAt, &rec.ExpiresAt, &rec.RevokedAt, &rec.RevocationReason, &rec.NoticeVersion,
	)
	if err != nil {
		return nil, err
	}
	rec.Status = models.ConsentStatus(status)
	if len(details) > 0 {
		if err := json.Unmarshal(details, &rec.Details); err != nil {
			return nil, fmt.Errorf("unmarshal consent details: %w", err)
		}
	}
	return &rec, nil
}

// translate maps integrity violations onto sentinels so the service can tell
// a rejected write from an outage.
func translate(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgCheckViolation:
			return fmt.Errorf("%s: %s: %w", op, pgErr.ConstraintName, sentinel.ErrConstraint)
		case pgUniqueViolation:
			return fmt.Errorf("%s: %s: %w", op, pgErr.ConstraintName, sentinel.ErrConflict)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
