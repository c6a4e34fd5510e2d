//go:build integration

package record_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"consentd/internal/consent/models"
	"consentd/internal/consent/store/record"
	"consentd/pkg/platform/sentinel"
	"consentd/pkg/testutil/containers"
)

const (
	actA = "11111111-1111-4111-8111-111111111111"
	actB = "22222222-2222-4222-8222-222222222222"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *record.PostgresStore
	now      time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = record.NewPostgres(s.postgres.Pool)
	s.now = time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "consent_records")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) newRecord(consentID string, at time.Time) *models.ConsentRecord {
	return &models.ConsentRecord{
		ID:                  uuid.NewString(),
		ConsentID:           consentID,
		WidgetID:            "w1",
		TenantID:            "t1",
		VisitorID:           "v1",
		Status:              models.StatusPartial,
		ConsentedActivities: []string{actA},
		RejectedActivities:  []string{actB},
		Details: models.ConsentDetails{
			NoticeSnapshot: &models.NoticeSnapshot{
				NoticeVersion: "v3",
				Metadata:      models.SnapshotMetadata{NormalizedURL: "https://shop.example/checkout"},
				GeneratedAt:   at,
			},
			Device: models.DeviceInfo{DeviceType: models.DeviceDesktop, Browser: "Firefox", OS: "Linux"},
		},
		GivenAt:       at,
		UpdatedAt:     at,
		ExpiresAt:     at.AddDate(1, 0, 0),
		NoticeVersion: "v3",
	}
}

func (s *PostgresStoreSuite) TestCreateAndRead() {
	ctx := context.Background()
	rec := s.newRecord("c1", s.now)
	s.Require().NoError(s.store.Create(ctx, rec))

	found, err := s.store.FindByConsentID(ctx, "c1")
	s.Require().NoError(err)
	s.Equal(rec.ID, found.ID)
	s.Equal(models.StatusPartial, found.Status)
	s.Equal([]string{actA}, found.ConsentedActivities)
	s.Equal("https://shop.example/checkout", found.NormalizedPageURL())
	s.True(rec.ExpiresAt.Equal(found.ExpiresAt))

	s.ErrorIs(s.store.Create(ctx, s.newRecord("c1", s.now)), sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestCheckConstraintsMapToConstraintError() {
	ctx := context.Background()

	overlapping := s.newRecord("c-overlap", s.now)
	overlapping.RejectedActivities = []string{actA}
	s.ErrorIs(s.store.Create(ctx, overlapping), sentinel.ErrConstraint)

	emptyAccepted := s.newRecord("c-empty", s.now)
	emptyAccepted.Status = models.StatusAccepted
	emptyAccepted.ConsentedActivities = nil
	emptyAccepted.RejectedActivities = nil
	s.ErrorIs(s.store.Create(ctx, emptyAccepted), sentinel.ErrConstraint)

	badExpiry := s.newRecord("c-expiry", s.now)
	badExpiry.ExpiresAt = s.now
	s.ErrorIs(s.store.Create(ctx, badExpiry), sentinel.ErrConstraint)
}

func (s *PostgresStoreSuite) TestUpdate() {
	ctx := context.Background()
	rec := s.newRecord("c1", s.now)
	s.Require().NoError(s.store.Create(ctx, rec))

	revokedAt := s.now.Add(time.Hour)
	reason := models.DefaultRevocationReason
	rec.Status = models.StatusRevoked
	rec.UpdatedAt = revokedAt
	rec.RevokedAt = &revokedAt
	rec.RevocationReason = &reason
	s.Require().NoError(s.store.Update(ctx, rec))

	found, err := s.store.FindByConsentID(ctx, "c1")
	s.Require().NoError(err)
	s.Equal(models.StatusRevoked, found.Status)
	s.Require().NotNil(found.RevocationReason)
	s.Equal(reason, *found.RevocationReason)

	missing := s.newRecord("c2", s.now)
	s.ErrorIs(s.store.Update(ctx, missing), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestLookups() {
	ctx := context.Background()
	hash := "0123456789abcdef"
	first := s.newRecord("c1", s.now)
	first.VisitorEmailHash = &hash
	second := s.newRecord("c2", s.now.Add(time.Minute))
	second.VisitorEmailHash = &hash
	s.Require().NoError(s.store.Create(ctx, first))
	s.Require().NoError(s.store.Create(ctx, second))

	latest, err := s.store.FindLatestByEmailHash(ctx, "w1", hash)
	s.Require().NoError(err)
	s.Equal("c2", latest.ConsentID)

	_, err = s.store.FindLatestByEmailHash(ctx, "w1", "nope")
	s.ErrorIs(err, sentinel.ErrNotFound)

	list, err := s.store.ListByVisitor(ctx, "w1", "v1", 10)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal("c2", list[0].ConsentID)

	n, err := s.store.CountSince(ctx, "t1", s.now)
	s.Require().NoError(err)
	s.Equal(2, n)
	n, err = s.store.CountSince(ctx, "t1", s.now.Add(30*time.Second))
	s.Require().NoError(err)
	s.Equal(1, n)
}
