//go:build integration

package preference_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"consentd/internal/consent/models"
	"consentd/internal/consent/store/preference"
	"consentd/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *preference.PostgresStore
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
	s.store = preference.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "consent_preferences")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestUpsertAndWithdraw() {
	ctx := context.Background()
	t0 := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

	rec := &models.ConsentRecord{
		ConsentID: "c1", WidgetID: "w1", VisitorID: "v1",
		Status:              models.StatusPartial,
		ConsentedActivities: []string{"a"},
		RejectedActivities:  []string{"b"},
		UpdatedAt:           t0,
	}
	s.Require().NoError(s.store.Upsert(ctx, models.PreferenceRowsFor(rec, "v1")))

	rows, err := s.store.ListByVisitor(ctx, "v1", "w1")
	s.Require().NoError(err)
	s.Require().Len(rows, 2)
	s.Equal(models.PreferenceAccepted, rows[0].Status)
	s.Equal(models.PreferenceRejected, rows[1].Status)

	s.Run("stale batch does not overwrite newer rows", func() {
		stale := []models.PreferenceRow{{
			VisitorID: "v1", WidgetID: "w1", ActivityID: "a",
			Status: models.PreferenceRejected, ConsentID: "c0", UpdatedAt: t0.Add(-time.Hour),
		}}
		s.Require().NoError(s.store.Upsert(ctx, stale))

		rows, err := s.store.ListByVisitor(ctx, "v1", "w1")
		s.Require().NoError(err)
		s.Equal(models.PreferenceAccepted, rows[0].Status)
	})

	s.Run("withdraw all", func() {
		n, err := s.store.WithdrawAll(ctx, "v1", "w1", "c2", t0.Add(time.Hour))
		s.Require().NoError(err)
		s.Equal(2, n)

		rows, err := s.store.ListByVisitor(ctx, "v1", "w1")
		s.Require().NoError(err)
		for _, r := range rows {
			s.Equal(models.PreferenceWithdrawn, r.Status)
			s.Equal("c2", r.ConsentID)
		}
	})
}
