//go:build integration

package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"consentd/internal/quota/models"
	"consentd/internal/quota/store"
	"consentd/pkg/platform/sentinel"
	"consentd/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
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
	s.store = store.NewPostgres(s.postgres.Pool)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "tenant_entitlements"))
}

func (s *PostgresStoreSuite) TestSaveAndGet() {
	ctx := context.Background()

	_, err := s.store.GetEntitlements(ctx, "t1")
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.Require().NoError(s.store.Save(ctx, &models.Entitlement{TenantID: "t1", Plan: models.PlanStarter, MonthlyConsentLimit: 10000}))
	s.Require().NoError(s.store.Save(ctx, &models.Entitlement{TenantID: "t1", Plan: models.PlanBusiness, MonthlyConsentLimit: 100000}))

	ent, err := s.store.GetEntitlements(ctx, "t1")
	s.Require().NoError(err)
	s.Equal(models.PlanBusiness, ent.Plan)
	s.Equal(100000, ent.MonthlyConsentLimit)
	s.False(ent.UpdatedAt.IsZero())
}
