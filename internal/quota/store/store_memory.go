package store

import (
	"context"
	"fmt"
	"sync"

	"consentd/internal/quota/models"
	"consentd/pkg/platform/sentinel"
)

type InMemoryEntitlementStore struct {
	mu           sync.RWMutex
	entitlements map[string]models.Entitlement
}

func NewInMemory() *InMemoryEntitlementStore {
	return &InMemoryEntitlementStore{entitlements: make(map[string]models.Entitlement)}
}

func (s *InMemoryEntitlementStore) GetEntitlements(_ context.Context, tenantID string) (*models.Entitlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ent, ok := s.entitlements[tenantID]
	if !ok {
		return nil, fmt.Errorf("entitlements for tenant %s: %w", tenantID, sentinel.ErrNotFound)
	}
	return &ent, nil
}

func (s *InMemoryEntitlementStore) Save(_ context.Context, ent *models.Entitlement) error {
	if ent == nil || ent.TenantID == "" {
		return fmt.Errorf("entitlement tenant id is required: %w", sentinel.ErrConstraint)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entitlements[ent.TenantID] = *ent
	return nil
}
