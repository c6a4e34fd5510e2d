// Package record persists consent records, the system of record for every
// consent event.
package record

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"consentd/internal/consent/models"
	"consentd/pkg/platform/sentinel"
)

// InMemoryStore holds records keyed by row id. It enforces the same integrity
// rules as the consent_records CHECK constraints.
type InMemoryStore struct {
	mu          sync.RWMutex
	records     map[string]*models.ConsentRecord
	byConsentID map[string]string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records:     make(map[string]*models.ConsentRecord),
		byConsentID: make(map[string]string),
	}
}

func (s *InMemoryStore) Create(_ context.Context, rec *models.ConsentRecord) error {
	if err := rec.CheckIntegrity(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.ID]; exists {
		return fmt.Errorf("record %s: %w", rec.ID, sentinel.ErrConflict)
	}
	if _, exists := s.byConsentID[rec.ConsentID]; exists {
		return fmt.Errorf("consent id %s: %w", rec.ConsentID, sentinel.ErrConflict)
	}
	s.records[rec.ID] = cloneRecord(rec)
	s.byConsentID[rec.ConsentID] = rec.ID
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, rec *models.ConsentRecord) error {
	if err := rec.CheckIntegrity(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.records[rec.ID]
	if !ok {
		return fmt.Errorf("record %s: %w", rec.ID, sentinel.ErrNotFound)
	}
	if existing.ConsentID != rec.ConsentID {
		return fmt.Errorf("%w: consent id is immutable", sentinel.ErrConstraint)
	}
	s.records[rec.ID] = cloneRecord(rec)
	return nil
}

// FindLatestByEmailHash returns the most recently updated record for the
// widget and email hash.
func (s *InMemoryStore) FindLatestByEmailHash(_ context.Context, widgetID, emailHash string) (*models.ConsentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.ConsentRecord
	for _, rec := range s.records {
		if rec.WidgetID != widgetID || rec.VisitorEmailHash == nil || *rec.VisitorEmailHash != emailHash {
			continue
		}
		if latest == nil || rec.UpdatedAt.After(latest.UpdatedAt) {
			latest = rec
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("record for email hash: %w", sentinel.ErrNotFound)
	}
	return cloneRecord(latest), nil
}

// ListByVisitor returns the visitor's records for the widget, most recently
// updated first. A non-positive limit returns all of them.
func (s *InMemoryStore) ListByVisitor(_ context.Context, widgetID, visitorID string, limit int) ([]*models.ConsentRecord, error) {
	s.mu.RLock()
	var out []*models.ConsentRecord
	for _, rec := range s.records {
		if rec.WidgetID == widgetID && rec.VisitorID == visitorID {
			out = append(out, cloneRecord(rec))
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *models.ConsentRecord) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) FindByConsentID(_ context.Context, consentID string) (*models.ConsentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byConsentID[consentID]
	if !ok {
		return nil, fmt.Errorf("consent %s: %w", consentID, sentinel.ErrNotFound)
	}
	return cloneRecord(s.records[id]), nil
}

// CountSince counts records the tenant created at or after since.
func (s *InMemoryStore) CountSince(_ context.Context, tenantID string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, rec := range s.records {
		if rec.TenantID == tenantID && !rec.GivenAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func cloneRecord(rec *models.ConsentRecord) *models.ConsentRecord {
	c := *rec
	c.ConsentedActivities = slices.Clone(rec.ConsentedActivities)
	c.RejectedActivities = slices.Clone(rec.RejectedActivities)
	c.VisitorEmail = clonePtr(rec.VisitorEmail)
	c.VisitorEmailHash = clonePtr(rec.VisitorEmailHash)
	c.RevokedAt = clonePtr(rec.RevokedAt)
	c.RevocationReason = clonePtr(rec.RevocationReason)
	c.Details.AcceptedPurposes = clonePurposes(rec.Details.AcceptedPurposes)
	c.Details.RejectedPurposes = clonePurposes(rec.Details.RejectedPurposes)
	if rec.Details.RuleContext != nil {
		rc := *rec.Details.RuleContext
		c.Details.RuleContext = &rc
	}
	if rec.Details.NoticeSnapshot != nil {
		snap := *rec.Details.NoticeSnapshot
		snap.ActivityIDs = slices.Clone(snap.ActivityIDs)
		c.Details.NoticeSnapshot = &snap
	}
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func clonePurposes(m map[string][]string) map[string][]string {
	if m == nil {
		return nil
	}
	out := make(map[string][]string, len(m))
	for k, v := range m {
		out[k] = slices.Clone(v)
	}
	return out
}
