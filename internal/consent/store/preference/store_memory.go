// Package preference holds the per-activity preference projection derived
// from consent records. The projection is best-effort and never authoritative.
package preference

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"consentd/internal/consent/models"
)

type key struct {
	visitorID  string
	widgetID   string
	activityID string
}

type InMemoryStore struct {
	mu   sync.RWMutex
	rows map[key]models.PreferenceRow
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{rows: make(map[key]models.PreferenceRow)}
}

// Upsert writes each row, skipping rows older than what is already stored.
func (s *InMemoryStore) Upsert(_ context.Context, rows []models.PreferenceRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range rows {
		k := key{row.VisitorID, row.WidgetID, row.ActivityID}
		if existing, ok := s.rows[k]; ok && existing.UpdatedAt.After(row.UpdatedAt) {
			continue
		}
		s.rows[k] = row
	}
	return nil
}

// WithdrawAll marks every row of the visitor for the widget as withdrawn and
// returns how many rows changed.
func (s *InMemoryStore) WithdrawAll(_ context.Context, visitorID, widgetID, consentID string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k, row := range s.rows {
		if k.visitorID != visitorID || k.widgetID != widgetID || row.Status == models.PreferenceWithdrawn {
			continue
		}
		row.Status = models.PreferenceWithdrawn
		row.ConsentID = consentID
		row.UpdatedAt = at
		s.rows[k] = row
		n++
	}
	return n, nil
}

// ListByVisitor returns the visitor's rows for the widget ordered by activity id.
func (s *InMemoryStore) ListByVisitor(_ context.Context, visitorID, widgetID string) ([]models.PreferenceRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.PreferenceRow
	for k, row := range s.rows {
		if k.visitorID == visitorID && k.widgetID == widgetID {
			out = append(out, row)
		}
	}
	slices.SortFunc(out, func(a, b models.PreferenceRow) int {
		return strings.Compare(a.ActivityID, b.ActivityID)
	})
	return out, nil
}
