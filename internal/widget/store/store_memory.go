package store

import (
	"context"
	"fmt"
	"sync"

	"consentd/internal/widget/models"
	"consentd/pkg/platform/sentinel"
)

// InMemory is a thread-safe widget configuration store.
type InMemory struct {
	mu      sync.RWMutex
	widgets map[string]*models.Widget
}

func NewInMemory() *InMemory {
	return &InMemory{widgets: make(map[string]*models.Widget)}
}

// Save inserts or replaces a widget configuration.
func (s *InMemory) Save(_ context.Context, w *models.Widget) error {
	if w == nil || w.ID == "" {
		return fmt.Errorf("%w: widget id is required", sentinel.ErrConstraint)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *w
	cp.Activities = append([]models.Activity(nil), w.Activities...)
	s.widgets[w.ID] = &cp
	return nil
}

// FindByID returns the widget or sentinel.ErrNotFound.
func (s *InMemory) FindByID(_ context.Context, widgetID string) (*models.Widget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.widgets[widgetID]
	if !ok {
		return nil, fmt.Errorf("widget %s: %w", widgetID, sentinel.ErrNotFound)
	}
	cp := *w
	return &cp, nil
}
