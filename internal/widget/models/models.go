package models

import (
	"time"

	consentModel "consentd/internal/consent/models"
)

// Purpose is a processing purpose declared under an activity.
type Purpose struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Activity is a data-processing activity a visitor can accept or reject.
type Activity struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	Purposes       []Purpose `json:"purposes,omitempty"`
	DataCategories []string  `json:"dataCategories,omitempty"`
}

// Widget is the read-only widget configuration owned by a tenant.
//
// Invariants:
//   - UserID identifies the owning tenant and drives quota admission
//   - only active widgets accept submissions
type Widget struct {
	ID                     string     `json:"id"`
	UserID                 string     `json:"userId"`
	IsActive               bool       `json:"isActive"`
	ConsentDurationDefault int        `json:"consentDurationDefault"`
	Domain                 string     `json:"domain"`
	NoticeVersion          string     `json:"noticeVersion"`
	Activities             []Activity `json:"activities"`
	CreatedAt              time.Time  `json:"createdAt"`
	UpdatedAt              time.Time  `json:"updatedAt"`
}

// ActivityIDs returns the configured activity ids in declaration order.
func (w *Widget) ActivityIDs() []string {
	ids := make([]string, 0, len(w.Activities))
	for _, a := range w.Activities {
		ids = append(ids, a.ID)
	}
	return ids
}

// ConsentDuration resolves the record lifetime in days. A positive override
// wins; otherwise the widget default is clamped into the allowed range, and a
// missing default falls back to fallback.
func (w *Widget) ConsentDuration(override, fallback int) int {
	if override > 0 {
		return override
	}
	d := w.ConsentDurationDefault
	if d <= 0 {
		d = fallback
	}
	if d <= 0 {
		d = consentModel.DefaultConsentDuration
	}
	return min(max(d, consentModel.MinConsentDuration), consentModel.MaxConsentDuration)
}
