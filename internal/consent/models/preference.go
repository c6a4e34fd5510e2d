package models

import "time"

// PreferenceStatus is the per-activity status held in the preference projection.
type PreferenceStatus string

const (
	PreferenceAccepted  PreferenceStatus = "accepted"
	PreferenceRejected  PreferenceStatus = "rejected"
	PreferenceWithdrawn PreferenceStatus = "withdrawn"
)

// PreferenceRow is one (visitor, widget, activity) entry of the preference
// projection. The projection is derived and never authoritative.
type PreferenceRow struct {
	VisitorID  string           `json:"visitorId"`
	WidgetID   string           `json:"widgetId"`
	ActivityID string           `json:"activityId"`
	Status     PreferenceStatus `json:"status"`
	ConsentID  string           `json:"consentId"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}

// PreferenceRowsFor builds the projection rows mirroring a written record for
// the visitor that submitted it. A record matched by email may have been
// created under another visitor id. Revoked records produce no rows; callers
// withdraw instead.
func PreferenceRowsFor(rec *ConsentRecord, visitorID string) []PreferenceRow {
	if rec.Status == StatusRevoked {
		return nil
	}
	rows := make([]PreferenceRow, 0, len(rec.ConsentedActivities)+len(rec.RejectedActivities))
	for _, id := range rec.ConsentedActivities {
		rows = append(rows, PreferenceRow{
			VisitorID: visitorID, WidgetID: rec.WidgetID, ActivityID: id,
			Status: PreferenceAccepted, ConsentID: rec.ConsentID, UpdatedAt: rec.UpdatedAt,
		})
	}
	for _, id := range rec.RejectedActivities {
		rows = append(rows, PreferenceRow{
			VisitorID: visitorID, WidgetID: rec.WidgetID, ActivityID: id,
			Status: PreferenceRejected, ConsentID: rec.ConsentID, UpdatedAt: rec.UpdatedAt,
		})
	}
	return rows
}
