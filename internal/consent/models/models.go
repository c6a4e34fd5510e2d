package models

import (
	"fmt"
	"regexp"
	"time"

	dErrors "consentd/pkg/domain-errors"
	"consentd/pkg/platform/sentinel"
)

// ConsentStatus is the authoritative outcome stored on a record.
type ConsentStatus string

const (
	StatusAccepted ConsentStatus = "accepted"
	StatusRejected ConsentStatus = "rejected"
	StatusPartial  ConsentStatus = "partial"
	StatusRevoked  ConsentStatus = "revoked"
)

// ParseConsentStatus constructs a ConsentStatus from external input.
func ParseConsentStatus(s string) (ConsentStatus, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "consent status cannot be empty")
	}
	st := ConsentStatus(s)
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "consent status must be one of accepted, rejected, partial, revoked")
	}
	return st, nil
}

// IsValid checks if the status is one of the supported enum values.
func (s ConsentStatus) IsValid() bool {
	switch s {
	case StatusAccepted, StatusRejected, StatusPartial, StatusRevoked:
		return true
	}
	return false
}

func (s ConsentStatus) String() string {
	return string(s)
}

// DefaultRevocationReason is stamped when a revocation carries no reason.
const DefaultRevocationReason = "User requested revocation"

// Consent duration bounds, in days.
const (
	MinConsentDuration     = 1
	MaxConsentDuration     = 3650
	DefaultConsentDuration = 365
)

// activityIDPattern is the canonical identifier format for activities and purposes.
var activityIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// IsValidActivityID reports whether id matches the canonical identifier format.
// Purpose ids share the same format.
func IsValidActivityID(id string) bool {
	return activityIDPattern.MatchString(id)
}

// RuleContext identifies the on-page rule that triggered the banner.
type RuleContext struct {
	RuleID     string `json:"ruleId"`
	RuleName   string `json:"ruleName"`
	URLPattern string `json:"urlPattern"`
	PageURL    string `json:"pageUrl"`
}

// PageMetadata describes the page the visitor consented on.
type PageMetadata struct {
	CurrentURL string `json:"currentUrl,omitempty"`
	PageTitle  string `json:"pageTitle,omitempty"`
	Referrer   string `json:"referrer,omitempty"`
}

// DeviceType is the coarse device class derived from the user agent.
type DeviceType string

const (
	DeviceDesktop DeviceType = "Desktop"
	DeviceMobile  DeviceType = "Mobile"
	DeviceTablet  DeviceType = "Tablet"
	DeviceUnknown DeviceType = "Unknown"
)

// ParseDeviceType accepts a client-supplied device type, case-insensitively.
func ParseDeviceType(s string) (DeviceType, bool) {
	switch s {
	case "Desktop", "desktop", "DESKTOP":
		return DeviceDesktop, true
	case "Mobile", "mobile", "MOBILE":
		return DeviceMobile, true
	case "Tablet", "tablet", "TABLET":
		return DeviceTablet, true
	}
	return DeviceUnknown, false
}

// DeviceInfo is the classified device and geo metadata stored with a record.
type DeviceInfo struct {
	DeviceType DeviceType `json:"deviceType"`
	Browser    string     `json:"browser"`
	OS         string     `json:"os"`
	Language   string     `json:"language,omitempty"`
	Country    string     `json:"country,omitempty"`
	IPPrefix   string     `json:"ipPrefix,omitempty"`
	UserAgent  string     `json:"userAgent,omitempty"`
	IsBot      bool       `json:"isBot,omitempty"`
}

// SnapshotMetadata is the page context frozen alongside the notice. The
// matcher compares NormalizedURL across submissions.
type SnapshotMetadata struct {
	CurrentURL    string `json:"currentUrl,omitempty"`
	NormalizedURL string `json:"normalizedUrl,omitempty"`
	PageTitle     string `json:"pageTitle,omitempty"`
}

// NoticeSnapshot is the privacy notice exactly as shown at consent time.
type NoticeSnapshot struct {
	HTML          string           `json:"html,omitempty"`
	NoticeVersion string           `json:"noticeVersion,omitempty"`
	Domain        string           `json:"domain,omitempty"`
	ActivityIDs   []string         `json:"activityIds,omitempty"`
	Metadata      SnapshotMetadata `json:"metadata"`
	GeneratedAt   time.Time        `json:"generatedAt"`
}

// ConsentDetails is the nested payload of a record.
type ConsentDetails struct {
	RuleContext      *RuleContext        `json:"ruleContext,omitempty"`
	AcceptedPurposes map[string][]string `json:"acceptedPurposes,omitempty"`
	RejectedPurposes map[string][]string `json:"rejectedPurposes,omitempty"`
	NoticeSnapshot   *NoticeSnapshot     `json:"noticeSnapshot,omitempty"`
	Page             PageMetadata        `json:"page"`
	Device           DeviceInfo          `json:"device"`
}

// ConsentRecord is the system of record for one consent event.
//
// Invariants:
//   - ConsentedActivities and RejectedActivities are disjoint
//   - every activity id matches the canonical identifier format
//   - accepted requires consented activities, rejected requires rejected
//     activities, partial requires both; revoked has no activity requirement
//   - ExpiresAt is after GivenAt
type ConsentRecord struct {
	ID                  string         `json:"id"`
	ConsentID           string         `json:"consentId"`
	WidgetID            string         `json:"widgetId"`
	TenantID            string         `json:"tenantId"`
	VisitorID           string         `json:"visitorId"`
	VisitorEmail        *string        `json:"visitorEmail,omitempty"`
	VisitorEmailHash    *string        `json:"visitorEmailHash,omitempty"`
	Status              ConsentStatus  `json:"status"`
	ConsentedActivities []string       `json:"consentedActivities"`
	RejectedActivities  []string       `json:"rejectedActivities"`
	Details             ConsentDetails `json:"consentDetails"`
	GivenAt             time.Time      `json:"givenAt"`
	UpdatedAt           time.Time      `json:"updatedAt"`
	ExpiresAt           time.Time      `json:"expiresAt"`
	RevokedAt           *time.Time     `json:"revokedAt,omitempty"`
	RevocationReason    *string        `json:"revocationReason,omitempty"`
	NoticeVersion       string         `json:"noticeVersion"`
}

// IsActive returns true when the record is neither revoked nor expired.
func (r *ConsentRecord) IsActive(now time.Time) bool {
	if r.RevokedAt != nil {
		return false
	}
	return now.Before(r.ExpiresAt)
}

// NormalizedPageURL returns the normalized page URL frozen in the snapshot.
func (r *ConsentRecord) NormalizedPageURL() string {
	if r.Details.NoticeSnapshot == nil {
		return ""
	}
	return r.Details.NoticeSnapshot.Metadata.NormalizedURL
}

// CheckIntegrity enforces the persistence-level invariants. Stores call it
// before every write; a violation wraps sentinel.ErrConstraint.
func (r *ConsentRecord) CheckIntegrity() error {
	if r.ConsentID == "" || r.WidgetID == "" || r.VisitorID == "" {
		return fmt.Errorf("%w: consent id, widget id and visitor id are required", sentinel.ErrConstraint)
	}
	if !r.Status.IsValid() {
		return fmt.Errorf("%w: invalid status %q", sentinel.ErrConstraint, r.Status)
	}
	consented := make(map[string]struct{}, len(r.ConsentedActivities))
	for _, id := range r.ConsentedActivities {
		if !IsValidActivityID(id) {
			return fmt.Errorf("%w: malformed consented activity id", sentinel.ErrConstraint)
		}
		consented[id] = struct{}{}
	}
	for _, id := range r.RejectedActivities {
		if !IsValidActivityID(id) {
			return fmt.Errorf("%w: malformed rejected activity id", sentinel.ErrConstraint)
		}
		if _, dup := consented[id]; dup {
			return fmt.Errorf("%w: activity %s both consented and rejected", sentinel.ErrConstraint, id)
		}
	}

	hasConsented := len(r.ConsentedActivities) > 0
	hasRejected := len(r.RejectedActivities) > 0
	switch r.Status {
	case StatusAccepted:
		if !hasConsented {
			return fmt.Errorf("%w: accepted status requires consented activities", sentinel.ErrConstraint)
		}
	case StatusRejected:
		if !hasRejected {
			return fmt.Errorf("%w: rejected status requires rejected activities", sentinel.ErrConstraint)
		}
	case StatusPartial:
		if !hasConsented || !hasRejected {
			return fmt.Errorf("%w: partial status requires consented and rejected activities", sentinel.ErrConstraint)
		}
	}

	if !r.ExpiresAt.After(r.GivenAt) {
		return fmt.Errorf("%w: expiry must be after given time", sentinel.ErrConstraint)
	}
	return nil
}
