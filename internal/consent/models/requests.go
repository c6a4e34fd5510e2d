package models

// RecordConsentRequest is the wire payload posted by the widget script.
type RecordConsentRequest struct {
	WidgetID           string   `json:"widgetId"`
	VisitorID          string   `json:"visitorId"`
	VisitorEmail       string   `json:"visitorEmail,omitempty"`
	EmailProof         string   `json:"emailProof,omitempty"`
	ConsentStatus      string   `json:"consentStatus"`
	AcceptedActivities []string `json:"acceptedActivities,omitempty"`
	RejectedActivities []string `json:"rejectedActivities,omitempty"`

	AcceptedPurposeConsents map[string][]string `json:"acceptedPurposeConsents,omitempty"`
	RejectedPurposeConsents map[string][]string `json:"rejectedPurposeConsents,omitempty"`
	// Deprecated: folded into AcceptedPurposeConsents when that is absent.
	ActivityPurposeConsents map[string][]string `json:"activityPurposeConsents,omitempty"`

	RuleContext      *RuleContext     `json:"ruleContext,omitempty"`
	Metadata         *RequestMetadata `json:"metadata,omitempty"`
	ConsentDuration  *int             `json:"consentDuration,omitempty"`
	RevocationReason string           `json:"revocationReason,omitempty"`
}

// RequestMetadata is the optional client-reported page and device context.
type RequestMetadata struct {
	UserAgent  string `json:"userAgent,omitempty"`
	IPAddress  string `json:"ipAddress,omitempty"`
	DeviceType string `json:"deviceType,omitempty"`
	Browser    string `json:"browser,omitempty"`
	OS         string `json:"os,omitempty"`
	Country    string `json:"country,omitempty"`
	Language   string `json:"language,omitempty"`
	Referrer   string `json:"referrer,omitempty"`
	CurrentURL string `json:"currentUrl,omitempty"`
	PageTitle  string `json:"pageTitle,omitempty"`
}

// ClientHints are the sanitized device fields the client volunteered. Empty
// values defer to header-derived classification.
type ClientHints struct {
	UserAgent  string
	IPAddress  string
	DeviceType string
	Browser    string
	OS         string
	Country    string
	Language   string
}

// Submission is a validated and sanitized consent submission.
type Submission struct {
	WidgetID     string
	VisitorID    string
	VisitorEmail string
	EmailProof   string
	Status       ConsentStatus

	AcceptedActivities []string
	RejectedActivities []string
	AcceptedPurposes   map[string][]string
	RejectedPurposes   map[string][]string

	RuleContext *RuleContext
	Page        PageMetadata
	Hints       ClientHints

	// ConsentDuration is the override in days; zero means use the widget default.
	ConsentDuration  int
	RevocationReason string
}

// PageURL returns the URL used for per-page matching: the current page URL,
// falling back to the rule context's page URL.
func (s *Submission) PageURL() string {
	if s.Page.CurrentURL != "" {
		return s.Page.CurrentURL
	}
	if s.RuleContext != nil {
		return s.RuleContext.PageURL
	}
	return ""
}
