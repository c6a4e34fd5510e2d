package models

import "time"

// RecordConsentResponse is returned on a successful write.
type RecordConsentResponse struct {
	Success   bool      `json:"success"`
	ConsentID string    `json:"consentId"`
	VisitorID string    `json:"visitorId"`
	ExpiresAt time.Time `json:"expiresAt"`
	Message   string    `json:"message"`
}

// ErrorResponse is the error envelope understood by widget clients.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

// QuotaDetails accompanies CONSENT_LIMIT_EXCEEDED.
type QuotaDetails struct {
	Used  int    `json:"used"`
	Limit int    `json:"limit"`
	Plan  string `json:"plan"`
}
