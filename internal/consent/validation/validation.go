// Package validation turns a raw consent payload into a bounded, sanitized
// submission. Schema problems are reported as a field list; malformed optional
// content is dropped silently.
package validation

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/asaskevich/govalidator"

	"consentd/internal/consent/models"
	dErrors "consentd/pkg/domain-errors"
	str "consentd/pkg/platform/strings"
)

const (
	MaxActivities          = 100
	MaxIdentifierLength    = 255
	MaxRevocationReasonLen = 500
	maxURLLength           = 2048
	maxPageTitleLength     = 512
	maxHintLength          = 512
)

// Field error codes.
const (
	CodeRequired    = "required"
	CodeTooLong     = "too_long"
	CodeInvalidEnum = "invalid_enum"
	CodeInvalidType = "invalid_type"
	CodeEmail       = "invalid_email"
	CodeOutOfRange  = "out_of_range"
)

// ErrTooManyActivities is returned when a raw activity list exceeds MaxActivities.
var ErrTooManyActivities = errors.New("too many activities")

// FieldError describes one offending field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error carries every schema violation found in a payload.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *Error) add(field, code, msg string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: msg, Code: code})
}

// NewFieldError wraps a single field violation as a validation error.
func NewFieldError(field, code, msg string) error {
	ve := &Error{}
	ve.add(field, code, msg)
	return dErrors.Wrap(ve, dErrors.CodeValidation, "invalid consent payload")
}

// Validate checks req and returns the sanitized submission.
func Validate(req *models.RecordConsentRequest) (*models.Submission, error) {
	if req == nil {
		return nil, NewFieldError("body", CodeRequired, "request body is required")
	}

	ve := &Error{}
	widgetID := strings.TrimSpace(req.WidgetID)
	visitorID := strings.TrimSpace(req.VisitorID)
	checkIdentifier(ve, "widgetId", widgetID)
	checkIdentifier(ve, "visitorId", visitorID)

	status, err := models.ParseConsentStatus(strings.TrimSpace(req.ConsentStatus))
	if err != nil {
		ve.add("consentStatus", CodeInvalidEnum, "consentStatus must be one of accepted, rejected, partial, revoked")
	}

	email := strings.TrimSpace(req.VisitorEmail)
	if email != "" && (len(email) > MaxIdentifierLength || !govalidator.IsEmail(email)) {
		ve.add("visitorEmail", CodeEmail, "visitorEmail must be a valid email address")
	}

	duration := 0
	if req.ConsentDuration != nil {
		duration = *req.ConsentDuration
		if duration < models.MinConsentDuration || duration > models.MaxConsentDuration {
			ve.add("consentDuration", CodeOutOfRange,
				fmt.Sprintf("consentDuration must be between %d and %d days", models.MinConsentDuration, models.MaxConsentDuration))
		}
	}

	reason := strings.TrimSpace(req.RevocationReason)
	if len(reason) > MaxRevocationReasonLen {
		ve.add("revocationReason", CodeTooLong, fmt.Sprintf("revocationReason must be at most %d characters", MaxRevocationReasonLen))
	}

	if len(ve.Fields) > 0 {
		return nil, dErrors.Wrap(ve, dErrors.CodeValidation, "invalid consent payload")
	}

	if len(req.AcceptedActivities) > MaxActivities || len(req.RejectedActivities) > MaxActivities {
		return nil, dErrors.Wrap(ErrTooManyActivities, dErrors.CodeInvalidInput,
			fmt.Sprintf("at most %d activities may be submitted per list", MaxActivities))
	}

	sub := &models.Submission{
		WidgetID:         widgetID,
		VisitorID:        visitorID,
		VisitorEmail:     email,
		EmailProof:       strings.TrimSpace(req.EmailProof),
		Status:           status,
		ConsentDuration:  duration,
		RevocationReason: reason,
		RuleContext:      sanitizeRuleContext(req.RuleContext),
	}
	sub.AcceptedActivities, sub.RejectedActivities = sanitizeActivities(req.AcceptedActivities, req.RejectedActivities)

	accepted := req.AcceptedPurposeConsents
	if len(accepted) == 0 {
		accepted = req.ActivityPurposeConsents
	}
	sub.AcceptedPurposes = sanitizePurposeMap(accepted)
	sub.RejectedPurposes = sanitizePurposeMap(req.RejectedPurposeConsents)

	if req.Metadata != nil {
		sub.Page, sub.Hints = sanitizeMetadata(req.Metadata)
	}
	return sub, nil
}

func checkIdentifier(ve *Error, field, value string) {
	switch {
	case value == "":
		ve.add(field, CodeRequired, field+" is required")
	case len(value) > MaxIdentifierLength:
		ve.add(field, CodeTooLong, fmt.Sprintf("%s must be at most %d characters", field, MaxIdentifierLength))
	}
}

// sanitizeActivities filters both lists to canonical lower-case ids. An id
// present in both lists is kept only as rejected.
func sanitizeActivities(accepted, rejected []string) ([]string, []string) {
	rej := str.FilterDedupeLower(rejected, models.IsValidActivityID, MaxActivities)
	acc := str.FilterDedupeLower(accepted, models.IsValidActivityID, MaxActivities)
	return nonNil(str.Subtract(acc, rej)), nonNil(rej)
}

// sanitizePurposeMap drops entries whose activity id or purpose ids are
// malformed. Keys are visited in sorted order so the cap is deterministic.
func sanitizePurposeMap(in map[string][]string) map[string][]string {
	if len(in) == 0 {
		return nil
	}
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string][]string)
	for _, k := range keys {
		if len(out) == MaxActivities {
			break
		}
		activityID := strings.ToLower(strings.TrimSpace(k))
		if !models.IsValidActivityID(activityID) {
			continue
		}
		if _, dup := out[activityID]; dup {
			continue
		}
		purposes := str.FilterDedupeLower(in[k], models.IsValidActivityID, MaxActivities)
		if len(purposes) == 0 {
			continue
		}
		out[activityID] = purposes
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// sanitizeRuleContext keeps the rule context only when every field is populated.
func sanitizeRuleContext(rc *models.RuleContext) *models.RuleContext {
	if rc == nil {
		return nil
	}
	out := &models.RuleContext{
		RuleID:     strings.TrimSpace(rc.RuleID),
		RuleName:   strings.TrimSpace(rc.RuleName),
		URLPattern: strings.TrimSpace(rc.URLPattern),
		PageURL:    strings.TrimSpace(rc.PageURL),
	}
	if out.RuleID == "" || out.RuleName == "" || out.URLPattern == "" || out.PageURL == "" {
		return nil
	}
	return out
}

func sanitizeMetadata(md *models.RequestMetadata) (models.PageMetadata, models.ClientHints) {
	page := models.PageMetadata{
		CurrentURL: urlOrEmpty(md.CurrentURL),
		Referrer:   urlOrEmpty(md.Referrer),
		PageTitle:  boundedOrEmpty(md.PageTitle, maxPageTitleLength),
	}

	hints := models.ClientHints{
		UserAgent:  boundedOrEmpty(md.UserAgent, maxHintLength),
		DeviceType: boundedOrEmpty(md.DeviceType, maxHintLength),
		Browser:    boundedOrEmpty(md.Browser, maxHintLength),
		OS:         boundedOrEmpty(md.OS, maxHintLength),
		Language:   boundedOrEmpty(md.Language, 35),
	}
	if ip := strings.TrimSpace(md.IPAddress); govalidator.IsIP(ip) {
		hints.IPAddress = ip
	}
	if c := strings.ToUpper(strings.TrimSpace(md.Country)); govalidator.IsISO3166Alpha2(c) {
		hints.Country = c
	}
	return page, hints
}

// urlOrEmpty keeps s only when it is an absolute http(s) URL.
func urlOrEmpty(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > maxURLLength || !govalidator.IsURL(s) {
		return ""
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return s
}

func boundedOrEmpty(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) > limit {
		return ""
	}
	return s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// ClientHints returns only the sanitized device hints of md, so device
// classification can run without waiting for full validation.
func ClientHints(md *models.RequestMetadata) models.ClientHints {
	if md == nil {
		return models.ClientHints{}
	}
	_, hints := sanitizeMetadata(md)
	return hints
}
