package validation

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consentd/internal/consent/models"
	dErrors "consentd/pkg/domain-errors"
)

const (
	actA     = "11111111-1111-1111-1111-111111111111"
	actB     = "22222222-2222-2222-2222-222222222222"
	purposeP = "33333333-3333-3333-3333-333333333333"
)

func baseRequest() *models.RecordConsentRequest {
	return &models.RecordConsentRequest{
		WidgetID:           "w1",
		VisitorID:          "v1",
		ConsentStatus:      "accepted",
		AcceptedActivities: []string{actA},
	}
}

func fieldErrors(t *testing.T, err error) []FieldError {
	t.Helper()
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeValidation))
	var ve *Error
	require.True(t, errors.As(err, &ve))
	return ve.Fields
}

func TestValidateSchema(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*models.RecordConsentRequest)
		wantField string
		wantCode  string
	}{
		{"missing widget id", func(r *models.RecordConsentRequest) { r.WidgetID = "  " }, "widgetId", CodeRequired},
		{"missing visitor id", func(r *models.RecordConsentRequest) { r.VisitorID = "" }, "visitorId", CodeRequired},
		{"widget id too long", func(r *models.RecordConsentRequest) { r.WidgetID = strings.Repeat("w", 256) }, "widgetId", CodeTooLong},
		{"unknown status", func(r *models.RecordConsentRequest) { r.ConsentStatus = "maybe" }, "consentStatus", CodeInvalidEnum},
		{"missing status", func(r *models.RecordConsentRequest) { r.ConsentStatus = "" }, "consentStatus", CodeInvalidEnum},
		{"bad email", func(r *models.RecordConsentRequest) { r.VisitorEmail = "not-an-email" }, "visitorEmail", CodeEmail},
		{"duration too small", func(r *models.RecordConsentRequest) { d := 0; r.ConsentDuration = &d }, "consentDuration", CodeOutOfRange},
		{"duration too large", func(r *models.RecordConsentRequest) { d := 3651; r.ConsentDuration = &d }, "consentDuration", CodeOutOfRange},
		{"reason too long", func(r *models.RecordConsentRequest) { r.RevocationReason = strings.Repeat("x", 501) }, "revocationReason", CodeTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := baseRequest()
			tt.mutate(req)
			_, err := Validate(req)
			fields := fieldErrors(t, err)
			require.Len(t, fields, 1)
			assert.Equal(t, tt.wantField, fields[0].Field)
			assert.Equal(t, tt.wantCode, fields[0].Code)
		})
	}

	t.Run("reports every offending field", func(t *testing.T) {
		_, err := Validate(&models.RecordConsentRequest{ConsentStatus: "nope"})
		fields := fieldErrors(t, err)
		assert.Len(t, fields, 3)
	})

	t.Run("nil request", func(t *testing.T) {
		_, err := Validate(nil)
		fieldErrors(t, err)
	})
}

func TestValidateTooManyActivities(t *testing.T) {
	ids := make([]string, MaxActivities+1)
	for i := range ids {
		ids[i] = fmt.Sprintf("%08d-1111-1111-1111-111111111111", i)
	}

	req := baseRequest()
	req.RejectedActivities = ids
	_, err := Validate(req)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooManyActivities)
	assert.True(t, dErrors.Is(err, dErrors.CodeInvalidInput))

	req.RejectedActivities = ids[:MaxActivities]
	sub, err := Validate(req)
	require.NoError(t, err)
	assert.Len(t, sub.RejectedActivities, MaxActivities)
}

func TestValidateSanitizesActivities(t *testing.T) {
	req := baseRequest()
	req.AcceptedActivities = []string{" " + actA + " ", actA, "bogus", actB, ""}
	req.RejectedActivities = []string{actB, "also-bogus"}

	sub, err := Validate(req)
	require.NoError(t, err)
	assert.Equal(t, []string{actA}, sub.AcceptedActivities, "overlap is kept as rejected only")
	assert.Equal(t, []string{actB}, sub.RejectedActivities)

	for _, id := range append(sub.AcceptedActivities, sub.RejectedActivities...) {
		assert.True(t, models.IsValidActivityID(id))
	}
}

func TestValidateFoldsActivityIDCase(t *testing.T) {
	const upper = "AAAAAAAA-BBBB-4CCC-8DDD-EEEEEEEEEEEE"
	const lower = "aaaaaaaa-bbbb-4ccc-8ddd-eeeeeeeeeeee"

	t.Run("same id in both lists is kept as rejected", func(t *testing.T) {
		req := baseRequest()
		req.AcceptedActivities = []string{upper, actA}
		req.RejectedActivities = []string{lower}

		sub, err := Validate(req)
		require.NoError(t, err)
		assert.Equal(t, []string{actA}, sub.AcceptedActivities)
		assert.Equal(t, []string{lower}, sub.RejectedActivities)
	})

	t.Run("case variants collapse", func(t *testing.T) {
		req := baseRequest()
		req.AcceptedActivities = []string{upper, lower}
		req.RejectedActivities = nil

		sub, err := Validate(req)
		require.NoError(t, err)
		assert.Equal(t, []string{lower}, sub.AcceptedActivities)
	})

	t.Run("purpose map keys and ids", func(t *testing.T) {
		req := baseRequest()
		req.AcceptedPurposeConsents = map[string][]string{upper: {strings.ToUpper(purposeP), purposeP}}

		sub, err := Validate(req)
		require.NoError(t, err)
		assert.Equal(t, map[string][]string{lower: {purposeP}}, sub.AcceptedPurposes)
	})
}

func TestValidateEmptyListsAreNonNil(t *testing.T) {
	req := baseRequest()
	req.ConsentStatus = "revoked"
	req.AcceptedActivities = nil

	sub, err := Validate(req)
	require.NoError(t, err)
	assert.NotNil(t, sub.AcceptedActivities)
	assert.NotNil(t, sub.RejectedActivities)
	assert.Equal(t, models.StatusRevoked, sub.Status)
}

func TestValidatePurposeMaps(t *testing.T) {
	t.Run("drops malformed keys and purpose ids", func(t *testing.T) {
		req := baseRequest()
		req.AcceptedPurposeConsents = map[string][]string{
			actA:    {purposeP, "bad", purposeP},
			"bogus": {purposeP},
			actB:    {"bad"},
		}
		sub, err := Validate(req)
		require.NoError(t, err)
		assert.Equal(t, map[string][]string{actA: {purposeP}}, sub.AcceptedPurposes)
		assert.Nil(t, sub.RejectedPurposes)
	})

	t.Run("deprecated map folds into accepted", func(t *testing.T) {
		req := baseRequest()
		req.ActivityPurposeConsents = map[string][]string{actA: {purposeP}}
		sub, err := Validate(req)
		require.NoError(t, err)
		assert.Equal(t, map[string][]string{actA: {purposeP}}, sub.AcceptedPurposes)
	})

	t.Run("explicit accepted map wins over deprecated", func(t *testing.T) {
		req := baseRequest()
		req.AcceptedPurposeConsents = map[string][]string{actB: {purposeP}}
		req.ActivityPurposeConsents = map[string][]string{actA: {purposeP}}
		sub, err := Validate(req)
		require.NoError(t, err)
		assert.Equal(t, map[string][]string{actB: {purposeP}}, sub.AcceptedPurposes)
	})
}

func TestValidateRuleContext(t *testing.T) {
	full := &models.RuleContext{RuleID: "r1", RuleName: "Checkout", URLPattern: "/checkout/*", PageURL: "https://ex.com/checkout"}

	req := baseRequest()
	req.RuleContext = full
	sub, err := Validate(req)
	require.NoError(t, err)
	require.NotNil(t, sub.RuleContext)
	assert.Equal(t, "r1", sub.RuleContext.RuleID)

	partial := *full
	partial.URLPattern = " "
	req.RuleContext = &partial
	sub, err = Validate(req)
	require.NoError(t, err)
	assert.Nil(t, sub.RuleContext)
}

func TestValidateMetadata(t *testing.T) {
	req := baseRequest()
	req.Metadata = &models.RequestMetadata{
		CurrentURL: "https://ex.com/a?x=1",
		Referrer:   "javascript:alert(1)",
		PageTitle:  "  Home  ",
		IPAddress:  "not-an-ip",
		Country:    "de",
		Language:   "en-GB",
		Browser:    strings.Repeat("b", maxHintLength+1),
		DeviceType: "Mobile",
	}

	sub, err := Validate(req)
	require.NoError(t, err)
	assert.Equal(t, "https://ex.com/a?x=1", sub.Page.CurrentURL)
	assert.Empty(t, sub.Page.Referrer)
	assert.Equal(t, "Home", sub.Page.PageTitle)
	assert.Empty(t, sub.Hints.IPAddress)
	assert.Equal(t, "DE", sub.Hints.Country)
	assert.Equal(t, "en-GB", sub.Hints.Language)
	assert.Empty(t, sub.Hints.Browser)
	assert.Equal(t, "Mobile", sub.Hints.DeviceType)
}

func TestURLOrEmpty(t *testing.T) {
	assert.Equal(t, "http://ex.com", urlOrEmpty(" http://ex.com "))
	assert.Empty(t, urlOrEmpty("ftp://ex.com/file"))
	assert.Empty(t, urlOrEmpty("/relative/path"))
	assert.Empty(t, urlOrEmpty(""))
}
