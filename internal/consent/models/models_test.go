package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consentd/pkg/platform/sentinel"
)

const (
	actA = "11111111-1111-1111-1111-111111111111"
	actB = "22222222-2222-2222-2222-222222222222"
)

func validRecord(status ConsentStatus, consented, rejected []string) *ConsentRecord {
	given := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &ConsentRecord{
		ConsentID:           "w1_v1_1",
		WidgetID:            "w1",
		VisitorID:           "v1",
		Status:              status,
		ConsentedActivities: consented,
		RejectedActivities:  rejected,
		GivenAt:             given,
		ExpiresAt:           given.AddDate(0, 0, 365),
	}
}

func TestParseConsentStatus(t *testing.T) {
	for _, s := range []string{"accepted", "rejected", "partial", "revoked"} {
		st, err := ParseConsentStatus(s)
		require.NoError(t, err)
		assert.Equal(t, s, st.String())
	}

	_, err := ParseConsentStatus("")
	assert.Error(t, err)
	_, err = ParseConsentStatus("maybe")
	assert.Error(t, err)
}

func TestIsValidActivityID(t *testing.T) {
	assert.True(t, IsValidActivityID(actA))
	assert.True(t, IsValidActivityID("ABCDEF01-2345-6789-abcd-ef0123456789"))
	assert.False(t, IsValidActivityID("not-an-id"))
	assert.False(t, IsValidActivityID(actA+"0"))
	assert.False(t, IsValidActivityID(""))
}

func TestCheckIntegrity(t *testing.T) {
	tests := []struct {
		name    string
		record  *ConsentRecord
		wantErr bool
	}{
		{"accepted with consented", validRecord(StatusAccepted, []string{actA}, nil), false},
		{"accepted without consented", validRecord(StatusAccepted, nil, []string{actA}), true},
		{"rejected with rejected", validRecord(StatusRejected, nil, []string{actA}), false},
		{"rejected without rejected", validRecord(StatusRejected, []string{actA}, nil), true},
		{"partial with both", validRecord(StatusPartial, []string{actA}, []string{actB}), false},
		{"partial missing rejected", validRecord(StatusPartial, []string{actA}, nil), true},
		{"revoked with nothing", validRecord(StatusRevoked, nil, nil), false},
		{"overlapping sets", validRecord(StatusPartial, []string{actA}, []string{actA}), true},
		{"malformed id", validRecord(StatusAccepted, []string{"bogus"}, nil), true},
		{"unknown status", validRecord("maybe", []string{actA}, nil), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.CheckIntegrity()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, sentinel.ErrConstraint))
				return
			}
			assert.NoError(t, err)
		})
	}

	t.Run("expiry not after given", func(t *testing.T) {
		rec := validRecord(StatusAccepted, []string{actA}, nil)
		rec.ExpiresAt = rec.GivenAt
		assert.ErrorIs(t, rec.CheckIntegrity(), sentinel.ErrConstraint)
	})
}

func TestIsActive(t *testing.T) {
	rec := validRecord(StatusAccepted, []string{actA}, nil)
	assert.True(t, rec.IsActive(rec.GivenAt.Add(time.Hour)))
	assert.False(t, rec.IsActive(rec.ExpiresAt.Add(time.Second)))

	revoked := rec.GivenAt.Add(time.Hour)
	rec.RevokedAt = &revoked
	assert.False(t, rec.IsActive(rec.GivenAt.Add(2*time.Hour)))
}

func TestPreferenceRowsFor(t *testing.T) {
	rec := validRecord(StatusPartial, []string{actA}, []string{actB})
	rows := PreferenceRowsFor(rec, "v1")
	require.Len(t, rows, 2)
	assert.Equal(t, PreferenceAccepted, rows[0].Status)
	assert.Equal(t, actA, rows[0].ActivityID)
	assert.Equal(t, PreferenceRejected, rows[1].Status)
	assert.Equal(t, "w1_v1_1", rows[1].ConsentID)

	rec.Status = StatusRevoked
	assert.Empty(t, PreferenceRowsFor(rec, "v1"))
}

func TestSubmissionPageURL(t *testing.T) {
	sub := &Submission{}
	assert.Empty(t, sub.PageURL())

	sub.RuleContext = &RuleContext{PageURL: "https://ex.com/rule"}
	assert.Equal(t, "https://ex.com/rule", sub.PageURL())

	sub.Page.CurrentURL = "https://ex.com/a"
	assert.Equal(t, "https://ex.com/a", sub.PageURL())
}
