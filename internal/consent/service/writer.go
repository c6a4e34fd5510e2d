package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"consentd/internal/consent/models"
	widgetModels "consentd/internal/widget/models"
	dErrors "consentd/pkg/domain-errors"
	"consentd/pkg/platform/audit"
	"consentd/pkg/platform/sentinel"
	"consentd/pkg/requestcontext"
)

// Best-effort steps reported on an Outcome.
const (
	EffectNoticeSnapshot = "notice_snapshot"
	EffectPreferenceSync = "preference_sync"
)

// SideEffect is the result of a step whose failure does not fail the request.
type SideEffect struct {
	Name string
	Err  error
}

func newSideEffect(name string, err error) SideEffect {
	return SideEffect{Name: name, Err: err}
}

func (se SideEffect) Failed() bool { return se.Err != nil }

// writePlan carries everything the writer needs. existing is set for an
// update; consentID is set for a create.
type writePlan struct {
	existing  *models.ConsentRecord
	consentID string

	status    models.ConsentStatus
	sub       *models.Submission
	widget    *widgetModels.Widget
	device    models.DeviceInfo
	snapshot  *models.NoticeSnapshot
	email     *string
	emailHash string
	now       time.Time
	expiresAt time.Time
}

func (p *writePlan) details() models.ConsentDetails {
	return models.ConsentDetails{
		RuleContext:      p.sub.RuleContext,
		AcceptedPurposes: p.sub.AcceptedPurposes,
		RejectedPurposes: p.sub.RejectedPurposes,
		NoticeSnapshot:   p.snapshot,
		Page:             p.sub.Page,
		Device:           p.device,
	}
}

// apply overwrites the decision fields of rec. Revocation is stamped only for
// a revoked status and cleared otherwise.
func (p *writePlan) apply(rec *models.ConsentRecord) {
	rec.Status = p.status
	rec.ConsentedActivities = p.sub.AcceptedActivities
	rec.RejectedActivities = p.sub.RejectedActivities
	rec.Details = p.details()
	rec.UpdatedAt = p.now
	rec.ExpiresAt = p.expiresAt
	if p.email != nil {
		rec.VisitorEmail = p.email
	}
	if p.emailHash != "" {
		h := p.emailHash
		rec.VisitorEmailHash = &h
	}

	if p.status == models.StatusRevoked {
		at := p.now
		reason := p.sub.RevocationReason
		if reason == "" {
			reason = models.DefaultRevocationReason
		}
		rec.RevokedAt = &at
		rec.RevocationReason = &reason
		return
	}
	rec.RevokedAt = nil
	rec.RevocationReason = nil
}

func (s *Service) write(ctx context.Context, p *writePlan) (*models.ConsentRecord, bool, error) {
	if p.existing != nil {
		rec := *p.existing
		p.apply(&rec)
		if err := s.records.Update(ctx, &rec); err != nil {
			return nil, false, translateWriteError(err, models.ErrUpdateFailed)
		}
		return &rec, false, nil
	}

	rec := &models.ConsentRecord{
		ID:            uuid.NewString(),
		ConsentID:     p.consentID,
		WidgetID:      p.widget.ID,
		TenantID:      p.widget.UserID,
		VisitorID:     p.sub.VisitorID,
		GivenAt:       p.now,
		NoticeVersion: p.widget.NoticeVersion,
	}
	p.apply(rec)
	if err := s.records.Create(ctx, rec); err != nil {
		return nil, false, translateWriteError(err, models.ErrCreateFailed)
	}
	return rec, true, nil
}

func translateWriteError(err, op error) error {
	if errors.Is(err, sentinel.ErrConstraint) {
		return dErrors.Wrap(err, dErrors.CodeConstraintViolation,
			"Consent status and activities are inconsistent with the stored record rules")
	}
	return dErrors.Wrap(fmt.Errorf("%w: %w", op, err), dErrors.CodeInternal, op.Error())
}

// syncPreferences mirrors rec into the preference projection of visitorID,
// the submitting visitor. A revoked record withdraws every row the visitor
// holds for the widget.
func (s *Service) syncPreferences(ctx context.Context, rec *models.ConsentRecord, visitorID string) SideEffect {
	if rec.Status == models.StatusRevoked {
		_, err := s.preferences.WithdrawAll(ctx, visitorID, rec.WidgetID, rec.ConsentID, rec.UpdatedAt)
		return newSideEffect(EffectPreferenceSync, err)
	}
	rows := models.PreferenceRowsFor(rec, visitorID)
	if len(rows) == 0 {
		return newSideEffect(EffectPreferenceSync, nil)
	}
	return newSideEffect(EffectPreferenceSync, s.preferences.Upsert(ctx, rows))
}

func (s *Service) recordAudit(ctx context.Context, rec *models.ConsentRecord, visitorID string, created bool, clientIP string) {
	action := audit.EventConsentUpdated
	switch {
	case rec.Status == models.StatusRevoked:
		action = audit.EventConsentRevoked
	case created:
		action = audit.EventConsentRecorded
	}

	var reason string
	if rec.RevocationReason != nil {
		reason = *rec.RevocationReason
	}
	audit.LogAudit(ctx, s.logger, s.auditPublisher, audit.Event{
		Action:    string(action),
		TenantID:  rec.TenantID,
		WidgetID:  rec.WidgetID,
		VisitorID: visitorID,
		ConsentID: rec.ConsentID,
		Decision:  string(rec.Status),
		Reason:    reason,
		RequestID: requestcontext.RequestID(ctx),
		ClientIP:  clientIP,
	},
		"widget_id", rec.WidgetID,
		"consent_id", rec.ConsentID,
		"status", string(rec.Status),
		"created", created,
	)
}
