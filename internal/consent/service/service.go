// Package service is the consent-record engine: it validates a widget
// submission, admits it against the tenant quota, reconciles its status,
// matches it to an existing record and writes the result.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"consentd/internal/consent/consentid"
	"consentd/internal/consent/device"
	"consentd/internal/consent/matcher"
	"consentd/internal/consent/metrics"
	"consentd/internal/consent/models"
	"consentd/internal/consent/notice"
	"consentd/internal/consent/ports"
	"consentd/internal/consent/reconcile"
	"consentd/internal/consent/validation"
	widgetModels "consentd/internal/widget/models"
	dErrors "consentd/pkg/domain-errors"
	"consentd/pkg/platform/sentinel"
	"consentd/pkg/requestcontext"
)

// Type aliases for shared interfaces.
type (
	WidgetStore        = ports.WidgetStore
	RecordStore        = ports.RecordStore
	PreferenceStore    = ports.PreferenceStore
	QuotaAdmitter      = ports.QuotaAdmitter
	DeviceClassifier   = ports.DeviceClassifier
	NoticeBuilder      = ports.NoticeBuilder
	EmailHasher        = ports.EmailHasher
	EmailVerifier      = ports.EmailVerifier
	ConsentIDGenerator = ports.ConsentIDGenerator
	Matcher            = ports.Matcher
	AuditPublisher     = ports.AuditPublisher
)

// pageScanLimit bounds how many prior records of one visitor the page-URL
// strategy inspects.
const pageScanLimit = 200

type Service struct {
	widgets     WidgetStore
	records     RecordStore
	preferences PreferenceStore
	quotas      QuotaAdmitter
	hasher      EmailHasher

	verifier           EmailVerifier
	devices            DeviceClassifier
	notices            NoticeBuilder
	ids                ConsentIDGenerator
	matcher            Matcher
	defaultConsentDays int

	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithEmailVerifier replaces the default, which treats every well-formed email as verified.
func WithEmailVerifier(v EmailVerifier) Option {
	return func(s *Service) {
		s.verifier = v
	}
}

func WithDeviceClassifier(c DeviceClassifier) Option {
	return func(s *Service) {
		s.devices = c
	}
}

func WithNoticeBuilder(b NoticeBuilder) Option {
	return func(s *Service) {
		s.notices = b
	}
}

func WithConsentIDGenerator(g ConsentIDGenerator) Option {
	return func(s *Service) {
		s.ids = g
	}
}

func WithMatcher(m Matcher) Option {
	return func(s *Service) {
		s.matcher = m
	}
}

// WithDefaultConsentDays sets the lifetime used when neither the request nor
// the widget specifies one.
func WithDefaultConsentDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.defaultConsentDays = days
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

type acceptAllVerifier struct{}

func (acceptAllVerifier) Verified(email, _ string, _ time.Time) bool { return email != "" }

func New(
	widgets WidgetStore,
	records RecordStore,
	preferences PreferenceStore,
	quotas QuotaAdmitter,
	hasher EmailHasher,
	opts ...Option,
) (*Service, error) {
	if widgets == nil {
		return nil, fmt.Errorf("widget store is required")
	}
	if records == nil {
		return nil, fmt.Errorf("record store is required")
	}
	if preferences == nil {
		return nil, fmt.Errorf("preference store is required")
	}
	if quotas == nil {
		return nil, fmt.Errorf("quota admitter is required")
	}
	if hasher == nil {
		return nil, fmt.Errorf("email hasher is required")
	}

	svc := &Service{
		widgets:            widgets,
		records:            records,
		preferences:        preferences,
		quotas:             quotas,
		hasher:             hasher,
		verifier:           acceptAllVerifier{},
		devices:            device.NewService(),
		notices:            notice.NewBuilder(notice.NewTemplateRenderer(), notice.NewPolicySanitizer()),
		ids:                consentid.New(),
		logger:             slog.Default(),
		defaultConsentDays: models.DefaultConsentDuration,
		tracer:             otel.Tracer("consentd/internal/consent/service"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.matcher == nil {
		svc.matcher = matcher.NewChain(svc.logger,
			matcher.NewEmailHashStrategy(records),
			matcher.NewPageURLStrategy(records, pageScanLimit),
		)
	}
	return svc, nil
}

// Outcome is what Record reports back. SideEffects lists every best-effort
// step, failed or not.
type Outcome struct {
	RecordID    string
	ConsentID   string
	VisitorID   string
	ExpiresAt   time.Time
	Status      models.ConsentStatus
	Created     bool
	Adjusted    bool
	MatchedBy   string
	SideEffects []SideEffect
}

// FailedSideEffects returns the side effects that did not complete.
func (o *Outcome) FailedSideEffects() []SideEffect {
	var failed []SideEffect
	for _, se := range o.SideEffects {
		if se.Failed() {
			failed = append(failed, se)
		}
	}
	return failed
}

// Record runs the full pipeline for one submission.
func (s *Service) Record(ctx context.Context, req *models.RecordConsentRequest) (*Outcome, error) {
	start := time.Now()
	defer s.metrics.ObserveRecord(start)

	ctx, span := s.tracer.Start(ctx, "consent.Record")
	defer span.End()

	out, err := s.record(ctx, req)
	if err != nil {
		code := string(dErrors.CodeOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, code)
		s.metrics.IncRejection(code)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("consent.status", string(out.Status)),
		attribute.Bool("consent.created", out.Created),
	)
	return out, nil
}

func (s *Service) record(ctx context.Context, req *models.RecordConsentRequest) (*Outcome, error) {
	now := requestcontext.Now(ctx)

	sub, info, err := s.intake(ctx, req)
	if err != nil {
		return nil, err
	}

	widget, err := s.loadWidget(ctx, sub.WidgetID)
	if err != nil {
		return nil, err
	}

	if _, err := s.quotas.Admit(ctx, widget.UserID, widget.ID); err != nil {
		return nil, err
	}

	result, err := reconcile.Reconcile(sub.Status, sub.AcceptedActivities, sub.RejectedActivities)
	if err != nil {
		return nil, err
	}
	if result.Adjusted {
		s.metrics.IncStatusAdjusted(string(sub.Status), string(result.Status))
		s.logger.InfoContext(ctx, "consent status adjusted",
			"widget_id", widget.ID,
			"claimed", string(sub.Status),
			"reconciled", string(result.Status),
			"reason", result.Reason,
			"request_id", requestcontext.RequestID(ctx),
		)
	}

	email, emailHash := s.identify(sub, now)

	verdict := s.match(ctx, matcher.Input{
		WidgetID:  widget.ID,
		VisitorID: sub.VisitorID,
		EmailHash: emailHash,
		Status:    result.Status,
		Accepted:  sub.AcceptedActivities,
		Rejected:  sub.RejectedActivities,
		PageURL:   sub.PageURL(),
	})

	var effects []SideEffect
	snapshot, snapErr := s.snapshot(ctx, widget, sub, now)
	effects = append(effects, newSideEffect(EffectNoticeSnapshot, snapErr))

	plan := &writePlan{
		status:    result.Status,
		sub:       sub,
		widget:    widget,
		device:    info,
		snapshot:  snapshot,
		email:     email,
		emailHash: emailHash,
		now:       now,
		expiresAt: now.AddDate(0, 0, widget.ConsentDuration(sub.ConsentDuration, s.defaultConsentDays)),
	}
	if verdict.Action == matcher.ActionUpdate {
		plan.existing = verdict.Record
	} else {
		plan.consentID, err = s.newConsentID(widget.ID, sub.VisitorID, emailHash, now)
		if err != nil {
			return nil, dErrors.Wrap(fmt.Errorf("%w: %w", models.ErrCreateFailed, err), dErrors.CodeInternal, "failed to generate consent id")
		}
	}

	rec, created, err := s.write(ctx, plan)
	if err != nil {
		return nil, err
	}
	effects = append(effects, s.syncPreferences(ctx, rec, sub.VisitorID))

	for _, se := range effects {
		if se.Failed() {
			s.metrics.IncSideEffectFailure(se.Name)
			s.logger.WarnContext(ctx, "best-effort step failed",
				"effect", se.Name,
				"consent_id", rec.ConsentID,
				"error", se.Err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
	}

	action := "updated"
	if created {
		action = "created"
	}
	s.metrics.IncRecordWritten(string(rec.Status), action)
	s.recordAudit(ctx, rec, sub.VisitorID, created, info.IPPrefix)

	return &Outcome{
		RecordID:    rec.ID,
		ConsentID:   rec.ConsentID,
		VisitorID:   sub.VisitorID,
		ExpiresAt:   rec.ExpiresAt,
		Status:      rec.Status,
		Created:     created,
		Adjusted:    result.Adjusted,
		MatchedBy:   verdict.Strategy,
		SideEffects: effects,
	}, nil
}

// intake validates the payload and classifies the device concurrently. Both
// read only the raw request, so neither waits on the other.
func (s *Service) intake(ctx context.Context, req *models.RecordConsentRequest) (*models.Submission, models.DeviceInfo, error) {
	if req == nil {
		return nil, models.DeviceInfo{}, validation.NewFieldError("body", validation.CodeRequired, "request body is required")
	}

	var (
		sub  *models.Submission
		info models.DeviceInfo
	)
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sub, err = validation.Validate(req)
		return err
	})
	g.Go(func() error {
		headers := requestcontext.RequestHeaders(ctx)
		info = s.devices.Classify(device.Input{
			UserAgent:      requestcontext.UserAgent(ctx),
			AcceptLanguage: headers.AcceptLanguage,
			Country:        headers.Country,
			ClientIP:       requestcontext.ClientIP(ctx),
			Hints:          validation.ClientHints(req.Metadata),
		})
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, models.DeviceInfo{}, err
	}
	return sub, info, nil
}

func (s *Service) loadWidget(ctx context.Context, widgetID string) (*widgetModels.Widget, error) {
	widget, err := s.widgets.FindByID(ctx, widgetID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "Widget not found or inactive")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load widget")
	}
	if !widget.IsActive {
		return nil, dErrors.New(dErrors.CodeNotFound, "Widget not found or inactive")
	}
	return widget, nil
}

// identify returns the email to store and, only for a verified email, its hash.
func (s *Service) identify(sub *models.Submission, now time.Time) (email *string, emailHash string) {
	if sub.VisitorEmail == "" {
		return nil, ""
	}
	e := sub.VisitorEmail
	if !s.verifier.Verified(e, sub.EmailProof, now) {
		return &e, ""
	}
	return &e, s.hasher.Hash(e)
}

func (s *Service) match(ctx context.Context, in matcher.Input) matcher.Verdict {
	ctx, span := s.tracer.Start(ctx, "consent.Match")
	defer span.End()

	v := s.matcher.Resolve(ctx, in)
	s.metrics.IncMatchVerdict(v.Strategy, v.Action.String())
	span.SetAttributes(attribute.String("match.strategy", v.Strategy), attribute.String("match.action", v.Action.String()))
	return v
}

func (s *Service) snapshot(ctx context.Context, widget *widgetModels.Widget, sub *models.Submission, now time.Time) (*models.NoticeSnapshot, error) {
	ctx, span := s.tracer.Start(ctx, "consent.NoticeSnapshot")
	defer span.End()

	snap, err := s.notices.Build(ctx, widget, sub.Page, sub.PageURL(), now)
	if err != nil {
		span.RecordError(err)
	}
	if snap == nil {
		snap = &models.NoticeSnapshot{
			NoticeVersion: widget.NoticeVersion,
			Domain:        widget.Domain,
			Metadata: models.SnapshotMetadata{
				CurrentURL:    sub.PageURL(),
				NormalizedURL: notice.NormalizeURL(sub.PageURL()),
				PageTitle:     sub.Page.PageTitle,
			},
			GeneratedAt: now,
		}
	}
	return snap, err
}

func (s *Service) newConsentID(widgetID, visitorID, emailHash string, now time.Time) (string, error) {
	if emailHash != "" {
		return s.ids.Verified(widgetID, emailHash, now), nil
	}
	return s.ids.Anonymous(widgetID, visitorID, now)
}
