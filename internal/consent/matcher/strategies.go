package matcher

import (
	"context"
	"errors"

	"consentd/internal/consent/notice"
	"consentd/pkg/platform/sentinel"
	"consentd/pkg/platform/strings"
)

const (
	StrategyEmailHash = "email_hash"
	StrategyPageURL   = "page_url"
)

// EmailHashStrategy matches on the latest record for a verified email. A
// record with the same status and the same activity sets is updated in place;
// any difference starts a new record so the history keeps each distinct
// decision.
type EmailHashStrategy struct {
	records RecordFinder
}

func NewEmailHashStrategy(records RecordFinder) *EmailHashStrategy {
	return &EmailHashStrategy{records: records}
}

func (s *EmailHashStrategy) Name() string { return StrategyEmailHash }

func (s *EmailHashStrategy) Match(ctx context.Context, in Input) (Verdict, error) {
	if in.EmailHash == "" {
		return Continue(), nil
	}
	rec, err := s.records.FindLatestByEmailHash(ctx, in.WidgetID, in.EmailHash)
	if errors.Is(err, sentinel.ErrNotFound) {
		return Continue(), nil
	}
	if err != nil {
		return Continue(), err
	}

	if rec.Status == in.Status &&
		strings.SameSet(rec.ConsentedActivities, in.Accepted) &&
		strings.SameSet(rec.RejectedActivities, in.Rejected) {
		return Update(rec, StrategyEmailHash), nil
	}
	return Create(StrategyEmailHash), nil
}

// PageURLStrategy updates the visitor's most recent record captured on the
// same normalized page.
type PageURLStrategy struct {
	records RecordFinder
	limit   int
}

// NewPageURLStrategy scans at most limit prior records; non-positive scans all.
func NewPageURLStrategy(records RecordFinder, limit int) *PageURLStrategy {
	return &PageURLStrategy{records: records, limit: limit}
}

func (s *PageURLStrategy) Name() string { return StrategyPageURL }

func (s *PageURLStrategy) Match(ctx context.Context, in Input) (Verdict, error) {
	target := notice.NormalizeURL(in.PageURL)
	if target == "" || in.VisitorID == "" {
		return Continue(), nil
	}
	recs, err := s.records.ListByVisitor(ctx, in.WidgetID, in.VisitorID, s.limit)
	if err != nil {
		return Continue(), err
	}
	for _, rec := range recs {
		if rec.NormalizedPageURL() == target {
			return Update(rec, StrategyPageURL), nil
		}
	}
	return Continue(), nil
}
