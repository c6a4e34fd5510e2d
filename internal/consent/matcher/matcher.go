// Package matcher decides whether a submission updates an existing consent
// record or creates a new one. Strategies run in order; the first verdict
// other than Continue wins and an exhausted chain means Create.
package matcher

import (
	"context"
	"log/slog"

	"consentd/internal/consent/models"
	"consentd/pkg/requestcontext"
)

type Action int

const (
	ActionContinue Action = iota
	ActionUpdate
	ActionCreate
)

func (a Action) String() string {
	switch a {
	case ActionUpdate:
		return "update"
	case ActionCreate:
		return "create"
	default:
		return "continue"
	}
}

// Verdict is a strategy's answer. Record is set only for ActionUpdate.
type Verdict struct {
	Action   Action
	Record   *models.ConsentRecord
	Strategy string
}

func Continue() Verdict {
	return Verdict{Action: ActionContinue}
}

func Update(rec *models.ConsentRecord, strategy string) Verdict {
	return Verdict{Action: ActionUpdate, Record: rec, Strategy: strategy}
}

func Create(strategy string) Verdict {
	return Verdict{Action: ActionCreate, Strategy: strategy}
}

// Input is the reconciled submission as seen by the strategies.
type Input struct {
	WidgetID  string
	VisitorID string
	// EmailHash is set only when the email was verified.
	EmailHash string
	Status    models.ConsentStatus
	Accepted  []string
	Rejected  []string
	PageURL   string
}

type Strategy interface {
	Name() string
	Match(ctx context.Context, in Input) (Verdict, error)
}

// RecordFinder is the read side of the record store the strategies need.
type RecordFinder interface {
	FindLatestByEmailHash(ctx context.Context, widgetID, emailHash string) (*models.ConsentRecord, error)
	ListByVisitor(ctx context.Context, widgetID, visitorID string, limit int) ([]*models.ConsentRecord, error)
}

type Chain struct {
	strategies []Strategy
	logger     *slog.Logger
}

func NewChain(logger *slog.Logger, strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies, logger: logger}
}

// Resolve runs the chain. A failing strategy is logged and skipped so a
// lookup outage degrades to creating a new record rather than failing the
// request.
func (c *Chain) Resolve(ctx context.Context, in Input) Verdict {
	for _, s := range c.strategies {
		v, err := s.Match(ctx, in)
		if err != nil {
			if c.logger != nil {
				c.logger.WarnContext(ctx, "consent match lookup failed",
					"strategy", s.Name(),
					"widget_id", in.WidgetID,
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
			}
			continue
		}
		if v.Action != ActionContinue {
			if v.Strategy == "" {
				v.Strategy = s.Name()
			}
			return v
		}
	}
	return Create("default")
}
