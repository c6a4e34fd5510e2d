// Package reconcile derives the authoritative consent status from the claimed
// status and the sanitized activity sets. The activity sets are ground truth;
// the claimed status is advisory.
package reconcile

import (
	"consentd/internal/consent/models"
	dErrors "consentd/pkg/domain-errors"
)

// Reasons attached to adjusted results.
const (
	ReasonAcceptedWithoutAccepted = "accepted claimed with no accepted activities"
	ReasonRejectedWithoutRejected = "rejected claimed with no rejected activities"
	ReasonPartialOnlyAccepted     = "partial claimed with only accepted activities"
	ReasonPartialOnlyRejected     = "partial claimed with only rejected activities"
)

// Result is the reconciled status. Adjusted is set when the claim was overridden.
type Result struct {
	Status   models.ConsentStatus
	Adjusted bool
	Reason   string
}

// Reconcile applies the precedence rules, first match wins:
//  1. revoked passes through
//  2. accepted with no accepted activities downgrades to rejected, or fails
//  3. rejected with no rejected activities upgrades to accepted, or fails
//  4. partial with one empty side collapses to the other side, or fails
//  5. otherwise the claim stands
func Reconcile(claimed models.ConsentStatus, accepted, rejected []string) (Result, error) {
	hasAccepted := len(accepted) > 0
	hasRejected := len(rejected) > 0

	switch claimed {
	case models.StatusRevoked:
		return Result{Status: models.StatusRevoked}, nil

	case models.StatusAccepted:
		if hasAccepted {
			break
		}
		if hasRejected {
			return Result{Status: models.StatusRejected, Adjusted: true, Reason: ReasonAcceptedWithoutAccepted}, nil
		}
		return Result{}, noSignal(claimed)

	case models.StatusRejected:
		if hasRejected {
			break
		}
		if hasAccepted {
			return Result{Status: models.StatusAccepted, Adjusted: true, Reason: ReasonRejectedWithoutRejected}, nil
		}
		return Result{}, noSignal(claimed)

	case models.StatusPartial:
		switch {
		case hasAccepted && hasRejected:
		case hasAccepted:
			return Result{Status: models.StatusAccepted, Adjusted: true, Reason: ReasonPartialOnlyAccepted}, nil
		case hasRejected:
			return Result{Status: models.StatusRejected, Adjusted: true, Reason: ReasonPartialOnlyRejected}, nil
		default:
			return Result{}, noSignal(claimed)
		}

	default:
		return Result{}, dErrors.New(dErrors.CodeInvalidConsent, "unknown consent status")
	}

	return Result{Status: claimed}, nil
}

func noSignal(claimed models.ConsentStatus) error {
	return dErrors.New(dErrors.CodeInvalidConsent,
		"consent status "+claimed.String()+" requires at least one accepted or rejected activity")
}
