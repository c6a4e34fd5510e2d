package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"consentd/internal/consent/models"
	"consentd/internal/consent/service"
	"consentd/internal/consent/validation"
	quotaModels "consentd/internal/quota/models"
	dErrors "consentd/pkg/domain-errors"
	"consentd/pkg/platform/httputil"
	"consentd/pkg/platform/middleware/cors"
	"consentd/pkg/requestcontext"
)

// Wire error codes understood by widget clients.
const (
	CodeInvalidJSON         = "INVALID_JSON"
	CodeValidationError     = "VALIDATION_ERROR"
	CodeTooManyActivities   = "TOO_MANY_ACTIVITIES"
	CodeInvalidActivities   = "INVALID_CONSENT_ACTIVITIES"
	CodeInvalidWidget       = "INVALID_WIDGET"
	CodeLimitExceeded       = "CONSENT_LIMIT_EXCEEDED"
	CodeConstraintViolation = "CONSTRAINT_VIOLATION"
	CodeUpdateFailed        = "UPDATE_FAILED"
	CodeCreateFailed        = "CREATE_FAILED"
	CodePayloadTooLarge     = "PAYLOAD_TOO_LARGE"
	CodeInternalError       = "INTERNAL_ERROR"
)

const (
	constraintViolationHint  = "Consent status does not match the selected activities"
	internalErrorDescription = "Internal server error"
)

// Service records consent submissions.
type Service interface {
	Record(ctx context.Context, req *models.RecordConsentRequest) (*service.Outcome, error)
}

// Handler serves the public consent-record endpoint.
type Handler struct {
	logger  *slog.Logger
	consent Service
}

func New(consent Service, logger *slog.Logger) *Handler {
	return &Handler{
		logger:  logger,
		consent: consent,
	}
}

// Register mounts the endpoint under both the legacy and the versioned path.
func (h *Handler) Register(r chi.Router) {
	for _, path := range []string{"/api/consent-record", "/v1/consent-record"} {
		r.Post(path, h.HandleRecordConsent)
		r.Options(path, cors.Preflight)
	}
}

// HandleRecordConsent decodes a submission and runs it through the engine.
func (h *Handler) HandleRecordConsent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, err := httputil.DecodeJSON[models.RecordConsentRequest](r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid consent payload",
			"request_id", requestID,
			"error", err,
		)
		h.writeError(ctx, w, err)
		return
	}

	out, err := h.consent.Record(ctx, req)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	message := "Consent recorded successfully"
	if !out.Created {
		message = "Consent updated successfully"
	}
	httputil.WriteJSON(w, http.StatusOK, models.RecordConsentResponse{
		Success:   true,
		ConsentID: out.ConsentID,
		VisitorID: out.VisitorID,
		ExpiresAt: out.ExpiresAt,
		Message:   message,
	})
}

// writeError maps engine errors onto the wire envelope.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	resp, status := toErrorResponse(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "consent request failed",
			"request_id", requestcontext.RequestID(ctx),
			"code", resp.Code,
			"error", err,
		)
	}
	httputil.WriteJSON(w, status, resp)
}

func toErrorResponse(err error) (models.ErrorResponse, int) {
	resp := models.ErrorResponse{Success: false, Error: dErrors.MessageOf(err)}

	var (
		typeErr  *json.UnmarshalTypeError
		fields   *validation.Error
		exceeded *quotaModels.ExceededError
	)
	switch {
	case errors.As(err, &typeErr):
		resp.Code = CodeValidationError
		resp.Error = "Invalid consent payload"
		resp.Details = []validation.FieldError{{
			Field:   typeErr.Field,
			Message: typeErr.Field + " has the wrong type",
			Code:    validation.CodeInvalidType,
		}}
		return resp, http.StatusBadRequest

	case errors.As(err, &fields):
		resp.Code = CodeValidationError
		resp.Error = "Invalid consent payload"
		resp.Details = fields.Fields
		return resp, http.StatusBadRequest

	case errors.Is(err, validation.ErrTooManyActivities):
		resp.Code = CodeTooManyActivities
		return resp, http.StatusBadRequest

	case errors.As(err, &exceeded):
		resp.Code = CodeLimitExceeded
		resp.Details = models.QuotaDetails{Used: exceeded.Used, Limit: exceeded.Limit, Plan: string(exceeded.Plan)}
		return resp, http.StatusForbidden

	case errors.Is(err, models.ErrUpdateFailed):
		resp.Code = CodeUpdateFailed
		resp.Error = "Failed to update consent record"
		return resp, http.StatusInternalServerError

	case errors.Is(err, models.ErrCreateFailed):
		resp.Code = CodeCreateFailed
		resp.Error = "Failed to create consent record"
		return resp, http.StatusInternalServerError
	}

	switch dErrors.CodeOf(err) {
	case dErrors.CodeBadRequest:
		resp.Code = CodeInvalidJSON
		return resp, http.StatusBadRequest
	case dErrors.CodeTooLarge:
		resp.Code = CodePayloadTooLarge
		return resp, http.StatusRequestEntityTooLarge
	case dErrors.CodeValidation, dErrors.CodeInvalidInput:
		resp.Code = CodeValidationError
		return resp, http.StatusBadRequest
	case dErrors.CodeInvalidConsent:
		resp.Code = CodeInvalidActivities
		return resp, http.StatusBadRequest
	case dErrors.CodeNotFound:
		resp.Code = CodeInvalidWidget
		return resp, http.StatusNotFound
	case dErrors.CodeConstraintViolation:
		resp.Code = CodeConstraintViolation
		resp.Error = constraintViolationHint
		return resp, http.StatusBadRequest
	default:
		resp.Code = CodeInternalError
		resp.Error = internalErrorDescription
		return resp, http.StatusInternalServerError
	}
}
