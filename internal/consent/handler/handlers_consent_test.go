package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"consentd/internal/consent/handler/mocks"
	"consentd/internal/consent/models"
	"consentd/internal/consent/service"
	"consentd/internal/consent/validation"
	quotaModels "consentd/internal/quota/models"
	dErrors "consentd/pkg/domain-errors"
	"consentd/pkg/platform/middleware/request"
	"consentd/pkg/requestcontext"
	"consentd/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/consent-mocks.go -package=mocks Service
type ConsentHandlerSuite struct {
	suite.Suite
	ctx context.Context
}

func (s *ConsentHandlerSuite) SetupSuite() {
	s.ctx = context.Background()
}

func TestConsentHandlerSuite(t *testing.T) {
	suite.Run(t, new(ConsentHandlerSuite))
}

func newTestRouter(t *testing.T) (http.Handler, *mocks.MockService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	mockService := mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	handler := New(mockService, logger)
	r := chi.NewRouter()
	r.Use(request.MaxBodyBytes(1024))
	handler.Register(r)
	return r, mockService
}

func post(t *testing.T, h http.Handler, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var resp map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

const validBody = `{
	"widgetId": "w1",
	"visitorId": "v1",
	"consentStatus": "partial",
	"acceptedActivities": ["11111111-1111-1111-1111-111111111111"],
	"rejectedActivities": [],
	"metadata": {"currentUrl": "https://ex.com/a"}
}`

func (s *ConsentHandlerSuite) TestHandleRecordConsent() {
	expires := time.Date(2027, 6, 15, 10, 0, 0, 0, time.UTC)

	s.Run("created record", func() {
		router, mockService := newTestRouter(s.T())
		mockService.EXPECT().Record(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req *models.RecordConsentRequest) (*service.Outcome, error) {
				s.Equal("w1", req.WidgetID)
				s.Equal("partial", req.ConsentStatus)
				s.Equal("https://ex.com/a", req.Metadata.CurrentURL)
				return &service.Outcome{
					ConsentID: "w1_v1_1781517600000_abcdefghi",
					VisitorID: "v1",
					ExpiresAt: expires,
					Status:    models.StatusAccepted,
					Created:   true,
				}, nil
			})

		w, resp := post(s.T(), router, "/api/consent-record", validBody)
		s.Equal(http.StatusOK, w.Code)
		s.Equal(true, resp["success"])
		s.Equal("w1_v1_1781517600000_abcdefghi", resp["consentId"])
		s.Equal("v1", resp["visitorId"])
		s.Equal("2027-06-15T10:00:00Z", resp["expiresAt"])
		s.Equal("Consent recorded successfully", resp["message"])
	})

	s.Run("versioned path and update message", func() {
		router, mockService := newTestRouter(s.T())
		mockService.EXPECT().Record(gomock.Any(), gomock.Any()).Return(&service.Outcome{
			ConsentID: "c1", VisitorID: "v1", ExpiresAt: expires,
		}, nil)

		w, resp := post(s.T(), router, "/v1/consent-record", validBody)
		s.Equal(http.StatusOK, w.Code)
		s.Equal("Consent updated successfully", resp["message"])
	})

	s.Run("request scope reaches the engine", func() {
		router, mockService := newTestRouter(s.T())
		now := time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)
		mockService.EXPECT().Record(gomock.Any(), gomock.Any()).DoAndReturn(
			func(ctx context.Context, _ *models.RecordConsentRequest) (*service.Outcome, error) {
				s.Equal("req-42", requestcontext.RequestID(ctx))
				s.Equal("203.0.113.9", requestcontext.ClientIP(ctx))
				s.Equal("Mozilla/5.0", requestcontext.UserAgent(ctx))
				s.Equal(now, requestcontext.Now(ctx))
				return &service.Outcome{ConsentID: "c1", VisitorID: "v1", ExpiresAt: expires, Created: true}, nil
			})

		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/api/consent-record", validBody)
		req = testutil.WithRequestID(req, "req-42")
		req = testutil.WithClient(req, "203.0.113.9", "Mozilla/5.0")
		req = testutil.WithRequestTime(req, now)
		w := testutil.DoRequest(router, req)
		testutil.AssertStatus(s.T(), w, http.StatusOK)
	})

	s.Run("preflight", func() {
		router, _ := newTestRouter(s.T())
		req := httptest.NewRequest(http.MethodOptions, "/api/consent-record", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		s.Equal(http.StatusNoContent, w.Code)
		s.Equal("*", w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func (s *ConsentHandlerSuite) TestDecodeErrors() {
	s.Run("malformed json", func() {
		router, _ := newTestRouter(s.T())
		w, resp := post(s.T(), router, "/api/consent-record", `{"widgetId":`)
		s.Equal(http.StatusBadRequest, w.Code)
		s.Equal(false, resp["success"])
		s.Equal(CodeInvalidJSON, resp["code"])
	})

	s.Run("wrong field type", func() {
		router, _ := newTestRouter(s.T())
		w, resp := post(s.T(), router, "/api/consent-record", `{"widgetId":"w1","consentDuration":"forever"}`)
		s.Equal(http.StatusBadRequest, w.Code)
		s.Equal(CodeValidationError, resp["code"])
		details := resp["details"].([]any)
		s.Require().Len(details, 1)
		s.Equal("consentDuration", details[0].(map[string]any)["field"])
	})

	s.Run("oversized body", func() {
		router, _ := newTestRouter(s.T())
		body := fmt.Sprintf(`{"widgetId":"w1","revocationReason":"%s"}`, strings.Repeat("x", 2048))
		w, resp := post(s.T(), router, "/api/consent-record", body)
		s.Equal(http.StatusRequestEntityTooLarge, w.Code)
		s.Equal(CodePayloadTooLarge, resp["code"])
	})
}

func (s *ConsentHandlerSuite) TestServiceErrors() {
	fieldErr := validation.NewFieldError("visitorId", validation.CodeRequired, "visitorId is required")
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", fieldErr, http.StatusBadRequest, CodeValidationError},
		{"too many activities", dErrors.Wrap(validation.ErrTooManyActivities, dErrors.CodeInvalidInput, "at most 100"), http.StatusBadRequest, CodeTooManyActivities},
		{"no activity signal", dErrors.New(dErrors.CodeInvalidConsent, "needs activities"), http.StatusBadRequest, CodeInvalidActivities},
		{"unknown widget", dErrors.New(dErrors.CodeNotFound, "Widget not found or inactive"), http.StatusNotFound, CodeInvalidWidget},
		{"constraint", dErrors.New(dErrors.CodeConstraintViolation, "check failed"), http.StatusBadRequest, CodeConstraintViolation},
		{"update failed", dErrors.Wrap(fmt.Errorf("%w: timeout", models.ErrUpdateFailed), dErrors.CodeInternal, "x"), http.StatusInternalServerError, CodeUpdateFailed},
		{"create failed", dErrors.Wrap(fmt.Errorf("%w: timeout", models.ErrCreateFailed), dErrors.CodeInternal, "x"), http.StatusInternalServerError, CodeCreateFailed},
		{"unexpected", errors.New("pq: connection refused"), http.StatusInternalServerError, CodeInternalError},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			router, mockService := newTestRouter(s.T())
			mockService.EXPECT().Record(gomock.Any(), gomock.Any()).Return(nil, tt.err)

			w, resp := post(s.T(), router, "/api/consent-record", validBody)
			s.Equal(tt.wantStatus, w.Code)
			s.Equal(tt.wantCode, resp["code"])
			s.Equal(false, resp["success"])
			s.NotContains(w.Body.String(), "connection refused")
		})
	}
}

func (s *ConsentHandlerSuite) TestQuotaExceededDetails() {
	router, mockService := newTestRouter(s.T())
	exceeded := &quotaModels.ExceededError{Used: 1000, Limit: 1000, Plan: quotaModels.PlanFree}
	mockService.EXPECT().Record(gomock.Any(), gomock.Any()).
		Return(nil, dErrors.Wrap(exceeded, dErrors.CodeQuotaExceeded, "Monthly consent limit reached for this plan"))

	w, resp := post(s.T(), router, "/api/consent-record", validBody)
	s.Equal(http.StatusForbidden, w.Code)
	s.Equal(CodeLimitExceeded, resp["code"])
	s.Equal("Monthly consent limit reached for this plan", resp["error"])

	details := resp["details"].(map[string]any)
	s.Equal(float64(1000), details["used"])
	s.Equal(float64(1000), details["limit"])
	s.Equal("free", details["plan"])
}

func TestToErrorResponseDetails(t *testing.T) {
	err := validation.NewFieldError("widgetId", validation.CodeRequired, "widgetId is required")
	resp, status := toErrorResponse(err)

	assert.Equal(t, http.StatusBadRequest, status)
	fields, ok := resp.Details.([]validation.FieldError)
	require.True(t, ok)
	assert.Equal(t, "widgetId", fields[0].Field)

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(resp))
	assert.Contains(t, buf.String(), `"code":"VALIDATION_ERROR"`)
}
