package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	consentHandler "consentd/internal/consent/handler"
	"consentd/internal/platform/metrics"
	rateLimitMW "consentd/internal/ratelimit/middleware"
	"consentd/pkg/platform/httputil"
	"consentd/pkg/platform/middleware/cors"
	"consentd/pkg/platform/middleware/metadata"
	"consentd/pkg/platform/middleware/request"
	"consentd/pkg/platform/middleware/requesttime"
)

// ScopeConsentRecord is the rate-limit bucket scope for the public endpoint.
const ScopeConsentRecord = "consent-record"

// HealthCheck reports whether one backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Deps collects everything the router mounts. Optional fields may be nil.
type Deps struct {
	Logger        *slog.Logger
	Consent       *consentHandler.Handler
	RateLimit     *rateLimitMW.Middleware
	Metrics       *metrics.Metrics
	MaxBodyBytes  int64
	Health        map[string]HealthCheck
	ExposeMetrics bool
}

// NewRouter wires the middleware chain and every public endpoint. Recovery
// is outermost so panics in any later middleware still produce a 500.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(request.Recovery(d.Logger))
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(request.Logger(d.Logger))
	r.Use(cors.AllowAll)
	r.Use(d.Metrics.Middleware)

	r.Get("/health", healthHandler(d.Health))
	if d.ExposeMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(request.MaxBodyBytes(d.MaxBodyBytes))
		if d.RateLimit != nil {
			r.Use(d.RateLimit.RateLimit(ScopeConsentRecord))
		}
		d.Consent.Register(r)
	})
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		if len(checks) > 0 {
			resp.Checks = make(map[string]string, len(checks))
		}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				resp.Checks[name] = "unavailable"
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
