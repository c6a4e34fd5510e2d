// Package cors sets permissive CORS headers. Consent endpoints are called by an
// embedded third-party widget script, so every origin is allowed. Credentials
// are never allowed.
package cors

import "net/http"

const (
	allowMethods = "GET, POST, OPTIONS"
	allowHeaders = "Content-Type, Authorization, X-Request-ID"
	maxAge       = "86400"
)

// SetHeaders writes the CORS response headers.
func SetHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", allowMethods)
	h.Set("Access-Control-Allow-Headers", allowHeaders)
	h.Set("Access-Control-Max-Age", maxAge)
}

// AllowAll adds CORS headers to every response passing through.
func AllowAll(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		SetHeaders(w)
		next.ServeHTTP(w, r)
	})
}

// Preflight answers an OPTIONS request with 204 and the CORS headers.
func Preflight(w http.ResponseWriter, _ *http.Request) {
	SetHeaders(w)
	w.WriteHeader(http.StatusNoContent)
}
