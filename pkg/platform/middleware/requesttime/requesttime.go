// Package requesttime provides middleware that pins a single "now" per request,
// so audit timestamps, expiry computation and consent ids agree with each other.
package requesttime

import (
	"context"
	"net/http"
	"time"

	"consentd/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request
// and stores it in the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Now returns the time pinned by Middleware, or the wall clock outside a request.
func Now(ctx context.Context) time.Time {
	return requestcontext.Now(ctx)
}
