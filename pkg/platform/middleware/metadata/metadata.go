package metadata

import (
	"net/http"
	"strings"

	"consentd/pkg/requestcontext"
)

// ClientMetadata extracts client IP, User-Agent and geo/language headers from
// the request and adds them to the context for use by handlers and services.
// This middleware should be applied early in the chain.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientMetadata(r.Context(), ClientIPFromRequest(r), r.Header.Get("User-Agent"))
		ctx = requestcontext.WithHeaders(ctx, requestcontext.Headers{
			AcceptLanguage: r.Header.Get("Accept-Language"),
			Country:        countryFromRequest(r),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetClientIP retrieves the client IP address from the context.
func GetClientIP(r *http.Request) string {
	if ip := requestcontext.ClientIP(r.Context()); ip != "" {
		return ip
	}
	return ClientIPFromRequest(r)
}

// ClientIPFromRequest extracts the real client IP from the request, handling proxies and load balancers.
func ClientIPFromRequest(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs (client, proxy1, proxy2, ...)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// RemoteAddr is "ip:port"; IPv6 is "[::1]:port"
	if addr := r.RemoteAddr; addr != "" {
		if idx := strings.LastIndex(addr, ":"); idx != -1 {
			return strings.Trim(addr[:idx], "[]")
		}
		return addr
	}

	return "unknown"
}

// countryFromRequest reads the two-letter country hint set by the CDN edge.
func countryFromRequest(r *http.Request) string {
	for _, h := range []string{"CF-IPCountry", "X-Country-Code", "X-Vercel-IP-Country"} {
		if v := strings.TrimSpace(r.Header.Get(h)); v != "" && !strings.EqualFold(v, "XX") {
			return strings.ToUpper(v)
		}
	}
	return ""
}
