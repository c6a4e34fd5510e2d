// Package requestcontext carries request-scoped values past the HTTP layer.
//
// Middleware sets them; the consent engine reads them without importing
// net/http. Tests inject values directly:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"
)

type ctxKey int

const (
	keyClientIP ctxKey = iota
	keyUserAgent
	keyRequestID
	keyRequestTime
	keyHeaders
)

// Headers carries the request headers the device classifier reads:
// Accept-Language and the edge's geo hint.
type Headers struct {
	AcceptLanguage string
	Country        string
}

func stringValue(ctx context.Context, key ctxKey) string {
	s, _ := ctx.Value(key).(string)
	return s
}

// ClientIP is the caller address resolved by the metadata middleware.
func ClientIP(ctx context.Context) string { return stringValue(ctx, keyClientIP) }

// UserAgent is the raw User-Agent header.
func UserAgent(ctx context.Context) string { return stringValue(ctx, keyUserAgent) }

// RequestID is the correlation id logged with every line of a request.
func RequestID(ctx context.Context) string { return stringValue(ctx, keyRequestID) }

func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, keyClientIP, clientIP)
	return context.WithValue(ctx, keyUserAgent, userAgent)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, keyRequestID, requestID)
}

func RequestHeaders(ctx context.Context) Headers {
	h, _ := ctx.Value(keyHeaders).(Headers)
	return h
}

func WithHeaders(ctx context.Context, h Headers) context.Context {
	return context.WithValue(ctx, keyHeaders, h)
}

// Now returns the request-scoped time so every timestamp written while
// serving one submission is identical. Outside a request it is time.Now.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(keyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, keyRequestTime, t)
}
