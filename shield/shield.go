// Package shield provides the HTTP middleware in front of the page server:
// security headers, per-IP rate limiting, body limits, request tracing and
// HEAD handling.
//
// Usage:
//
//	rl := shield.NewRateLimiter(5, 20, "/static/", "/photos/", "/healthz")
//	go rl.Run(ctx)
//	for _, mw := range shield.DefaultStack(rl) {
//	    r.Use(mw)
//	}
package shield

import "net/http"

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// DefaultStack returns the middleware stack for the page server, ordered
// HeadToGet, SecurityHeaders, MaxBody, TraceID, then the rate limiter when
// rl is non-nil.
func DefaultStack(rl *RateLimiter) []func(http.Handler) http.Handler {
	stack := []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(DefaultHeaders()),
		MaxBody(16 * 1024),
		TraceID,
	}
	if rl != nil {
		stack = append(stack, rl.Middleware)
	}
	return stack
}
