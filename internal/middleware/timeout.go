package middleware

import (
	"net/http"
	"time"
)

const (
	// DefaultRequestTimeout covers an AI call plus its fallbacks
	DefaultRequestTimeout = 60 * time.Second
)

// timeoutBody is written when a handler overruns
const timeoutBody = `{"success":false,"error":"Service Unavailable","message":"Request timed out"}`

// Timeout bounds handler run time. The request context is cancelled when the
// deadline passes so in-flight AI calls stop.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, timeoutBody)
	}
}
