package middleware

import (
	"net/http"

	logpkg "github.com/benvon/smart-coach/internal/logger"
	"github.com/benvon/smart-coach/internal/request"
	"go.uber.org/zap"
)

// maxIPLength bounds a logged client address
const maxIPLength = 64

// Audit logs responses worth a security review: authorization failures,
// rate-limit rejections and oversized bodies
func Audit(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("audit")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			var event string
			switch wrapped.statusCode {
			case http.StatusUnauthorized, http.StatusForbidden:
				event = "security_event"
			case http.StatusTooManyRequests:
				event = "rate_limit_violation"
			case http.StatusRequestEntityTooLarge:
				event = "oversized_request"
			default:
				return
			}
			logger.Warn(event,
				zap.Int("status_code", wrapped.statusCode),
				zap.String("method", r.Method),
				zap.String("path", logpkg.SanitizePath(r.URL.Path)),
				zap.String("ip", logpkg.SanitizeString(request.ClientIP(r), maxIPLength)),
				zap.String("request_id", request.IDFromContext(r.Context())),
			)
		})
	}
}
