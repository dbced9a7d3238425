package middleware

import (
	"net/http"

	"github.com/kevin07696/paypal-billing/pkg/resilience"
	"go.uber.org/zap"
)

// Timeout bounds every request context by the handler budget. Requests
// whose context already carries a deadline keep it.
func Timeout(config *resilience.TimeoutConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, hasDeadline := r.Context().Deadline(); hasDeadline {
				next.ServeHTTP(w, r)
				return
			}

			ctx, cancel := config.HandlerContext(r.Context())
			defer cancel()

			logger.Debug("Applied handler timeout",
				zap.String("path", r.URL.Path),
				zap.Duration("timeout", config.HTTPHandler),
			)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
