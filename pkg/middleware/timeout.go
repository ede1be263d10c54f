package middleware

import (
	"net/http"

	"github.com/kevin07696/tsys-connector/pkg/resilience"
)

// Timeout bounds each request with the handler timeout unless the request
// context already carries a deadline.
func Timeout(cfg *resilience.TimeoutConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := r.Context().Deadline(); ok {
				next.ServeHTTP(w, r)
				return
			}
			ctx, cancel := cfg.HandlerContext(r.Context())
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
