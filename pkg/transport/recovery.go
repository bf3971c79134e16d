package transport

import (
	"log/slog"
	"net/http"

	"github.com/releng/waiverd/pkg/api"
)

// Recovery returns middleware that catches panics in the handler and
// converts them to JSON 500 responses with a generic message, so
// internal details never leak to callers. The server continues to
// accept new requests after a panic is recovered.
func Recovery(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered",
						"path", r.URL.Path,
						"request_id", RequestIDFromContext(r.Context()),
						"panic", rec,
					)
					WriteError(w, api.NewServerError())
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
