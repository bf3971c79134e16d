package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/releng/waiverd/pkg/api"
)

// Middleware creates HTTP middleware from the configured authenticator.
// It is applied only to routes that create waivers; reads are public.
// On success the identity is injected into the request context and any
// method response headers (e.g. a mutual-authentication token) are
// copied onto the response.
func Middleware(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, headers, err := a.Authenticate(r.Context(), r)
			if err != nil {
				slog.Warn("authentication failed",
					"method", a.Method(),
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"error", err,
				)
				writeAuthError(w, err)
				return
			}

			if identity == nil || identity.Username == "" {
				slog.Error("authenticator returned empty identity", "method", a.Method())
				writeAuthError(w, api.NewServerError())
				return
			}

			for key, values := range headers {
				for _, v := range values {
					w.Header().Add(key, v)
				}
			}

			slog.Debug("authentication succeeded",
				"method", a.Method(),
				"username", identity.Username,
				"path", r.URL.Path,
			)

			next.ServeHTTP(w, r.WithContext(SetIdentity(r.Context(), identity)))
		})
	}
}

// writeAuthError renders an authentication failure as the service's JSON
// error body, including any challenge headers the method set.
func writeAuthError(w http.ResponseWriter, err error) {
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		apiErr = api.NewUnauthorizedError("authentication required", nil)
	}
	for key, values := range apiErr.Headers {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.HTTPStatus())
	json.NewEncoder(w).Encode(apiErr.Body())
}
