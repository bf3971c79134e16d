// Package auth defines the authentication abstraction. One method is
// selected at startup from the configured variants (negotiate, oidc,
// cert, dummy); every variant resolves a caller identity from request
// credentials and may return response headers (challenges on failure,
// mutual-authentication tokens on success).
package auth

import (
	"context"
	"net/http"
)

// Identity is the authenticated caller.
type Identity struct {
	// Username is the resolved principal, with any realm suffix stripped.
	Username string
}

// Authenticator resolves a caller identity from a request. On failure
// the returned error is an *api.Error carrying the HTTP status and any
// method-specific challenge headers; authenticators never retry
// internally.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) (*Identity, http.Header, error)

	// Method names the configured auth scheme, surfaced by /about.
	Method() string
}
