// Package dummy provides an authenticator for development and tests: it
// trusts HTTP Basic credentials verbatim, accepting any username and
// password pair.
package dummy

import (
	"context"
	"net/http"

	"github.com/releng/waiverd/pkg/api"
	"github.com/releng/waiverd/pkg/auth"
)

// Authenticator accepts any HTTP Basic credentials.
type Authenticator struct{}

var _ auth.Authenticator = (*Authenticator)(nil)

// New creates a dummy authenticator.
func New() *Authenticator { return &Authenticator{} }

// Method returns the auth scheme name.
func (a *Authenticator) Method() string { return "dummy" }

// Authenticate reads HTTP Basic credentials and trusts the username.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) (*auth.Identity, http.Header, error) {
	username, _, ok := r.BasicAuth()
	if !ok || username == "" {
		h := http.Header{}
		h.Set("WWW-Authenticate", `Basic realm="waiverd"`)
		return nil, nil, api.NewUnauthorizedError("authentication required", h)
	}
	return &auth.Identity{Username: username}, nil, nil
}
