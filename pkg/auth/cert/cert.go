// Package cert provides an authenticator for mutual-TLS deployments
// where a reverse proxy terminates TLS and injects the verification
// result as request headers.
package cert

import (
	"context"
	"net/http"

	"github.com/releng/waiverd/pkg/api"
	"github.com/releng/waiverd/pkg/auth"
)

// Headers the terminating proxy is trusted to inject.
const (
	VerifyHeader = "SSL-Client-Verify"
	DNHeader     = "SSL-Client-S-DN"
)

// verifySuccess is the value the proxy sets when client verification
// succeeded.
const verifySuccess = "SUCCESS"

// Authenticator trusts the proxy-injected verification status and
// distinguished name.
type Authenticator struct{}

var _ auth.Authenticator = (*Authenticator)(nil)

// New creates a client-certificate authenticator.
func New() *Authenticator { return &Authenticator{} }

// Method returns the auth scheme name.
func (a *Authenticator) Method() string { return "SSL" }

// Authenticate fails unless the proxy reports successful verification
// and supplies a distinguished name, which becomes the caller identity.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) (*auth.Identity, http.Header, error) {
	if r.Header.Get(VerifyHeader) != verifySuccess {
		return nil, nil, api.NewUnauthorizedError("client certificate verification failed", nil)
	}

	dn := r.Header.Get(DNHeader)
	if dn == "" {
		return nil, nil, api.NewUnauthorizedError("client certificate distinguished name is missing", nil)
	}

	return &auth.Identity{Username: dn}, nil, nil
}
