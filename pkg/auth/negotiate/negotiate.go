// Package negotiate provides a Kerberos/GSSAPI authenticator using the
// HTTP Negotiate scheme. Only a single security-context round is
// supported: a mechanism that asks for continuation is rejected rather
// than retried.
package negotiate

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/releng/waiverd/pkg/api"
	"github.com/releng/waiverd/pkg/auth"
)

// ErrContinueNeeded is returned by a Mechanism when the peer expects
// another negotiation round. The authenticator treats it as a hard
// failure.
var ErrContinueNeeded = errors.New("security context needs continuation")

// Result is the outcome of a completed security-context step.
type Result struct {
	// Principal is the authenticated name, possibly with a realm suffix
	// (user@REALM). The authenticator strips the realm.
	Principal string

	// ResponseToken, when present, is returned to the client in the
	// WWW-Authenticate header for mutual authentication.
	ResponseToken []byte
}

// Mechanism performs one accept step of a GSSAPI-style negotiation.
type Mechanism interface {
	Accept(token []byte) (Result, error)
}

// Authenticator implements the Negotiate auth method over a Mechanism.
type Authenticator struct {
	mech Mechanism
}

var _ auth.Authenticator = (*Authenticator)(nil)

// New creates a Negotiate authenticator backed by the given mechanism.
func New(mech Mechanism) *Authenticator {
	return &Authenticator{mech: mech}
}

// Method returns the auth scheme name.
func (a *Authenticator) Method() string { return "Kerberos" }

// challenge is sent with 401 responses so the client knows to retry
// with credentials.
func challenge() http.Header {
	h := http.Header{}
	h.Set("WWW-Authenticate", "Negotiate")
	return h
}

// Authenticate consumes the Negotiate token from the Authorization
// header and performs a single security-context step.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) (*auth.Identity, http.Header, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, nil, api.NewUnauthorizedError("authentication required", challenge())
	}

	if !strings.HasPrefix(header, "Negotiate ") {
		return nil, nil, api.NewUnauthorizedError("unsupported authorization scheme", challenge())
	}

	token, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, "Negotiate "))
	if err != nil {
		return nil, nil, api.NewForbiddenError("invalid negotiate token")
	}

	result, err := a.mech.Accept(token)
	if err != nil {
		// Continuation is not supported; any mechanism failure,
		// including a request for another round, is terminal.
		return nil, nil, api.NewForbiddenError("invalid Kerberos ticket")
	}

	username, _, _ := strings.Cut(result.Principal, "@")
	if username == "" {
		return nil, nil, api.NewForbiddenError("invalid Kerberos ticket")
	}

	headers := http.Header{}
	if len(result.ResponseToken) > 0 {
		headers.Set("WWW-Authenticate",
			"Negotiate "+base64.StdEncoding.EncodeToString(result.ResponseToken))
	}

	return &auth.Identity{Username: username}, headers, nil
}
