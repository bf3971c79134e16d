package negotiate

import (
	"fmt"

	"github.com/jcmturner/goidentity/v6"
	"github.com/jcmturner/gokrb5/v8/gssapi"
	"github.com/jcmturner/gokrb5/v8/keytab"
	"github.com/jcmturner/gokrb5/v8/service"
	"github.com/jcmturner/gokrb5/v8/spnego"
)

// krb5Mechanism accepts SPNEGO tokens against a service keytab.
type krb5Mechanism struct {
	svc *spnego.SPNEGO
}

// NewKerberosMechanism loads the keytab and returns a Mechanism that
// validates SPNEGO tokens for the given service principal. An empty
// principal accepts any principal present in the keytab.
func NewKerberosMechanism(keytabPath, principal string) (Mechanism, error) {
	kt, err := keytab.Load(keytabPath)
	if err != nil {
		return nil, fmt.Errorf("loading keytab %s: %w", keytabPath, err)
	}

	var opts []func(*service.Settings)
	if principal != "" {
		opts = append(opts, service.KeytabPrincipal(principal))
	}

	return &krb5Mechanism{svc: spnego.SPNEGOService(kt, opts...)}, nil
}

// Accept unmarshals the SPNEGO token and runs one accept step. The
// mutual-authentication reply token is not exposed by the library's
// service API, so ResponseToken is left empty.
func (m *krb5Mechanism) Accept(token []byte) (Result, error) {
	var st spnego.SPNEGOToken
	if err := st.Unmarshal(token); err != nil {
		return Result{}, fmt.Errorf("unmarshaling SPNEGO token: %w", err)
	}

	authed, ctx, status := m.svc.AcceptSecContext(&st)
	switch status.Code {
	case gssapi.StatusComplete:
		if !authed {
			return Result{}, fmt.Errorf("security context completed without authentication")
		}
		id, ok := ctx.Value(goidentity.CTXKey).(goidentity.Identity)
		if !ok {
			return Result{}, fmt.Errorf("no credentials in completed security context")
		}
		principal := id.UserName()
		if domain := id.Domain(); domain != "" {
			principal = principal + "@" + domain
		}
		return Result{Principal: principal}, nil
	case gssapi.StatusContinueNeeded:
		return Result{}, ErrContinueNeeded
	default:
		return Result{}, fmt.Errorf("security context step failed: %v", status)
	}
}
