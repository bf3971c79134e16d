package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/releng/waiverd/pkg/api"
)

// staticAuthenticator returns canned results.
type staticAuthenticator struct {
	identity *Identity
	headers  http.Header
	err      error
}

func (a *staticAuthenticator) Authenticate(context.Context, *http.Request) (*Identity, http.Header, error) {
	return a.identity, a.headers, a.err
}

func (a *staticAuthenticator) Method() string { return "static" }

func TestMiddlewareInjectsIdentity(t *testing.T) {
	mutual := http.Header{}
	mutual.Set("WWW-Authenticate", "Negotiate c2VydmVyLXJlcGx5")
	authn := &staticAuthenticator{identity: &Identity{Username: "alice"}, headers: mutual}

	var seen *Identity
	handler := Middleware(authn)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1.0/waivers/", nil))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	if seen == nil || seen.Username != "alice" {
		t.Errorf("identity in context = %+v, want alice", seen)
	}
	if got := rec.Header().Get("WWW-Authenticate"); got != "Negotiate c2VydmVyLXJlcGx5" {
		t.Errorf("mutual-auth header not copied, got %q", got)
	}
}

func TestMiddlewareWritesAuthError(t *testing.T) {
	challenge := http.Header{}
	challenge.Set("WWW-Authenticate", "Negotiate")
	authn := &staticAuthenticator{err: api.NewUnauthorizedError("authentication required", challenge)}

	handler := Middleware(authn)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1.0/waivers/", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if got := rec.Header().Get("WWW-Authenticate"); got != "Negotiate" {
		t.Errorf("challenge header = %q, want Negotiate", got)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", got)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if body["message"] != "authentication required" {
		t.Errorf("message = %v", body["message"])
	}
}

func TestMiddlewareEmptyIdentityIsServerError(t *testing.T) {
	authn := &staticAuthenticator{identity: &Identity{}}

	handler := Middleware(authn)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1.0/waivers/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestIdentityFromEmptyContext(t *testing.T) {
	if got := IdentityFromContext(context.Background()); got != nil {
		t.Errorf("IdentityFromContext = %+v, want nil", got)
	}
}
