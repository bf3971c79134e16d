package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/releng/waiverd/pkg/api"
)

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	handler := Chain(mw("a"), mw("b"), mw("c"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	want := "a,b,c,handler"
	if got := strings.Join(order, ","); got != want {
		t.Errorf("execution order = %s, want %s", got, want)
	}
}

func TestRequestIDGenerated(t *testing.T) {
	var ctxID string
	handler := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID = RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if _, err := uuid.Parse(ctxID); err != nil {
		t.Errorf("context request id %q is not a uuid: %v", ctxID, err)
	}
	if got := rec.Header().Get("X-Request-ID"); got != ctxID {
		t.Errorf("response header %q does not match context id %q", got, ctxID)
	}
}

func TestRequestIDPropagated(t *testing.T) {
	handler := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := RequestIDFromContext(r.Context()); got != "client-id-7" {
			t.Errorf("context id = %q, want the client-provided id", got)
		}
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "client-id-7")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "client-id-7" {
		t.Errorf("response header = %q", got)
	}
}

func TestRequestIDFromEmptyContext(t *testing.T) {
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Errorf("RequestIDFromContext = %q, want empty", got)
	}
}

func TestRecoveryConvertsPanic(t *testing.T) {
	handler := Recovery(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if msg, ok := body["message"].(string); !ok || strings.Contains(msg, "boom") {
		t.Errorf("message = %v, panic detail must not leak", body["message"])
	}
}

func TestWriteErrorFieldMap(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, api.NewFieldValidationError(map[string]string{
		"waived": "Missing required parameter in the JSON body",
	}))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	var body struct {
		Message map[string]string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Message["waived"] != "Missing required parameter in the JSON body" {
		t.Errorf("message = %v", body.Message)
	}
}

func TestWriteErrorNonAPIError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, context.DeadlineExceeded)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "deadline") {
		t.Error("internal error detail must not leak")
	}
}

func TestWriteJSONP(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSONP(rec, http.StatusOK, "jQuery123", map[string]string{"status": "ok"})

	if ct := rec.Header().Get("Content-Type"); ct != "application/javascript" {
		t.Errorf("Content-Type = %q", ct)
	}
	want := `jQuery123({"status":"ok"})`
	if got := rec.Body.String(); got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
}
