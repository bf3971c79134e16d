package resultsdb

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/releng/waiverd/pkg/api"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, 0)
}

func apiErrorCode(t *testing.T, err error) api.ErrorCode {
	t.Helper()
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("error should be *api.Error, got %T: %v", err, err)
	}
	return apiErr.Code
}

func TestGetResult(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/results/123" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": 123,
			"data": {"item": ["glibc-2.26-27.fc27"], "type": ["koji_build"]},
			"testcase": {"name": "dist.rpmdeplint"}
		}`))
	})

	result, err := client.GetResult(context.Background(), 123)
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if result.ID != 123 || result.Testcase.Name != "dist.rpmdeplint" {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestGetResultNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})

	_, err := client.GetResult(context.Background(), 999)
	if code := apiErrorCode(t, err); code != api.ErrorCodeValidation {
		t.Errorf("code = %v, want validation", code)
	}
	var apiErr *api.Error
	errors.As(err, &apiErr)
	if apiErr.Message != "Result id not found" {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestGetResultUpstreamFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := client.GetResult(context.Background(), 1)
	if code := apiErrorCode(t, err); code != api.ErrorCodeUnavailable {
		t.Errorf("code = %v, want unavailable", code)
	}
}

func TestGetResultUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()
	client := NewClient(server.URL, 0)

	_, err := client.GetResult(context.Background(), 1)
	if code := apiErrorCode(t, err); code != api.ErrorCodeUnavailable {
		t.Errorf("code = %v, want unavailable", code)
	}
}

func TestResultIdentity(t *testing.T) {
	tests := []struct {
		name         string
		result       Result
		wantSubject  api.Subject
		wantTestcase string
		wantErr      bool
	}{
		{
			name: "original_spec_nvr preferred",
			result: Result{
				Data: map[string]any{
					"original_spec_nvr": []any{"glibc-2.26-27.fc27"},
					"item":              []any{"glibc-2.26-27.fc27"},
					"type":              []any{"koji_build"},
				},
				Testcase: testcase("dist.rpmdeplint"),
			},
			wantSubject:  api.Subject{"original_spec_nvr": "glibc-2.26-27.fc27"},
			wantTestcase: "dist.rpmdeplint",
		},
		{
			name: "koji build",
			result: Result{
				Data: map[string]any{
					"item": []any{"glibc-2.26-27.fc27"},
					"type": []any{"koji_build"},
				},
				Testcase: testcase("dist.rpmdeplint"),
			},
			wantSubject:  api.Subject{"item": "glibc-2.26-27.fc27", "type": "koji_build"},
			wantTestcase: "dist.rpmdeplint",
		},
		{
			name: "bodhi update with plain string values",
			result: Result{
				Data: map[string]any{
					"item": "FEDORA-2017-7c3676c25e",
					"type": "bodhi_update",
				},
				Testcase: testcase("update.install_default_update_netinst"),
			},
			wantSubject:  api.Subject{"item": "FEDORA-2017-7c3676c25e", "type": "bodhi_update"},
			wantTestcase: "update.install_default_update_netinst",
		},
		{
			name: "unsupported type",
			result: Result{
				Data: map[string]any{
					"item": []any{"something"},
					"type": []any{"compose"},
				},
				Testcase: testcase("compose.cloud.all"),
			},
			wantErr: true,
		},
		{
			name: "missing testcase name",
			result: Result{
				Data: map[string]any{
					"item": []any{"glibc-2.26-27.fc27"},
					"type": []any{"koji_build"},
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject, tc, err := tt.result.Identity()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				if code := apiErrorCode(t, err); code != api.ErrorCodeValidation {
					t.Errorf("code = %v, want validation", code)
				}
				return
			}
			if err != nil {
				t.Fatalf("Identity: %v", err)
			}
			if !subject.Equal(tt.wantSubject) {
				t.Errorf("subject = %v, want %v", subject, tt.wantSubject)
			}
			if tc != tt.wantTestcase {
				t.Errorf("testcase = %q, want %q", tc, tt.wantTestcase)
			}
		})
	}
}

func testcase(name string) struct {
	Name string `json:"name"`
} {
	return struct {
		Name string `json:"name"`
	}{Name: name}
}
