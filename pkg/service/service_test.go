package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/releng/waiverd/pkg/api"
	"github.com/releng/waiverd/pkg/auth"
	"github.com/releng/waiverd/pkg/storage/memory"
)

// fakeResolver maps result ids to identities.
type fakeResolver struct {
	subject  api.Subject
	testcase string
	err      error
}

func (r *fakeResolver) Resolve(context.Context, int64) (api.Subject, string, error) {
	if r.err != nil {
		return nil, "", r.err
	}
	return r.subject, r.testcase, nil
}

// captureNotifier records the waivers it was given.
type captureNotifier struct {
	waivers []*api.Waiver
	err     error
}

func (n *captureNotifier) WaiverCreated(_ context.Context, w *api.Waiver) error {
	n.waivers = append(n.waivers, w)
	return n.err
}

func identityCtx(username string) context.Context {
	return auth.SetIdentity(context.Background(), &auth.Identity{Username: username})
}

func boolPtr(b bool) *bool    { return &b }
func int64Ptr(i int64) *int64 { return &i }

func createRequest() *api.CreateWaiverRequest {
	return &api.CreateWaiverRequest{
		Subject:        api.Subject{"item": "glibc-2.26-27.fc27", "type": "koji_build"},
		Testcase:       "dist.rpmdeplint",
		Waived:         boolPtr(true),
		ProductVersion: "fedora-27",
		Comment:        "flaky test",
	}
}

func TestCreate(t *testing.T) {
	notifier := &captureNotifier{}
	svc := New(memory.New(), WithNotifier(notifier))

	waiver, err := svc.Create(identityCtx("alice"), createRequest())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if waiver.ID == 0 {
		t.Error("waiver should have an assigned id")
	}
	if waiver.Username != "alice" {
		t.Errorf("Username = %q, want authenticated caller", waiver.Username)
	}
	if waiver.ProxiedBy != "" {
		t.Errorf("ProxiedBy = %q, want empty for self-created waiver", waiver.ProxiedBy)
	}
	if waiver.Timestamp.IsZero() {
		t.Error("Timestamp should be assigned")
	}
	if len(notifier.waivers) != 1 || notifier.waivers[0].ID != waiver.ID {
		t.Errorf("notifier saw %+v", notifier.waivers)
	}
}

func TestCreateWithoutIdentity(t *testing.T) {
	svc := New(memory.New())

	_, err := svc.Create(context.Background(), createRequest())
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Code != api.ErrorCodeUnauthorized {
		t.Fatalf("error = %v, want unauthorized", err)
	}
}

func TestCreateProxyUser(t *testing.T) {
	svc := New(memory.New(), WithSuperusers([]string{"bodhi"}))

	req := createRequest()
	req.Username = "alice"
	waiver, err := svc.Create(identityCtx("bodhi"), req)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if waiver.Username != "alice" {
		t.Errorf("Username = %q, want the proxied user", waiver.Username)
	}
	if waiver.ProxiedBy != "bodhi" {
		t.Errorf("ProxiedBy = %q, want the caller", waiver.ProxiedBy)
	}
}

func TestCreateProxyUserDenied(t *testing.T) {
	svc := New(memory.New())

	req := createRequest()
	req.Username = "alice"
	_, err := svc.Create(identityCtx("mallory"), req)

	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Code != api.ErrorCodeForbidden {
		t.Fatalf("error = %v, want forbidden", err)
	}
	if apiErr.Message != "user mallory does not have the proxyuser ability" {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestCreateByResultID(t *testing.T) {
	resolver := &fakeResolver{
		subject:  api.Subject{"original_spec_nvr": "glibc-2.26-27.fc27"},
		testcase: "dist.rpmdeplint",
	}
	svc := New(memory.New(), WithResolver(resolver))

	req := &api.CreateWaiverRequest{
		ResultID:       int64Ptr(123),
		Waived:         boolPtr(true),
		ProductVersion: "fedora-27",
	}
	waiver, err := svc.Create(identityCtx("alice"), req)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !waiver.Subject.Equal(resolver.subject) {
		t.Errorf("Subject = %v, want resolved subject", waiver.Subject)
	}
	if waiver.Testcase != "dist.rpmdeplint" {
		t.Errorf("Testcase = %q", waiver.Testcase)
	}
}

func TestCreateByResultIDResolverError(t *testing.T) {
	resolver := &fakeResolver{err: api.NewValidationError("Result id not found")}
	svc := New(memory.New(), WithResolver(resolver))

	req := &api.CreateWaiverRequest{
		ResultID:       int64Ptr(999),
		Waived:         boolPtr(true),
		ProductVersion: "fedora-27",
	}
	_, err := svc.Create(identityCtx("alice"), req)
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Message != "Result id not found" {
		t.Fatalf("error = %v, want resolver error surfaced", err)
	}
}

func TestCreateValidationErrors(t *testing.T) {
	svc := New(memory.New())

	req := &api.CreateWaiverRequest{Waived: boolPtr(true), ProductVersion: "fedora-27"}
	_, err := svc.Create(identityCtx("alice"), req)
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Message != api.MissingIdentityError {
		t.Fatalf("error = %v, want missing identity message", err)
	}
}

func TestNotifierFailureDoesNotUndoCreate(t *testing.T) {
	notifier := &captureNotifier{err: errors.New("broker down")}
	svc := New(memory.New(), WithNotifier(notifier))

	waiver, err := svc.Create(identityCtx("alice"), createRequest())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := svc.Get(context.Background(), waiver.ID)
	if err != nil {
		t.Fatalf("Get after failed notification: %v", err)
	}
	if got.ID != waiver.ID {
		t.Errorf("waiver should remain stored")
	}
}

func TestGetNotFound(t *testing.T) {
	svc := New(memory.New())

	_, err := svc.Get(context.Background(), 42)
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Code != api.ErrorCodeNotFound {
		t.Fatalf("error = %v, want not found", err)
	}
}

func populate(t *testing.T, svc *Service, n int) {
	t.Helper()
	ctx := identityCtx("alice")
	for i := 0; i < n; i++ {
		req := createRequest()
		req.Subject = api.Subject{"item": fmt.Sprintf("pkg-%d", i), "type": "koji_build"}
		if _, err := svc.Create(ctx, req); err != nil {
			t.Fatalf("Create #%d: %v", i, err)
		}
	}
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parsing %q: %v", raw, err)
	}
	return u
}

func TestListPaginationLinks(t *testing.T) {
	svc := New(memory.New())
	populate(t, svc, 30)

	reqURL := mustURL(t, "https://waiverd.example.com/api/v1.0/waivers/?page=2&limit=10&username=alice")
	list, err := svc.List(context.Background(), &api.FilterRequest{Username: "alice", Page: 2, Limit: 10}, reqURL)
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	if len(list.Data) != 10 {
		t.Errorf("len(Data) = %d, want 10", len(list.Data))
	}

	wantLinks := map[string]struct {
		link *string
		page string
	}{
		"prev":  {list.Prev, "1"},
		"next":  {list.Next, "3"},
		"first": {list.First, "1"},
		"last":  {list.Last, "3"},
	}
	for name, w := range wantLinks {
		if w.link == nil {
			t.Errorf("%s link should be set", name)
			continue
		}
		u := mustURL(t, *w.link)
		if got := u.Query().Get("page"); got != w.page {
			t.Errorf("%s link page = %q, want %q (%s)", name, got, w.page, *w.link)
		}
		if got := u.Query().Get("username"); got != "alice" {
			t.Errorf("%s link should preserve the username param (%s)", name, *w.link)
		}
		if !u.IsAbs() {
			t.Errorf("%s link should be absolute (%s)", name, *w.link)
		}
	}
}

func TestListFirstAndLastPageEnds(t *testing.T) {
	svc := New(memory.New())
	populate(t, svc, 30)

	reqURL := mustURL(t, "https://waiverd.example.com/api/v1.0/waivers/?limit=10")
	list, err := svc.List(context.Background(), &api.FilterRequest{Limit: 10}, reqURL)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if list.Prev != nil {
		t.Error("first page should have no prev link")
	}
	if list.Next == nil {
		t.Error("first page of three should have a next link")
	}

	reqURL = mustURL(t, "https://waiverd.example.com/api/v1.0/waivers/?page=3&limit=10")
	list, err = svc.List(context.Background(), &api.FilterRequest{Page: 3, Limit: 10}, reqURL)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if list.Next != nil {
		t.Error("last page should have no next link")
	}
	if list.Prev == nil {
		t.Error("last page should have a prev link")
	}
}

func TestListOutOfRangePage(t *testing.T) {
	svc := New(memory.New())
	populate(t, svc, 5)

	reqURL := mustURL(t, "https://waiverd.example.com/api/v1.0/waivers/?page=99")
	list, err := svc.List(context.Background(), &api.FilterRequest{Page: 99}, reqURL)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list.Data) != 0 {
		t.Errorf("len(Data) = %d, want 0", len(list.Data))
	}
	if list.Prev != nil || list.Next != nil || list.First != nil || list.Last != nil {
		t.Error("out-of-range page should have null navigation links")
	}
}

func TestListInvalidSince(t *testing.T) {
	svc := New(memory.New())

	reqURL := mustURL(t, "https://waiverd.example.com/api/v1.0/waivers/")
	_, err := svc.List(context.Background(), &api.FilterRequest{Since: "yesterday"}, reqURL)
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Message != api.SinceFormatError {
		t.Fatalf("error = %v, want the since format message", err)
	}
}

func TestFilterReturnsAllMatches(t *testing.T) {
	svc := New(memory.New())
	populate(t, svc, 12)

	data, err := svc.Filter(context.Background(), &api.FilterRequest{
		Results: []api.ResultFilter{
			{Subject: api.Subject{"item": "pkg-3", "type": "koji_build"}},
			{Subject: api.Subject{"item": "pkg-7", "type": "koji_build"}, Testcase: "dist.rpmdeplint"},
		},
	})
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if len(data.Data) != 2 {
		t.Errorf("len(Data) = %d, want 2", len(data.Data))
	}
}
