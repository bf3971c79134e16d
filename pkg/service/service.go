// Package service implements the waiver operations behind the HTTP
// surface: creation with proxy-user enforcement and legacy result
// resolution, single-record fetch, and filtered listing with pagination.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/releng/waiverd/pkg/api"
	"github.com/releng/waiverd/pkg/auth"
	"github.com/releng/waiverd/pkg/notify"
	"github.com/releng/waiverd/pkg/observability"
	"github.com/releng/waiverd/pkg/storage"
)

// Pagination defaults for list requests.
const (
	DefaultPage  = 1
	DefaultLimit = 10
)

// filterPageLimit is the page size used internally when collecting the
// full unpaginated match set.
const filterPageLimit = 500

// ResultResolver resolves a legacy result id into the subject and
// testcase identifying a waiver.
type ResultResolver interface {
	Resolve(ctx context.Context, resultID int64) (api.Subject, string, error)
}

// Service coordinates waiver operations over a store.
type Service struct {
	store      storage.Store
	resolver   ResultResolver
	notifier   notify.Notifier
	superusers map[string]bool
	logger     *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithResolver enables result_id submissions via the given resolver.
func WithResolver(r ResultResolver) Option {
	return func(s *Service) { s.resolver = r }
}

// WithNotifier publishes created waivers through n.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithSuperusers grants the proxyuser ability to the named users.
func WithSuperusers(users []string) Option {
	return func(s *Service) {
		for _, u := range users {
			s.superusers[u] = true
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// New creates a waiver service over the store.
func New(store storage.Store, opts ...Option) *Service {
	s := &Service{
		store:      store,
		superusers: make(map[string]bool),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates and stores a new waiver. The caller identity must be
// present in the context. When the request names a different username,
// the caller needs the proxyuser ability and is recorded as proxied_by.
// A configured notifier is invoked after the insert; its failures are
// logged but never undo the stored waiver.
func (s *Service) Create(ctx context.Context, req *api.CreateWaiverRequest) (*api.Waiver, error) {
	identity := auth.IdentityFromContext(ctx)
	if identity == nil {
		return nil, api.NewUnauthorizedError("authentication required", nil)
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	username := identity.Username
	proxiedBy := ""
	if req.Username != "" {
		if !s.superusers[identity.Username] {
			return nil, api.NewForbiddenError(
				"user %s does not have the proxyuser ability", identity.Username)
		}
		username = req.Username
		proxiedBy = identity.Username
	}

	subject := req.Subject
	testcase := req.Testcase
	if req.ResultID != nil {
		if s.resolver == nil {
			return nil, api.NewValidationError("submission by result_id is not supported")
		}
		var err error
		subject, testcase, err = s.resolver.Resolve(ctx, *req.ResultID)
		if err != nil {
			return nil, err
		}
	}

	waiver := &api.Waiver{
		Subject:        subject,
		Testcase:       testcase,
		Username:       username,
		ProxiedBy:      proxiedBy,
		ProductVersion: req.ProductVersion,
		Waived:         *req.Waived,
		Comment:        req.Comment,
	}

	stored, err := s.store.Insert(ctx, waiver)
	if err != nil {
		return nil, fmt.Errorf("inserting waiver: %w", err)
	}
	observability.WaiversCreatedTotal.Inc()

	s.logger.Info("waiver created",
		"waiver_id", stored.ID,
		"testcase", stored.Testcase,
		"username", stored.Username,
		"proxied_by", stored.ProxiedBy,
		"waived", stored.Waived,
	)

	if s.notifier != nil {
		if err := s.notifier.WaiverCreated(ctx, stored); err != nil {
			observability.NotifierFailuresTotal.Inc()
			s.logger.Warn("waiver notification failed", "waiver_id", stored.ID, "error", err)
		}
	}

	return stored, nil
}

// Get fetches a single waiver by id.
func (s *Service) Get(ctx context.Context, id int64) (*api.Waiver, error) {
	waiver, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, api.NewNotFoundError("waiver %d not found", id)
		}
		return nil, fmt.Errorf("fetching waiver %d: %w", id, err)
	}
	return waiver, nil
}

// List queries waivers and builds the paginated collection envelope.
// requestURL is the caller's full URL, used to derive the navigation
// links; only its page parameter varies between them.
func (s *Service) List(ctx context.Context, req *api.FilterRequest, requestURL *url.URL) (*api.WaiverList, error) {
	since, verr := req.Validate()
	if verr != nil {
		return nil, verr
	}

	page := req.Page
	if page == 0 {
		page = DefaultPage
	}
	limit := req.Limit
	if limit == 0 {
		limit = DefaultLimit
	}

	result, err := s.store.Query(ctx, storage.Filter{
		Results:         req.Results,
		ProductVersion:  req.ProductVersion,
		Username:        req.Username,
		ProxiedBy:       req.ProxiedBy,
		Since:           since,
		IncludeObsolete: req.IncludeObsolete,
	}, storage.Page{Number: page, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("querying waivers: %w", err)
	}

	list := &api.WaiverList{Data: result.Waivers}
	if list.Data == nil {
		list.Data = []*api.Waiver{}
	}

	lastPage := int((result.Total + int64(limit) - 1) / int64(limit))
	if page > lastPage {
		// Out of range: an empty page with no navigation.
		return list, nil
	}

	list.First = pageLink(requestURL, 1)
	list.Last = pageLink(requestURL, lastPage)
	if page > 1 {
		list.Prev = pageLink(requestURL, page-1)
	}
	if page < lastPage {
		list.Next = pageLink(requestURL, page+1)
	}
	return list, nil
}

// Filter returns every waiver matching the given criteria, without a
// pagination envelope. It drains the store page by page so large filter
// sets stay bounded per query.
func (s *Service) Filter(ctx context.Context, req *api.FilterRequest) (*api.WaiverData, error) {
	since, verr := req.Validate()
	if verr != nil {
		return nil, verr
	}

	filter := storage.Filter{
		Results:         req.Results,
		ProductVersion:  req.ProductVersion,
		Username:        req.Username,
		ProxiedBy:       req.ProxiedBy,
		Since:           since,
		IncludeObsolete: req.IncludeObsolete,
	}

	data := &api.WaiverData{Data: []*api.Waiver{}}
	for page := 1; ; page++ {
		result, err := s.store.Query(ctx, filter, storage.Page{Number: page, Limit: filterPageLimit})
		if err != nil {
			return nil, fmt.Errorf("querying waivers: %w", err)
		}
		data.Data = append(data.Data, result.Waivers...)
		if int64(len(data.Data)) >= result.Total || len(result.Waivers) == 0 {
			break
		}
	}
	return data, nil
}

// pageLink reproduces the request URL with only the page parameter
// replaced.
func pageLink(u *url.URL, page int) *string {
	link := *u
	q := link.Query()
	q.Set("page", strconv.Itoa(page))
	link.RawQuery = q.Encode()
	s := link.String()
	return &s
}
