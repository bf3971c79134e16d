package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/releng/waiverd/pkg/api"
	"github.com/releng/waiverd/pkg/auth"
	"github.com/releng/waiverd/pkg/observability"
	"github.com/releng/waiverd/pkg/service"
	"github.com/releng/waiverd/pkg/storage"
	"github.com/releng/waiverd/pkg/transport"
	"github.com/releng/waiverd/pkg/version"
)

// APIPrefix is the versioned path prefix of the waiver API.
const APIPrefix = "/api/v1.0"

// Adapter serves the waiver API over HTTP. It routes requests to the
// service layer and serializes responses.
type Adapter struct {
	service *service.Service
	store   storage.Store
	authn   auth.Authenticator
	mux     *http.ServeMux
	config  Config
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	Addr        string
	MaxBodySize int64
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		Addr:        ":8080",
		MaxBodySize: 1 << 20, // 1 MB
	}
}

// NewAdapter creates an HTTP adapter over the waiver service. The
// authenticator guards only the routes that create waivers; reads,
// healthcheck, about, and metrics stay public.
func NewAdapter(svc *service.Service, store storage.Store, authn auth.Authenticator, cfg Config) *Adapter {
	a := &Adapter{
		service: svc,
		store:   store,
		authn:   authn,
		mux:     http.NewServeMux(),
		config:  cfg,
	}

	authMW := auth.Middleware(authn)

	a.mux.Handle("POST "+APIPrefix+"/waivers/{$}", authMW(http.HandlerFunc(a.handleCreateWaiver)))
	a.mux.HandleFunc("GET "+APIPrefix+"/waivers/{$}", a.handleListWaivers)
	a.mux.HandleFunc("POST "+APIPrefix+"/waivers/+by-subjects-and-testcases", a.handleFilterWaivers)
	a.mux.HandleFunc("GET "+APIPrefix+"/waivers/{id}", a.handleGetWaiver)
	a.mux.HandleFunc("GET "+APIPrefix+"/about", a.handleAbout)
	a.mux.HandleFunc("GET "+APIPrefix+"/healthcheck", a.handleHealthcheck)
	a.mux.Handle("GET /metrics", promhttp.Handler())

	return a
}

// Handler returns the http.Handler for this adapter, wrapped with the
// standard middleware stack. Use this to integrate with an http.Server
// or test with httptest.
func (a *Adapter) Handler() http.Handler {
	return transport.Chain(
		transport.RequestID(),
		transport.Recovery(nil),
		transport.Logging(nil),
		observability.MetricsMiddleware,
	)(a.mux)
}

// handleCreateWaiver handles POST /api/v1.0/waivers/.
func (a *Adapter) handleCreateWaiver(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	var req api.CreateWaiverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteError(w, api.NewValidationError("request body too large (max %d bytes)", a.config.MaxBodySize))
			return
		}
		transport.WriteError(w, api.NewValidationError("invalid JSON body: %s", err))
		return
	}

	waiver, err := a.service.Create(r.Context(), &req)
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	transport.WriteJSON(w, http.StatusCreated, waiver)
}

// callbackPattern restricts JSONP callback names to plain identifiers
// (dots allowed for namespaced functions) so the wrapper cannot inject
// script content.
var callbackPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*(\.[A-Za-z_$][A-Za-z0-9_$]*)*$`)

// handleListWaivers handles GET /api/v1.0/waivers/.
func (a *Adapter) handleListWaivers(w http.ResponseWriter, r *http.Request) {
	req, err := parseListQuery(r.URL.Query())
	if err != nil {
		transport.WriteError(w, err)
		return
	}

	callback := r.URL.Query().Get("callback")
	if callback != "" && !callbackPattern.MatchString(callback) {
		transport.WriteError(w, api.NewValidationError("invalid callback parameter"))
		return
	}

	list, lerr := a.service.List(r.Context(), req, requestURL(r))
	if lerr != nil {
		transport.WriteError(w, lerr)
		return
	}

	if callback != "" {
		transport.WriteJSONP(w, http.StatusOK, callback, list)
		return
	}
	transport.WriteJSON(w, http.StatusOK, list)
}

// handleFilterWaivers handles POST /api/v1.0/waivers/+by-subjects-and-testcases.
// It takes the same filters as the list endpoint, but in a JSON body, so
// large filter sets do not overflow a query string.
func (a *Adapter) handleFilterWaivers(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	var req api.FilterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		transport.WriteError(w, api.NewValidationError("invalid JSON body: %s", err))
		return
	}

	data, err := a.service.Filter(r.Context(), &req)
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, data)
}

// handleGetWaiver handles GET /api/v1.0/waivers/{id}.
func (a *Adapter) handleGetWaiver(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		transport.WriteError(w, api.NewNotFoundError("waiver %s not found", r.PathValue("id")))
		return
	}

	waiver, serr := a.service.Get(r.Context(), id)
	if serr != nil {
		transport.WriteError(w, serr)
		return
	}
	transport.WriteJSON(w, http.StatusOK, waiver)
}

// handleAbout handles GET /api/v1.0/about.
func (a *Adapter) handleAbout(w http.ResponseWriter, r *http.Request) {
	transport.WriteJSON(w, http.StatusOK, map[string]string{
		"version":     version.Version,
		"auth_method": a.authn.Method(),
	})
}

// handleHealthcheck handles GET /api/v1.0/healthcheck.
func (a *Adapter) handleHealthcheck(w http.ResponseWriter, r *http.Request) {
	if err := a.store.HealthCheck(r.Context()); err != nil {
		transport.WriteError(w, api.NewUnavailableError("storage unavailable: %s", err))
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Health check OK"))
}

// parseListQuery maps list query parameters onto a FilterRequest.
func parseListQuery(q url.Values) (*api.FilterRequest, *api.Error) {
	req := &api.FilterRequest{
		ProductVersion: q.Get("product_version"),
		Username:       q.Get("username"),
		ProxiedBy:      q.Get("proxied_by"),
		Since:          q.Get("since"),
	}

	if raw := q.Get("results"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Results); err != nil {
			return nil, api.NewValidationError("invalid results parameter: %s", err)
		}
	}

	if raw := q.Get("include_obsolete"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, api.NewValidationError("invalid include_obsolete parameter")
		}
		req.IncludeObsolete = v
	}

	var perr *api.Error
	if req.Page, perr = parsePositiveInt(q.Get("page"), "page"); perr != nil {
		return nil, perr
	}
	if req.Limit, perr = parsePositiveInt(q.Get("limit"), "limit"); perr != nil {
		return nil, perr
	}
	return req, nil
}

func parsePositiveInt(raw, name string) (int, *api.Error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, api.NewValidationError("%s must be a positive integer", name)
	}
	return v, nil
}

// requestURL reconstructs the absolute URL of the request, honoring a
// reverse proxy's X-Forwarded-Proto, for pagination links. The callback
// parameter is dropped so JSONP wrappers do not leak into them.
func requestURL(r *http.Request) *url.URL {
	u := *r.URL
	u.Host = r.Host
	u.Scheme = "http"
	if r.TLS != nil {
		u.Scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		u.Scheme = proto
	}

	q := u.Query()
	q.Del("callback")
	u.RawQuery = q.Encode()
	return &u
}
