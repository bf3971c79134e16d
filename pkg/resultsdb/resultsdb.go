// Package resultsdb provides a read-only HTTP client for a resultsdb
// instance. It is used to resolve legacy result_id submissions into the
// subject and testcase that identify a waiver.
package resultsdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/releng/waiverd/pkg/api"
	"github.com/releng/waiverd/pkg/observability"
)

// DefaultTimeout bounds a single result lookup.
const DefaultTimeout = 60 * time.Second

// Result is the subset of a resultsdb result the service needs.
type Result struct {
	ID       int64          `json:"id"`
	Data     map[string]any `json:"data"`
	Testcase struct {
		Name string `json:"name"`
	} `json:"testcase"`
}

// Client fetches results over resultsdb's HTTP API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a resultsdb client. A zero timeout selects
// DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	baseURL = strings.TrimRight(baseURL, "/")

	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
	}
}

// GetResult fetches a single result by id. A missing result is a
// caller error; any other failure means resultsdb is unavailable.
func (c *Client) GetResult(ctx context.Context, id int64) (*Result, error) {
	url := fmt.Sprintf("%s/results/%d", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, api.NewUnavailableError("failed to build resultsdb request: %s", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.ResultLookupsTotal.WithLabelValues("error").Inc()
		return nil, api.NewUnavailableError("failed to retrieve result: %s", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		observability.ResultLookupsTotal.WithLabelValues("not_found").Inc()
		return nil, api.NewValidationError("Result id not found")
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		observability.ResultLookupsTotal.WithLabelValues("error").Inc()
		return nil, api.NewUnavailableError("resultsdb returned status %d", resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		observability.ResultLookupsTotal.WithLabelValues("error").Inc()
		return nil, api.NewUnavailableError("failed to parse resultsdb response: %s", err)
	}
	observability.ResultLookupsTotal.WithLabelValues("ok").Inc()
	return &result, nil
}

// Resolve fetches a result by id and derives its waiver identity.
func (c *Client) Resolve(ctx context.Context, id int64) (api.Subject, string, error) {
	result, err := c.GetResult(ctx, id)
	if err != nil {
		return nil, "", err
	}
	return result.Identity()
}

// Identity derives the (subject, testcase) pair describing a result.
// Results carrying an original_spec_nvr use it directly; koji_build and
// bodhi_update results use their item and type. Anything else cannot be
// waived by result id.
func (r *Result) Identity() (api.Subject, string, error) {
	if r.Testcase.Name == "" {
		return nil, "", api.NewValidationError("resultsdb result has no testcase name")
	}

	if nvr := firstValue(r.Data, "original_spec_nvr"); nvr != "" {
		return api.Subject{"original_spec_nvr": nvr}, r.Testcase.Name, nil
	}

	resultType := firstValue(r.Data, "type")
	switch resultType {
	case "koji_build", "bodhi_update":
		item := firstValue(r.Data, "item")
		if item == "" {
			return nil, "", api.NewValidationError("resultsdb result of type %q has no item", resultType)
		}
		return api.Subject{"item": item, "type": resultType}, r.Testcase.Name, nil
	}

	return nil, "", api.NewValidationError(
		"It is not possible to submit a waiver by result_id for this result. " +
			"Please try again specifying a subject and a testcase.")
}

// firstValue reads a result data key. resultsdb stores result data
// values as lists of strings, but plain strings appear in the wild too.
func firstValue(data map[string]any, key string) string {
	switch v := data[key].(type) {
	case string:
		return v
	case []any:
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return s
			}
		}
	}
	return ""
}
