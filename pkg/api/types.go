package api

import "time"

// Waiver records that a named user has manually overridden (waived) or
// un-waived a specific test result. Waivers are immutable once created;
// a waiver is obsoleted only by insertion of a newer waiver for the same
// subject and testcase.
type Waiver struct {
	// ID is unique, monotonically assigned by the store, never reused.
	ID int64 `json:"id"`

	// Subject identifies the thing under test.
	Subject Subject `json:"subject"`

	// Testcase identifies which check was waived.
	Testcase string `json:"testcase"`

	// Username is the person the waiver is attributed to.
	Username string `json:"username"`

	// ProxiedBy is the caller who created the waiver on Username's
	// behalf, or empty if self-created.
	ProxiedBy string `json:"proxied_by"`

	ProductVersion string `json:"product_version"`

	// Waived true marks the result waived; false explicitly revokes a
	// prior waiver for the same subject and testcase.
	Waived bool `json:"waived"`

	Comment string `json:"comment"`

	// Timestamp is assigned server-side at creation and increases
	// monotonically with ID.
	Timestamp time.Time `json:"timestamp"`
}

// CreateWaiverRequest is the body of POST /waivers/. Identity of the
// waived item comes from exactly one of ResultID or Subject+Testcase.
type CreateWaiverRequest struct {
	Subject  Subject `json:"subject,omitempty"`
	Testcase string  `json:"testcase,omitempty"`

	// ResultID is the deprecated numeric identity, resolved to
	// subject/testcase via the result lookup service before storage.
	ResultID *int64 `json:"result_id,omitempty"`

	Waived         *bool  `json:"waived"`
	ProductVersion string `json:"product_version"`
	Comment        string `json:"comment,omitempty"`

	// Username, when set, attributes the waiver to another user. The
	// caller must then hold the proxyuser ability.
	Username string `json:"username,omitempty"`
}

// ResultFilter matches waivers whose subject deeply equals Subject and,
// when Testcase is set, whose testcase equals it. Subject is mandatory.
type ResultFilter struct {
	Subject  Subject `json:"subject"`
	Testcase string  `json:"testcase,omitempty"`
}

// FilterRequest holds the query criteria for listing waivers. The
// individual criteria are AND-combined; entries within Results are
// OR-combined.
type FilterRequest struct {
	Results         []ResultFilter `json:"results,omitempty"`
	ProductVersion  string         `json:"product_version,omitempty"`
	Username        string         `json:"username,omitempty"`
	ProxiedBy       string         `json:"proxied_by,omitempty"`
	Since           string         `json:"since,omitempty"`
	IncludeObsolete bool           `json:"include_obsolete,omitempty"`
	Page            int            `json:"page,omitempty"`
	Limit           int            `json:"limit,omitempty"`
}

// WaiverList is the paginated collection envelope. The navigation fields
// are absolute URLs reproducing the active query parameters with only
// page changed, or null at the ends.
type WaiverList struct {
	Data  []*Waiver `json:"data"`
	Prev  *string   `json:"prev"`
	Next  *string   `json:"next"`
	First *string   `json:"first"`
	Last  *string   `json:"last"`
}

// WaiverData is the unpaginated envelope returned by the
// by-subjects-and-testcases endpoint.
type WaiverData struct {
	Data []*Waiver `json:"data"`
}
