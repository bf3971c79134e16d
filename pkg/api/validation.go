package api

import (
	"strings"
	"time"
)

// SinceFormatError is the exact message returned for a malformed 'since'
// query parameter.
const SinceFormatError = "'since' parameter not in ISO8601 format"

// MissingIdentityError is the exact message returned when a creation
// request carries neither a result_id nor a subject/testcase pair.
const MissingIdentityError = "Either result_id or subject/testcase are required arguments."

// ConflictingIdentityError is the message returned when a creation
// request carries both a result_id and a subject or testcase.
const ConflictingIdentityError = "Only result_id or subject/testcase are allowed arguments, not both."

// TimeRange is an inclusive timestamp interval. A zero Start or End
// leaves that bound open.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// IsZero reports whether neither bound is set.
func (r TimeRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Contains reports whether t falls within the range, bounds inclusive.
func (r TimeRange) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && t.After(r.End) {
		return false
	}
	return true
}

// sinceLayouts are the accepted ISO-8601 shapes, with and without
// fractional seconds and zone designator.
var sinceLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// ParseSince parses the 'since' query parameter: a single ISO-8601
// timestamp (inclusive lower bound) or two comma-separated timestamps
// (inclusive lower and upper bound). Any malformed input fails with the
// literal SinceFormatError message.
func ParseSince(since string) (TimeRange, *Error) {
	var r TimeRange
	parts := strings.Split(since, ",")
	if len(parts) > 2 {
		return r, NewValidationError("%s", SinceFormatError)
	}

	start, err := parseISO8601(parts[0])
	if err != nil {
		return r, NewValidationError("%s", SinceFormatError)
	}
	r.Start = start

	if len(parts) == 2 {
		end, err := parseISO8601(parts[1])
		if err != nil {
			return r, NewValidationError("%s", SinceFormatError)
		}
		r.End = end
	}
	return r, nil
}

func parseISO8601(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range sinceLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// Validate checks a creation request: waived and product_version are
// required, and exactly one of result_id or subject/testcase must
// identify the waived item.
func (r *CreateWaiverRequest) Validate() *Error {
	missing := make(map[string]string)
	if r.Waived == nil {
		missing["waived"] = "Missing required parameter in the JSON body"
	}
	if r.ProductVersion == "" {
		missing["product_version"] = "Missing required parameter in the JSON body"
	}
	if len(missing) > 0 {
		return NewFieldValidationError(missing)
	}

	hasResultID := r.ResultID != nil
	hasSubject := r.Subject != nil || r.Testcase != ""

	if hasResultID && hasSubject {
		return NewValidationError("%s", ConflictingIdentityError)
	}
	if !hasResultID {
		// The direct path needs both halves of the identity.
		if r.Subject == nil || r.Testcase == "" {
			return NewValidationError("%s", MissingIdentityError)
		}
	}
	return nil
}

// Validate checks a list request: every result filter entry must supply
// a subject, and the since parameter must parse. It returns the parsed
// time range for the store layer.
func (r *FilterRequest) Validate() (TimeRange, *Error) {
	for _, rf := range r.Results {
		if rf.Subject == nil {
			return TimeRange{}, NewValidationError("subject is required for each result filter entry")
		}
	}
	if r.Page < 0 || r.Limit < 0 {
		return TimeRange{}, NewValidationError("page and limit must be positive integers")
	}
	if r.Since == "" {
		return TimeRange{}, nil
	}
	return ParseSince(r.Since)
}
