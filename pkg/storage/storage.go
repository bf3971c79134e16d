// Package storage defines the waiver store contract and the query engine
// shared by its backends. Waivers are append-only: a store assigns ids
// and timestamps on insert and never mutates or deletes rows.
package storage

import (
	"context"
	"errors"

	"github.com/releng/waiverd/pkg/api"
)

// Sentinel errors for store operations.
var (
	// ErrNotFound is returned when a waiver id does not exist.
	ErrNotFound = errors.New("waiver not found")
)

// Filter holds the criteria a query matches waivers against. All set
// criteria are AND-combined; entries within Results are OR-combined.
type Filter struct {
	// Results matches waivers whose subject deeply equals an entry's
	// subject and, when the entry's testcase is set, whose testcase
	// equals it.
	Results []api.ResultFilter

	ProductVersion string
	Username       string
	ProxiedBy      string

	// Since restricts waivers to an inclusive timestamp range.
	Since api.TimeRange

	// IncludeObsolete, when false, keeps only the waiver with the
	// highest id per (subject, testcase) group.
	IncludeObsolete bool
}

// Page selects a 1-indexed slice of the result set.
type Page struct {
	Number int
	Limit  int
}

// Offset returns the row offset for the page.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Limit
}

// QueryResult carries one page of waivers plus the total number of
// matching rows, which the service needs for navigation links.
type QueryResult struct {
	Waivers []*api.Waiver
	Total   int64
}

// Store is the persistent append-only waiver collection. Query results
// are always ordered by timestamp descending with id descending as the
// tiebreak.
type Store interface {
	// Insert appends a waiver, assigning its id and timestamp. Ids are
	// strictly increasing and never reused.
	Insert(ctx context.Context, w *api.Waiver) (*api.Waiver, error)

	// Get retrieves a waiver by id. Returns ErrNotFound if absent.
	Get(ctx context.Context, id int64) (*api.Waiver, error)

	// Query returns the page of waivers matching the filter together
	// with the total match count. Obsolescence collapsing and counting
	// happen inside the store's query layer, never by loading the full
	// table.
	Query(ctx context.Context, f Filter, p Page) (*QueryResult, error)

	// HealthCheck verifies the store is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases connections and resources.
	Close() error
}
