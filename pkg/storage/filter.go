package storage

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/releng/waiverd/pkg/api"
)

// Placeholder renders the n-th (1-based) SQL bind parameter for a
// backend's placeholder dialect.
type Placeholder func(n int) string

// Dollar renders pgx-style $1, $2, ... placeholders.
func Dollar(n int) string { return "$" + strconv.Itoa(n) }

// Question renders database/sql-style ? placeholders.
func Question(n int) string { return "?" }

// latestSubquery is the set-membership condition implementing the
// obsolescence collapse: a waiver is active iff its id is the maximum
// within its (subject, testcase) group. Computed by the database so the
// result set is never materialized application-side.
const latestSubquery = "id IN (SELECT MAX(id) FROM waivers GROUP BY subject_canon, testcase)"

// BuildWhere translates a Filter into a SQL WHERE clause over the
// waivers table and its bind arguments. Returns an empty clause when the
// filter matches everything.
func BuildWhere(f Filter, ph Placeholder) (string, []any, error) {
	var conds []string
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return ph(len(args))
	}

	if len(f.Results) > 0 {
		var ors []string
		for _, rf := range f.Results {
			canon, err := rf.Subject.Canonical()
			if err != nil {
				return "", nil, fmt.Errorf("canonicalizing filter subject: %w", err)
			}
			cond := "subject_canon = " + arg(string(canon))
			if rf.Testcase != "" {
				cond = "(" + cond + " AND testcase = " + arg(rf.Testcase) + ")"
			}
			ors = append(ors, cond)
		}
		conds = append(conds, "("+strings.Join(ors, " OR ")+")")
	}

	if f.ProductVersion != "" {
		conds = append(conds, "product_version = "+arg(f.ProductVersion))
	}
	if f.Username != "" {
		conds = append(conds, "username = "+arg(f.Username))
	}
	if f.ProxiedBy != "" {
		conds = append(conds, "proxied_by = "+arg(f.ProxiedBy))
	}

	// Timestamps are stored in UTC; SQLite compares them as text, so the
	// bounds must be rendered in the same zone to order correctly.
	if !f.Since.Start.IsZero() {
		conds = append(conds, "created_at >= "+arg(f.Since.Start.UTC()))
	}
	if !f.Since.End.IsZero() {
		conds = append(conds, "created_at <= "+arg(f.Since.End.UTC()))
	}

	if !f.IncludeObsolete {
		conds = append(conds, latestSubquery)
	}

	if len(conds) == 0 {
		return "", nil, nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args, nil
}

// OrderBy is the canonical result ordering: newest first, with id as the
// tiebreak since timestamps may collide at sub-resolution.
const OrderBy = "ORDER BY created_at DESC, id DESC"

// Matches applies the filter's criteria to a single waiver, except for
// the obsolescence collapse, which is a property of the whole collection
// and is applied by the caller. Used by the in-memory backend.
func Matches(w *api.Waiver, f Filter) bool {
	if len(f.Results) > 0 {
		matched := false
		for _, rf := range f.Results {
			if !w.Subject.Equal(rf.Subject) {
				continue
			}
			if rf.Testcase != "" && rf.Testcase != w.Testcase {
				continue
			}
			matched = true
			break
		}
		if !matched {
			return false
		}
	}
	if f.ProductVersion != "" && w.ProductVersion != f.ProductVersion {
		return false
	}
	if f.Username != "" && w.Username != f.Username {
		return false
	}
	if f.ProxiedBy != "" && w.ProxiedBy != f.ProxiedBy {
		return false
	}
	if !f.Since.IsZero() && !f.Since.Contains(w.Timestamp) {
		return false
	}
	return true
}
