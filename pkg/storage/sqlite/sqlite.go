// Package sqlite provides a SQLite implementation of storage.Store for
// single-host and development deployments. It uses database/sql with the
// mattn/go-sqlite3 driver in WAL mode.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/releng/waiverd/pkg/api"
	"github.com/releng/waiverd/pkg/storage"
)

// Store is a SQLite-backed waiver store. AUTOINCREMENT guarantees ids
// are strictly increasing and never reused.
type Store struct {
	db *sql.DB

	now func() time.Time
}

// Ensure Store implements storage.Store at compile time.
var _ storage.Store = (*Store)(nil)

// New opens (or creates) the SQLite database at path and initializes the
// schema.
// WAL mode allows concurrent readers alongside the single writer, and
// the busy timeout keeps short lock contention from surfacing as errors.
func New(path string) (*Store, error) {
	connStr := path + "?mode=rwc&_journal_mode=WAL&_busy_timeout=3000"

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// One writer plus a few readers is all WAL mode supports.
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db, now: func() time.Time { return time.Now().UTC() }}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS waivers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		subject TEXT NOT NULL,
		subject_canon TEXT NOT NULL,
		testcase TEXT NOT NULL,
		username TEXT NOT NULL,
		proxied_by TEXT NOT NULL DEFAULT '',
		product_version TEXT NOT NULL,
		waived BOOLEAN NOT NULL,
		comment TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_waivers_subject_testcase ON waivers (subject_canon, testcase);
	CREATE INDEX IF NOT EXISTS idx_waivers_product_version ON waivers (product_version);
	CREATE INDEX IF NOT EXISTS idx_waivers_username ON waivers (username);
	CREATE INDEX IF NOT EXISTS idx_waivers_created_at ON waivers (created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

const waiverColumns = "id, subject, testcase, username, proxied_by, product_version, waived, comment, created_at"

// Insert appends a waiver, assigning its id and timestamp.
func (s *Store) Insert(ctx context.Context, w *api.Waiver) (*api.Waiver, error) {
	subjectJSON, err := json.Marshal(w.Subject)
	if err != nil {
		return nil, fmt.Errorf("marshaling subject: %w", err)
	}
	canon, err := w.Subject.Canonical()
	if err != nil {
		return nil, fmt.Errorf("canonicalizing subject: %w", err)
	}

	stored := *w
	stored.Timestamp = s.now()

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO waivers (
			subject, subject_canon, testcase, username, proxied_by,
			product_version, waived, comment, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(subjectJSON), string(canon), w.Testcase, w.Username, w.ProxiedBy,
		w.ProductVersion, w.Waived, w.Comment, stored.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting waiver: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading inserted id: %w", err)
	}
	stored.ID = id

	return &stored, nil
}

// Get retrieves a waiver by id.
func (s *Store) Get(ctx context.Context, id int64) (*api.Waiver, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+waiverColumns+" FROM waivers WHERE id = ?", id)

	w, err := scanWaiver(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying waiver: %w", err)
	}
	return w, nil
}

// Query returns the page of waivers matching the filter plus the total
// match count.
func (s *Store) Query(ctx context.Context, f storage.Filter, p storage.Page) (*storage.QueryResult, error) {
	where, args, err := storage.BuildWhere(f, storage.Question)
	if err != nil {
		return nil, err
	}

	var total int64
	countQuery := "SELECT COUNT(*) FROM waivers " + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting waivers: %w", err)
	}

	query := "SELECT " + waiverColumns + " FROM waivers " + where + " " + storage.OrderBy
	if p.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, p.Limit, p.Offset())
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying waivers: %w", err)
	}
	defer rows.Close()

	var waivers []*api.Waiver
	for rows.Next() {
		w, err := scanWaiver(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning waiver: %w", err)
		}
		waivers = append(waivers, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating waivers: %w", err)
	}

	return &storage.QueryResult{Waivers: waivers, Total: total}, nil
}

// HealthCheck verifies the database file is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanWaiver(row scanner) (*api.Waiver, error) {
	var w api.Waiver
	var subjectJSON string
	err := row.Scan(
		&w.ID, &subjectJSON, &w.Testcase, &w.Username, &w.ProxiedBy,
		&w.ProductVersion, &w.Waived, &w.Comment, &w.Timestamp,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(subjectJSON), &w.Subject); err != nil {
		return nil, fmt.Errorf("unmarshaling subject: %w", err)
	}
	return &w, nil
}
