// Package postgres provides a PostgreSQL implementation of storage.Store.
// It uses pgx/v5 for connection pooling and JSONB for subject storage.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/releng/waiverd/pkg/api"
	"github.com/releng/waiverd/pkg/storage"
)

// Store is a PostgreSQL-backed waiver store. Id assignment comes from a
// BIGSERIAL sequence, which gives the strictly increasing, globally
// ordered ids the obsolescence semantics depend on.
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store implements storage.Store at compile time.
var _ storage.Store = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

const waiverColumns = "id, subject, testcase, username, proxied_by, product_version, waived, comment, created_at"

// Insert appends a waiver. The database assigns id and timestamp.
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
	err = s.pool.QueryRow(ctx, `
		INSERT INTO waivers (
			subject, subject_canon, testcase, username, proxied_by,
			product_version, waived, comment, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		RETURNING id, created_at
	`,
		subjectJSON, string(canon), w.Testcase, w.Username, w.ProxiedBy,
		w.ProductVersion, w.Waived, w.Comment,
	).Scan(&stored.ID, &stored.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("inserting waiver: %w", err)
	}

	return &stored, nil
}

// Get retrieves a waiver by id.
func (s *Store) Get(ctx context.Context, id int64) (*api.Waiver, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+waiverColumns+" FROM waivers WHERE id = $1", id)

	w, err := scanWaiver(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying waiver: %w", err)
	}
	return w, nil
}

// Query returns the page of waivers matching the filter plus the total
// match count. The obsolescence collapse and the count both run inside
// the database.
func (s *Store) Query(ctx context.Context, f storage.Filter, p storage.Page) (*storage.QueryResult, error) {
	where, args, err := storage.BuildWhere(f, storage.Dollar)
	if err != nil {
		return nil, err
	}

	var total int64
	countQuery := "SELECT COUNT(*) FROM waivers " + where
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting waivers: %w", err)
	}

	query := "SELECT " + waiverColumns + " FROM waivers " + where + " " + storage.OrderBy
	if p.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %s OFFSET %s",
			storage.Dollar(len(args)+1), storage.Dollar(len(args)+2))
		args = append(args, p.Limit, p.Offset())
	}

	rows, err := s.pool.Query(ctx, query, args...)
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

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// scanWaiver reads one waivers row in waiverColumns order.
func scanWaiver(row pgx.Row) (*api.Waiver, error) {
	var w api.Waiver
	var subjectJSON []byte
	err := row.Scan(
		&w.ID, &subjectJSON, &w.Testcase, &w.Username, &w.ProxiedBy,
		&w.ProductVersion, &w.Waived, &w.Comment, &w.Timestamp,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(subjectJSON, &w.Subject); err != nil {
		return nil, fmt.Errorf("unmarshaling subject: %w", err)
	}
	return &w, nil
}
