package postgres

import "time"

// Config controls the connection pool and startup behavior of the
// PostgreSQL store.
type Config struct {
	// DSN is the connection string, e.g.
	// "postgres://waiverd:secret@db:5432/waiverd?sslmode=require".
	DSN string

	// MaxConns caps the pool size. Waiver traffic is light, so the
	// default of 10 leaves headroom without hogging the server.
	MaxConns int32

	// MinConns is how many idle connections the pool keeps warm
	// (default 2).
	MinConns int32

	// MaxConnLifetime bounds how long a connection is reused before the
	// pool cycles it (default 30 minutes).
	MaxConnLifetime time.Duration

	// MigrateOnStart applies pending schema migrations before the store
	// accepts queries.
	MigrateOnStart bool
}

func (c *Config) defaults() {
	if c.MaxConns == 0 {
		c.MaxConns = 10
	}
	if c.MinConns == 0 {
		c.MinConns = 2
	}
	if c.MaxConnLifetime == 0 {
		c.MaxConnLifetime = 30 * time.Minute
	}
}
