// Package config provides unified configuration for the waiverd service.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. .env file via godotenv (development convenience)
//  3. YAML config file (discovered or explicitly specified)
//  4. Environment variable overrides (WAIVERD_ prefix)
//  5. File reference resolution (_file suffix fields)
//  6. Validation
package config

import "time"

// Config holds all configuration for the waiverd service.
type Config struct {
	Server     ServerConfig    `yaml:"server"`
	Storage    StorageConfig   `yaml:"storage"`
	Auth       AuthConfig      `yaml:"auth"`
	ResultsDB  ResultsDBConfig `yaml:"resultsdb"`
	Notify     NotifyConfig    `yaml:"notify"`
	Superusers []string        `yaml:"superusers"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 8080
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 30s
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // default: 120s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 30s
	MaxBodySize     int64         `yaml:"max_body_size"`    // default: 1 MB
}

// StorageConfig holds waiver store settings.
type StorageConfig struct {
	Type     string         `yaml:"type"` // "memory", "sqlite", or "postgres", default: "memory"
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path string `yaml:"path"` // database file path
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 25
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: false
}

// AuthConfig holds authentication settings. Exactly one method is
// active; it guards waiver creation only.
type AuthConfig struct {
	Method    string          `yaml:"method"` // "dummy", "negotiate", "oidc", or "cert", default: "dummy"
	Negotiate NegotiateConfig `yaml:"negotiate"`
	OIDC      OIDCConfig      `yaml:"oidc"`
}

// NegotiateConfig holds Kerberos settings for the negotiate method.
type NegotiateConfig struct {
	KeytabPath string `yaml:"keytab_path"`
	Principal  string `yaml:"principal"` // optional: restrict to one keytab principal
}

// OIDCConfig holds token validation settings for the oidc method.
type OIDCConfig struct {
	Issuer        string        `yaml:"issuer"`
	Audience      string        `yaml:"audience"`
	JWKSURL       string        `yaml:"jwks_url"`
	ServiceScope  string        `yaml:"service_scope"`
	UsernameClaim string        `yaml:"username_claim"` // default: "preferred_username"
	CacheTTL      time.Duration `yaml:"cache_ttl"`      // default: 1h
}

// ResultsDBConfig holds the legacy result lookup settings. An empty URL
// disables result_id submissions.
type ResultsDBConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"` // default: 60s
}

// NotifyConfig holds waiver event publication settings.
type NotifyConfig struct {
	Type    string        `yaml:"type"` // "none", "log", or "http", default: "log"
	URL     string        `yaml:"url"`  // webhook endpoint for type=http
	Timeout time.Duration `yaml:"timeout"`
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodySize:     1 << 20,
		},
		Storage: StorageConfig{
			Type: "memory",
			Postgres: PostgresConfig{
				MaxConns: 25,
			},
		},
		Auth: AuthConfig{
			Method: "dummy",
			OIDC: OIDCConfig{
				UsernameClaim: "preferred_username",
				CacheTTL:      time.Hour,
			},
		},
		ResultsDB: ResultsDBConfig{
			Timeout: 60 * time.Second,
		},
		Notify: NotifyConfig{
			Type:    "log",
			Timeout: 10 * time.Second,
		},
	}
}
