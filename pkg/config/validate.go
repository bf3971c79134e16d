package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}

	switch c.Storage.Type {
	case "memory":
	case "sqlite":
		if c.Storage.SQLite.Path == "" {
			errs = append(errs, fmt.Errorf("storage.sqlite.path is required when storage.type is \"sqlite\""))
		}
	case "postgres":
		if c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"memory\", \"sqlite\", or \"postgres\", got %q", c.Storage.Type))
	}

	switch c.Auth.Method {
	case "dummy", "cert":
	case "negotiate":
		if c.Auth.Negotiate.KeytabPath == "" {
			errs = append(errs, fmt.Errorf("auth.negotiate.keytab_path is required when auth.method is \"negotiate\""))
		}
	case "oidc":
		if c.Auth.OIDC.Issuer == "" {
			errs = append(errs, fmt.Errorf("auth.oidc.issuer is required when auth.method is \"oidc\""))
		}
		if c.Auth.OIDC.JWKSURL == "" {
			errs = append(errs, fmt.Errorf("auth.oidc.jwks_url is required when auth.method is \"oidc\""))
		}
	default:
		errs = append(errs, fmt.Errorf("auth.method must be \"dummy\", \"negotiate\", \"oidc\", or \"cert\", got %q", c.Auth.Method))
	}

	switch c.Notify.Type {
	case "none", "log":
	case "http":
		if c.Notify.URL == "" {
			errs = append(errs, fmt.Errorf("notify.url is required when notify.type is \"http\""))
		}
	default:
		errs = append(errs, fmt.Errorf("notify.type must be \"none\", \"log\", or \"http\", got %q", c.Notify.Type))
	}

	return errors.Join(errs...)
}
