// Command waiverd runs the waiver record-keeping service.
//
// Configuration is read from a YAML file (first of: the -config flag,
// $WAIVERD_CONFIG, ./config.yaml, /etc/waiverd/config.yaml), with
// WAIVERD_* environment variables taking precedence. See pkg/config
// for the full set of options.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/releng/waiverd/pkg/auth"
	"github.com/releng/waiverd/pkg/auth/cert"
	"github.com/releng/waiverd/pkg/auth/dummy"
	"github.com/releng/waiverd/pkg/auth/negotiate"
	"github.com/releng/waiverd/pkg/auth/oidc"
	"github.com/releng/waiverd/pkg/config"
	"github.com/releng/waiverd/pkg/notify"
	"github.com/releng/waiverd/pkg/resultsdb"
	"github.com/releng/waiverd/pkg/service"
	"github.com/releng/waiverd/pkg/storage"
	"github.com/releng/waiverd/pkg/storage/memory"
	"github.com/releng/waiverd/pkg/storage/postgres"
	"github.com/releng/waiverd/pkg/storage/sqlite"
	transporthttp "github.com/releng/waiverd/pkg/transport/http"
	"github.com/releng/waiverd/pkg/version"
)

func main() {
	if err := run(); err != nil {
		slog.Error("waiverd failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to the config file")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	store, err := buildStore(cfg)
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}
	defer store.Close()
	slog.Info("storage ready", "type", cfg.Storage.Type)

	authn, err := buildAuthenticator(cfg)
	if err != nil {
		return fmt.Errorf("creating authenticator: %w", err)
	}
	slog.Info("authentication configured", "method", authn.Method())

	opts := []service.Option{
		service.WithSuperusers(cfg.Superusers),
	}
	if cfg.ResultsDB.URL != "" {
		opts = append(opts, service.WithResolver(
			resultsdb.NewClient(cfg.ResultsDB.URL, cfg.ResultsDB.Timeout)))
	}
	if notifier := buildNotifier(cfg); notifier != nil {
		opts = append(opts, service.WithNotifier(notifier))
	}

	svc := service.New(store, opts...)

	adapter := transporthttp.NewAdapter(svc, store, authn, transporthttp.Config{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		MaxBodySize: cfg.Server.MaxBodySize,
	})

	srv := transporthttp.NewServer(adapter, transporthttp.ServerConfig{
		Addr:            fmt.Sprintf(":%d", cfg.Server.Port),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Logger:          slog.Default(),
	})

	slog.Info("waiverd starting", "version", version.Version, "port", cfg.Server.Port)
	return srv.ListenAndServe()
}

func buildStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Type {
	case "memory":
		return memory.New(), nil
	case "sqlite":
		return sqlite.New(cfg.Storage.SQLite.Path)
	case "postgres":
		return postgres.New(context.Background(), postgres.Config{
			DSN:            cfg.Storage.Postgres.DSN,
			MaxConns:       cfg.Storage.Postgres.MaxConns,
			MigrateOnStart: cfg.Storage.Postgres.MigrateOnStart,
		})
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
}

func buildAuthenticator(cfg *config.Config) (auth.Authenticator, error) {
	switch cfg.Auth.Method {
	case "dummy":
		return dummy.New(), nil
	case "cert":
		return cert.New(), nil
	case "negotiate":
		mech, err := negotiate.NewKerberosMechanism(
			cfg.Auth.Negotiate.KeytabPath, cfg.Auth.Negotiate.Principal)
		if err != nil {
			return nil, err
		}
		return negotiate.New(mech), nil
	case "oidc":
		return oidc.New(oidc.Config{
			Issuer:        cfg.Auth.OIDC.Issuer,
			Audience:      cfg.Auth.OIDC.Audience,
			JWKSURL:       cfg.Auth.OIDC.JWKSURL,
			ServiceScope:  cfg.Auth.OIDC.ServiceScope,
			UsernameClaim: cfg.Auth.OIDC.UsernameClaim,
			CacheTTL:      cfg.Auth.OIDC.CacheTTL,
		}), nil
	default:
		return nil, fmt.Errorf("unknown auth method %q", cfg.Auth.Method)
	}
}

func buildNotifier(cfg *config.Config) notify.Notifier {
	switch cfg.Notify.Type {
	case "log":
		return notify.NewLogNotifier(slog.Default())
	case "http":
		return notify.NewHTTPNotifier(cfg.Notify.URL, cfg.Notify.Timeout)
	default:
		return nil
	}
}
