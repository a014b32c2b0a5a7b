package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/voyagen/castvault/internal/cache"
	"github.com/voyagen/castvault/internal/catalog"
	"github.com/voyagen/castvault/internal/config"
	"github.com/voyagen/castvault/internal/fetcher"
	"github.com/voyagen/castvault/internal/log"
	"github.com/voyagen/castvault/internal/service"
	"github.com/voyagen/castvault/internal/store"
)

// app holds the wired components shared by all commands. pg, rds and store
// are nil when the matching URL is not configured.
type app struct {
	cfg     *config.Config
	pg      *store.Postgres
	rds     *cache.Redis
	store   store.Store
	catalog *catalog.Cache
	syncer  *service.Syncer
	logger  zerolog.Logger

	schemaVersion uint // applied migration version, 0 without a database
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, logger: log.WithComponent("main")}

	if cfg.RedisURL != "" {
		rds, err := cache.New(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		if err := rds.Ping(ctx); err != nil {
			_ = rds.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		a.rds = rds
		a.logger.Info().Msg("redis connected (caching enabled)")
	} else {
		a.logger.Info().Msg("redis disabled (REDIS_URL not set)")
	}

	if cfg.DatabaseURL != "" {
		migrations := migrationsPath()
		if err := store.RunMigrations(cfg.DatabaseURL, migrations); err != nil {
			a.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		version, dirty, err := store.MigrationVersion(cfg.DatabaseURL, migrations)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		if dirty {
			a.Close()
			return nil, fmt.Errorf("migrate: schema version %d is dirty", version)
		}
		a.schemaVersion = version
		a.logger.Info().Uint("schema_version", version).Msg("migrations applied")
		pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("db: %w", err)
		}
		a.pg = pg
		a.store = pg
		if a.rds != nil {
			a.store = store.NewCachedStore(pg, a.rds)
		}
	} else {
		a.logger.Info().Msg("snapshots disabled (DATABASE_URL not set)")
	}

	var httpSrc fetcher.ByteSource = fetcher.NewHTTPSource(cfg.UserAgent, cfg.Timeout)
	var docs service.DocumentInvalidator
	if a.rds != nil {
		cached := fetcher.NewCachedSource(httpSrc, a.rds, cfg.DocumentTTL)
		httpSrc, docs = cached, cached
	}

	a.catalog = catalog.New(httpSrc, fetcher.NewAssetSource(cfg.AssetRoot), catalog.WithLogger(log.WithComponent("catalog")))
	a.syncer = service.NewSyncer(a.catalog, a.store, docs)
	return a, nil
}

// Close releases database and Redis connections.
func (a *app) Close() {
	if a.pg != nil {
		a.pg.Close()
	}
	if a.rds != nil {
		_ = a.rds.Close()
	}
}

// migrationsPath looks for ./migrations, then migrations next to the executable.
func migrationsPath() string {
	abs, err := filepath.Abs("migrations")
	if err != nil {
		abs = "migrations"
	}
	if _, err := os.Stat(abs); err != nil {
		if exe, e := os.Executable(); e == nil {
			abs = filepath.Join(filepath.Dir(exe), "migrations")
		}
	}
	return "file://" + abs
}

// assetFile returns the on-disk file behind an asset ref.
func assetFile(cfg *config.Config, ref string) (string, bool) {
	path, ok := catalog.AssetPath(ref)
	if !ok {
		return "", false
	}
	return filepath.Join(cfg.AssetRoot, path), true
}
