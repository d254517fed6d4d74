package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-sitecontent/pkg/sitecontent"
	"github.com/tendant/simple-sitecontent/pkg/sitecontent/api"
	"github.com/tendant/simple-sitecontent/pkg/sitecontent/assetref"
	"github.com/tendant/simple-sitecontent/pkg/sitecontent/cache"
	"github.com/tendant/simple-sitecontent/pkg/sitecontent/repo/memory"
	repopg "github.com/tendant/simple-sitecontent/pkg/sitecontent/repo/postgres"
	"github.com/tendant/simple-sitecontent/pkg/sitecontent/repo/sqlite"
	fsstorage "github.com/tendant/simple-sitecontent/pkg/sitecontent/storage/fs"
	memorystorage "github.com/tendant/simple-sitecontent/pkg/sitecontent/storage/memory"
	s3storage "github.com/tendant/simple-sitecontent/pkg/sitecontent/storage/s3"
)

// App bundles everything built from a ServerConfig.
type App struct {
	Service    sitecontent.Service
	Repository sitecontent.Repository
	Assets     sitecontent.AssetStore
	Cache      *cache.Store
	Resolver   *assetref.Resolver

	config  *ServerConfig
	closers []func() error
}

// Build wires the repository, asset store, cache and service described by c.
func (c *ServerConfig) Build(ctx context.Context) (*App, error) {
	app := &App{config: c}

	repo, closeRepo, err := c.BuildRepository(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}
	app.Repository = repo
	if closeRepo != nil {
		app.closers = append(app.closers, closeRepo)
	}

	backend, store, err := c.BuildAssetStore(ctx)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to build asset store: %w", err)
	}
	app.Assets = store

	resolver, err := assetref.NewResolver(c.PublicBaseURL)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Resolver = resolver

	app.Cache = cache.New(repo, c.CacheTTL)

	options := []sitecontent.Option{
		sitecontent.WithRepository(repo),
		sitecontent.WithAssetStore(backend, store),
		sitecontent.WithAssetPrefix(c.AssetPrefix),
	}
	if c.CacheInvalidateOnWrite {
		options = append(options, sitecontent.WithAfterPut(app.Cache.InvalidateHook()))
	}

	svc, err := sitecontent.New(options...)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to create service: %w", err)
	}
	app.Service = svc

	slog.Info("Site content service configured",
		"environment", c.Environment,
		"database", c.redactedDatabase(),
		"storage", backend,
		"cache_ttl", c.CacheTTL,
		"cache_invalidate_on_write", c.CacheInvalidateOnWrite)

	return app, nil
}

// Handler returns the HTTP handler for the built service.
func (a *App) Handler(opts ...api.Option) *api.Handler {
	base := []api.Option{
		api.WithCache(a.Cache),
		api.WithResolver(a.Resolver),
		api.WithAssetPrefix(a.config.AssetPrefix),
		api.WithMaxUploadBytes(a.config.MaxUploadBytes),
	}
	return api.New(a.Service, append(base, opts...)...)
}

// Close releases the repository connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// BuildRepository opens the repository named by DatabaseURL. The returned
// close function is nil for the memory repository.
func (c *ServerConfig) BuildRepository(ctx context.Context) (sitecontent.Repository, func() error, error) {
	kind, dsn, err := c.Database()
	if err != nil {
		return nil, nil, err
	}

	switch kind {
	case DatabaseMemory:
		return memory.New(), nil, nil

	case DatabaseSQLite:
		repo, err := sqlite.Open(dsn)
		if err != nil {
			return nil, nil, err
		}
		return repo, repo.Close, nil

	case DatabasePostgres:
		if c.RunMigrations {
			if err := repopg.Migrate(ctx, dsn, c.DBSchema); err != nil {
				return nil, nil, err
			}
		}
		cfg, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		schema := c.DBSchema
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			if schema == "" {
				return nil
			}
			_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
			return err
		}
		pool, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create pgx pool: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := pool.Ping(pingCtx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("database ping failed: %w", err)
		}
		return repopg.NewWithPool(pool), func() error { pool.Close(); return nil }, nil
	}

	return nil, nil, fmt.Errorf("unsupported database type: %s", kind)
}

// BuildAssetStore creates the asset store named by StorageURL and returns it
// with its backend name.
func (c *ServerConfig) BuildAssetStore(ctx context.Context) (string, sitecontent.AssetStore, error) {
	target, err := c.Storage()
	if err != nil {
		return "", nil, err
	}

	switch target.Kind {
	case StorageMemory:
		return StorageMemory, memorystorage.New(), nil

	case StorageFS:
		store, err := fsstorage.New(fsstorage.Config{BaseDir: target.Dir})
		if err != nil {
			return "", nil, err
		}
		return StorageFS, store, nil

	case StorageS3:
		store, err := s3storage.New(ctx, s3storage.Config{
			Region:                 c.S3.Region,
			Bucket:                 target.Bucket,
			Prefix:                 target.Prefix,
			AccessKeyID:            c.S3.AccessKeyID,
			SecretAccessKey:        c.S3.SecretAccessKey,
			Endpoint:               c.S3.Endpoint,
			UsePathStyle:           c.S3.UsePathStyle,
			EnableSSE:              c.S3.EnableSSE,
			SSEAlgorithm:           c.S3.SSEAlgorithm,
			SSEKMSKeyID:            c.S3.SSEKMSKeyID,
			CreateBucketIfNotExist: c.S3.CreateBucketIfNotExist,
		})
		if err != nil {
			return "", nil, err
		}
		return StorageS3, store, nil
	}

	return "", nil, fmt.Errorf("unsupported storage type: %s", target.Kind)
}

// Migrate applies the Postgres schema. SQLite and memory repositories
// create their tables on open, so Migrate is a no-op for them.
func (c *ServerConfig) Migrate(ctx context.Context) error {
	kind, dsn, err := c.Database()
	if err != nil {
		return err
	}
	if kind != DatabasePostgres {
		slog.Info("No migrations needed", "database", kind)
		return nil
	}
	return repopg.Migrate(ctx, dsn, c.DBSchema)
}

func (c *ServerConfig) redactedDatabase() string {
	kind, dsn, err := c.Database()
	if err != nil || kind != DatabasePostgres {
		return c.DatabaseURL
	}
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return kind
	}
	return fmt.Sprintf("postgres://%s@%s:%d/%s", cfg.User, cfg.Host, cfg.Port, cfg.Database)
}

// IsDevelopment reports whether the server runs in development mode.
func (c *ServerConfig) IsDevelopment() bool {
	return c.Environment == "development"
}
