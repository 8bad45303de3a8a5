// Package app assembles the configured database, model registry, API and
// HTTP stack into a runnable service
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "github.com/lib/pq"              // registers "postgres"
	_ "github.com/mattn/go-sqlite3"    // registers "sqlite3"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/zcapi-go/zcapi/internal/api"
	"github.com/zcapi-go/zcapi/internal/cli/config"
	"github.com/zcapi-go/zcapi/internal/orm/codegen"
	"github.com/zcapi-go/zcapi/internal/orm/crud"
	"github.com/zcapi-go/zcapi/internal/orm/migrate"
	"github.com/zcapi-go/zcapi/internal/orm/schema"
	"github.com/zcapi-go/zcapi/internal/web/cache"
	"github.com/zcapi-go/zcapi/internal/web/middleware"
	"github.com/zcapi-go/zcapi/internal/web/ratelimit"
	"github.com/zcapi-go/zcapi/internal/web/router"
)

// App holds the long-lived components of a running service
type App struct {
	Config     *config.Config
	Logger     *zap.Logger
	DB         *sql.DB
	Dialect    crud.Dialect
	Registry   *schema.Registry
	Store      *crud.Store
	Models     *api.Models
	Dispatcher *api.Dispatcher
	Cache      cache.Cache
	Limiter    ratelimit.RateLimiter

	closeOnce sync.Once
	closeErr  error
}

// LoadRegistry reads the schema file and freezes the resulting registry
func LoadRegistry(path string) (*schema.Registry, error) {
	registry := schema.NewRegistry()
	if err := schema.LoadFile(path, registry); err != nil {
		return nil, err
	}
	if err := registry.Freeze(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return registry, nil
}

// OpenDatabase opens the configured database, sizes its pool and pings it
func OpenDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, crud.Dialect, error) {
	dialect, err := crud.DialectFor(cfg.Driver)
	if err != nil {
		return nil, nil, err
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s database: %w", cfg.Driver, err)
	}

	if cfg.Driver == config.DriverSQLite && isMemoryDSN(cfg.DSN) {
		// every connection would otherwise see its own empty database, and
		// closing the last one drops it
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("connect to %s database: %w", cfg.Driver, err)
	}

	return db, dialect, nil
}

func isMemoryDSN(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// New builds the service from configuration. Tables are created first when
// migrate.auto is set.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	registry, err := LoadRegistry(cfg.Schema.Path)
	if err != nil {
		return nil, err
	}

	db, dialect, err := OpenDatabase(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:   cfg,
		Logger:   logger,
		DB:       db,
		Dialect:  dialect,
		Registry: registry,
		Store:    crud.NewStore(db, dialect, nil),
	}

	if cfg.Migrate.Auto {
		runner, err := a.Migrator()
		if err != nil {
			a.Close()
			return nil, err
		}
		if err := runner.Up(ctx, registry); err != nil {
			a.Close()
			return nil, err
		}
	}

	a.Models = api.NewModels(registry, a.Store)
	serializer := api.NewSerializer(a.Models, cfg.Serializer.MaxDepth)
	a.Dispatcher = api.NewDispatcher(a.Models, serializer, logger.Named("api"))

	a.Cache, err = newCache(ctx, cfg.Cache)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Limiter, err = newLimiter(ctx, cfg.RateLimit, cfg.Cache.Redis)
	if err != nil {
		a.Close()
		return nil, err
	}

	logger.Info("models registered",
		zap.Int("count", registry.Count()),
		zap.Strings("apps", registry.Apps()),
		zap.String("driver", cfg.Database.Driver))

	return a, nil
}

func newCache(ctx context.Context, cfg config.CacheConfig) (cache.Cache, error) {
	cc := cache.DefaultCacheConfig()
	if cfg.TTL != 0 {
		cc.DefaultTTL = cfg.TTL
	}

	switch cfg.Backend {
	case config.CacheMemory:
		return cache.NewMemoryCache(cc), nil
	case config.CacheRedis:
		c, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			CacheConfig: cc,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to redis cache: %w", err)
		}
		return c, nil
	default:
		return nil, nil
	}
}

func newLimiter(ctx context.Context, cfg config.RateLimitConfig, rc config.RedisConfig) (ratelimit.RateLimiter, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.Backend != config.CacheRedis {
		return ratelimit.NewTokenBucket(cfg.Requests, cfg.Window)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis rate limiter: %w", err)
	}

	limiter, err := ratelimit.NewRedisRateLimiter(ratelimit.RedisRateLimiterConfig{
		Client: client,
		Limit:  cfg.Requests,
		Window: cfg.Window,
		Prefix: "zcapi:ratelimit:",
	})
	if err != nil {
		client.Close()
		return nil, err
	}
	return limiter, nil
}

// Migrator returns a migration runner for the app's database
func (a *App) Migrator() (*migrate.Runner, error) {
	gen, err := codegen.NewDDLGenerator(a.Dialect.Name())
	if err != nil {
		return nil, err
	}
	return migrate.NewRunner(a.DB, gen, a.Logger.Named("migrate")), nil
}

// Handler returns the HTTP handler serving the model API
func (a *App) Handler() http.Handler {
	r := router.NewRouter(a.Config.Server.Prefix)
	r.Use(
		middleware.RequestID(),
		middleware.Logging(a.Logger.Named("http")),
		middleware.Recovery(a.Logger.Named("http")),
	)
	if a.Limiter != nil {
		r.Use(middleware.RateLimit(a.Limiter, middleware.IPKeyFunc, a.Logger.Named("ratelimit")))
	}
	r.Use(middleware.Timeout(a.Config.Server.RequestTimeout))
	if a.Cache != nil {
		r.Use(cache.NewMiddleware(a.Cache, a.Config.Cache.TTL, a.Logger.Named("cache")).Handler)
	}

	r.RegisterModelRoutes(router.NewHandler(a.Dispatcher, a.Logger.Named("api"), a.Config.Server.ShowErrors))
	return r
}

// Close releases the rate limiter, the cache and the database. Later calls return the result
// of the first.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		var errs []error
		if a.Limiter != nil {
			errs = append(errs, a.Limiter.Close())
		}
		if a.Cache != nil {
			errs = append(errs, a.Cache.Close())
		}
		if a.DB != nil {
			errs = append(errs, a.DB.Close())
		}
		a.closeErr = errors.Join(errs...)
	})
	return a.closeErr
}
