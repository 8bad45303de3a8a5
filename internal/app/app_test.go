package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zcapi-go/zcapi/internal/cli/config"
	"github.com/zcapi-go/zcapi/internal/testing/fixtures"
	"github.com/zcapi-go/zcapi/internal/web/cache"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	path := filepath.Join(t.TempDir(), "schema.yml")
	require.NoError(t, os.WriteFile(path, fixtures.TestappSchema(), 0644))

	return &config.Config{
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            0,
			Prefix:          "/api",
			RequestTimeout:  5 * time.Second,
			ShutdownTimeout: time.Second,
		},
		Database:   config.DatabaseConfig{Driver: config.DriverSQLite, DSN: ":memory:?_foreign_keys=on"},
		Schema:     config.SchemaConfig{Path: path},
		Migrate:    config.MigrateConfig{Auto: true},
		Log:        config.LogConfig{Level: "info", Format: "console"},
		Cache:      config.CacheConfig{Backend: config.CacheNone, TTL: time.Minute},
		Serializer: config.SerializerConfig{MaxDepth: 64},
	}
}

func newApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func do(h http.Handler, method, target string, form url.Values) *httptest.ResponseRecorder {
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNew_ServesModels(t *testing.T) {
	a := newApp(t, testConfig(t))
	h := a.Handler()

	rec := do(h, http.MethodPost, "/api/testapp/actor/", url.Values{"name": {"Tom Hanks"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.JSONEq(t, `{"id": "1", "name": "Tom Hanks", "movies": []}`, rec.Body.String())

	rec = do(h, http.MethodGet, "/api/testapp/actor", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id": "1", "name": "Tom Hanks", "movies": []}]`, rec.Body.String())
	assert.Empty(t, rec.Header().Get(cache.StatusHeader))

	rec = do(h, http.MethodGet, "/api/testapp/actor/2/", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = do(h, http.MethodDelete, "/api/testapp/actor/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(h, http.MethodGet, "/api/testapp/actor/", nil)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestNew_MemoryCache(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Backend = config.CacheMemory
	a := newApp(t, cfg)
	h := a.Handler()

	do(h, http.MethodPost, "/api/testapp/movie/", url.Values{"title": {"Big"}})

	first := do(h, http.MethodGet, "/api/testapp/movie/", nil)
	assert.Equal(t, "MISS", first.Header().Get(cache.StatusHeader))
	second := do(h, http.MethodGet, "/api/testapp/movie/", nil)
	assert.Equal(t, "HIT", second.Header().Get(cache.StatusHeader))
	assert.Equal(t, first.Body.String(), second.Body.String())

	do(h, http.MethodPost, "/api/testapp/movie/", url.Values{"title": {"Richard III"}})

	third := do(h, http.MethodGet, "/api/testapp/movie/", nil)
	assert.Equal(t, "MISS", third.Header().Get(cache.StatusHeader))
	var movies []map[string]interface{}
	require.NoError(t, json.Unmarshal(third.Body.Bytes(), &movies))
	assert.Len(t, movies, 2)
}

func TestNew_RedisCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cfg := testConfig(t)
	cfg.Cache.Backend = config.CacheRedis
	cfg.Cache.Redis.Addr = mr.Addr()
	a := newApp(t, cfg)
	h := a.Handler()

	do(h, http.MethodGet, "/api/library/author/", nil)
	assert.Len(t, mr.Keys(), 1)

	do(h, http.MethodPost, "/api/library/author/", url.Values{"name": {"Ursula"}})
	assert.Empty(t, mr.Keys())
}

func TestNew_RateLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.RateLimit = config.RateLimitConfig{Enabled: true, Requests: 2, Window: time.Minute, Backend: config.CacheMemory}
	a := newApp(t, cfg)
	h := a.Handler()

	for i := 0; i < 2; i++ {
		rec := do(h, http.MethodGet, "/api/testapp/movie/", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	}

	rec := do(h, http.MethodGet, "/api/testapp/movie/", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "too_many_requests")
}

func TestNew_RedisRateLimit(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cfg := testConfig(t)
	cfg.Cache.Redis.Addr = mr.Addr()
	cfg.RateLimit = config.RateLimitConfig{Enabled: true, Requests: 1, Window: time.Minute, Backend: config.CacheRedis}
	a := newApp(t, cfg)
	h := a.Handler()

	rec := do(h, http.MethodGet, "/api/testapp/movie/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, mr.Exists("zcapi:ratelimit:ip:192.0.2.1"))

	rec = do(h, http.MethodGet, "/api/testapp/movie/", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"missing schema", func(c *config.Config) { c.Schema.Path = filepath.Join(t.TempDir(), "none.yml") }},
		{"unknown driver", func(c *config.Config) { c.Database.Driver = "mysql" }},
		{"unreachable redis", func(c *config.Config) {
			c.Cache.Backend = config.CacheRedis
			c.Cache.Redis.Addr = "127.0.0.1:1"
		}},
		{"unreachable redis rate limiter", func(c *config.Config) {
			c.RateLimit = config.RateLimitConfig{Enabled: true, Requests: 1, Window: time.Minute, Backend: config.CacheRedis}
			c.Cache.Redis.Addr = "127.0.0.1:1"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)
			_, err := New(context.Background(), cfg, nil)
			assert.Error(t, err)
		})
	}
}

func TestNew_WithoutAutoMigrate(t *testing.T) {
	cfg := testConfig(t)
	cfg.Migrate.Auto = false
	a := newApp(t, cfg)

	rec := do(a.Handler(), http.MethodGet, "/api/testapp/actor/", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	runner, err := a.Migrator()
	require.NoError(t, err)
	require.NoError(t, runner.Up(context.Background(), a.Registry))

	rec = do(a.Handler(), http.MethodGet, "/api/testapp/actor/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoadRegistry(t *testing.T) {
	cfg := testConfig(t)

	reg, err := LoadRegistry(cfg.Schema.Path)
	require.NoError(t, err)
	assert.True(t, reg.Frozen())
	assert.Equal(t, 6, reg.Count())

	bad := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(bad, []byte(`
apps:
  shop:
    models:
      - name: Order
        relations:
          - {name: customer, type: belongs_to, target: Customer}
`), 0644))
	_, err = LoadRegistry(bad)
	assert.Error(t, err)
}

func TestOpenDatabase_Pool(t *testing.T) {
	ctx := context.Background()

	db, dialect, err := OpenDatabase(ctx, config.DatabaseConfig{
		Driver:       config.DriverSQLite,
		DSN:          filepath.Join(t.TempDir(), "pool.db"),
		MaxOpenConns: 3,
		MaxIdleConns: 1,
	})
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, "sqlite", dialect.Name())
	assert.Equal(t, 3, db.Stats().MaxOpenConnections)

	mem, _, err := OpenDatabase(ctx, config.DatabaseConfig{
		Driver:       config.DriverSQLite,
		DSN:          ":memory:",
		MaxOpenConns: 3,
	})
	require.NoError(t, err)
	defer mem.Close()
	assert.Equal(t, 1, mem.Stats().MaxOpenConnections)
}

func TestIsMemoryDSN(t *testing.T) {
	assert.True(t, isMemoryDSN(":memory:"))
	assert.True(t, isMemoryDSN("file:test.db?mode=memory&cache=shared"))
	assert.False(t, isMemoryDSN("zcapi.db?_foreign_keys=on"))
}

func TestServe(t *testing.T) {
	a := newApp(t, testConfig(t))

	srv, err := a.NewServer()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:0", srv.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}

	assert.Error(t, a.DB.Ping(), "database should be closed after shutdown")
}
