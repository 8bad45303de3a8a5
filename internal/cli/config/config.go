// Package config loads zcapi settings. ZCAPI_* environment variables
// override zcapi.yml, which overrides the built-in defaults.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix is the prefix of environment overrides (ZCAPI_SERVER_PORT etc.)
const EnvPrefix = "ZCAPI"

// Supported database drivers
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
)

// Supported cache backends
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config represents the zcapi configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Schema     SchemaConfig     `mapstructure:"schema"`
	Migrate    MigrateConfig    `mapstructure:"migrate"`
	Log        LogConfig        `mapstructure:"log"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Serializer SerializerConfig `mapstructure:"serializer"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Prefix          string        `mapstructure:"prefix"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	ShowErrors      bool          `mapstructure:"show_errors"`
	TLSCert         string        `mapstructure:"tls_cert"`
	TLSKey          string        `mapstructure:"tls_key"`
}

// Address returns host:port
func (s ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// DatabaseConfig represents database configuration. Pool settings are
// ignored for in-memory SQLite, which needs a single connection.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// SchemaConfig locates the model schema file
type SchemaConfig struct {
	Path string `mapstructure:"path"`
}

// MigrateConfig controls table creation at start-up
type MigrateConfig struct {
	Auto bool `mapstructure:"auto"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CacheConfig represents response cache configuration
type CacheConfig struct {
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

// RedisConfig represents the Redis cache backend
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// RateLimitConfig limits requests per client IP. The redis backend shares
// the cache.redis connection settings.
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
	Backend  string        `mapstructure:"backend"`
}

// SerializerConfig bounds object graph traversal
type SerializerConfig struct {
	MaxDepth int `mapstructure:"max_depth"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.prefix", "/api")
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.show_errors", false)
	v.SetDefault("server.tls_cert", "")
	v.SetDefault("server.tls_key", "")

	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.dsn", "zcapi.db?_foreign_keys=on")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", 10*time.Minute)

	v.SetDefault("schema.path", "schema.yml")
	v.SetDefault("migrate.auto", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("cache.backend", CacheNone)
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)

	v.SetDefault("serializer.max_depth", 64)

	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.requests", 100)
	v.SetDefault("ratelimit.window", time.Minute)
	v.SetDefault("ratelimit.backend", CacheMemory)
}

// Load reads the configuration. An explicit configFile must exist; without
// one, zcapi.yml (or .yaml) in the working directory is used when present.
// DATABASE_URL overrides database.dsn when ZCAPI_DATABASE_DSN is unset.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("zcapi")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if url := os.Getenv("DATABASE_URL"); url != "" && os.Getenv(EnvPrefix+"_DATABASE_DSN") == "" {
		config.Database.DSN = url
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the configuration for values the server cannot run with
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535, got: %d", c.Server.Port)
	}

	if c.Server.Prefix != "" {
		if !strings.HasPrefix(c.Server.Prefix, "/") {
			return fmt.Errorf("server.prefix must start with '/', got: %s", c.Server.Prefix)
		}
		if strings.HasSuffix(c.Server.Prefix, "/") {
			return fmt.Errorf("server.prefix must not end with '/', got: %s", c.Server.Prefix)
		}
	}

	if (c.Server.TLSCert == "") != (c.Server.TLSKey == "") {
		return fmt.Errorf("server.tls_cert and server.tls_key must be set together")
	}

	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres, DriverPgx:
	default:
		return fmt.Errorf("database.driver must be one of %s, %s, %s, got: %s",
			DriverSQLite, DriverPostgres, DriverPgx, c.Database.Driver)
	}

	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	if c.Database.MaxOpenConns < 0 || c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database pool sizes must not be negative")
	}

	if c.Schema.Path == "" {
		return fmt.Errorf("schema.path is required")
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return fmt.Errorf("log.level is invalid: %w", err)
	}

	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got: %s", c.Log.Format)
	}

	switch c.Cache.Backend {
	case CacheNone, CacheMemory:
	case CacheRedis:
		if c.Cache.Redis.Addr == "" {
			return fmt.Errorf("cache.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("cache.backend must be one of %s, %s, %s, got: %s",
			CacheNone, CacheMemory, CacheRedis, c.Cache.Backend)
	}

	if c.Serializer.MaxDepth < 0 {
		return fmt.Errorf("serializer.max_depth must not be negative, got: %d", c.Serializer.MaxDepth)
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.Requests <= 0 {
			return fmt.Errorf("ratelimit.requests must be positive, got: %d", c.RateLimit.Requests)
		}
		if c.RateLimit.Window <= 0 {
			return fmt.Errorf("ratelimit.window must be positive, got: %s", c.RateLimit.Window)
		}
		switch c.RateLimit.Backend {
		case CacheMemory:
		case CacheRedis:
			if c.Cache.Redis.Addr == "" {
				return fmt.Errorf("cache.redis.addr is required for the redis rate limiter")
			}
		default:
			return fmt.Errorf("ratelimit.backend must be one of %s, %s, got: %s",
				CacheMemory, CacheRedis, c.RateLimit.Backend)
		}
	}

	return nil
}
