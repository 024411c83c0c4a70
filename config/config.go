// Package config loads process configuration from the environment. A .env
// file, when present, seeds variables that are not already set.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/Skryldev/userstore/db"
)

// Config is everything the binaries need.
type Config struct {
	Database DatabaseConfig
	HTTPAddr string `env:"HTTP_ADDR" env-default:":8080"`
	LogLevel string `env:"LOG_LEVEL" env-default:"info"`
}

// Level returns LogLevel as a slog.Level. Load has already rejected values
// that do not parse.
func (c *Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// DatabaseConfig selects the driver and tunes the pool. When URL is empty the
// DSN is built from the DB_* parts by the registered driver.
type DatabaseConfig struct {
	Driver string `env:"DB_DRIVER" env-default:"postgres"`
	URL    string `env:"DATABASE_URL"`

	Host     string `env:"DB_HOST"`
	Port     int    `env:"DB_PORT"`
	User     string `env:"DB_USER"`
	Password string `env:"DB_PASSWORD"`
	Name     string `env:"DB_NAME"`
	SSLMode  string `env:"DB_SSLMODE"`

	MaxOpenConns       int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	MaxIdleConns       int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	ConnMaxLifetime    time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"5m"`
	ConnMaxIdleTime    time.Duration `env:"DB_CONN_MAX_IDLE_TIME" env-default:"2m"`
	DefaultTimeout     time.Duration `env:"DB_DEFAULT_TIMEOUT" env-default:"10s"`
	SlowQueryThreshold time.Duration `env:"DB_SLOW_QUERY_THRESHOLD" env-default:"200ms"`
	LogArgs            bool          `env:"DB_LOG_ARGS" env-default:"false"`
	MigrateOnStart     bool          `env:"MIGRATE_ON_START" env-default:"false"`
}

// Load reads envFile (ignored if missing) and then the environment.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: read %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}

	var l slog.Level
	if err := l.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return nil, fmt.Errorf("config: LOG_LEVEL: %w", err)
	}
	if cfg.Database.URL == "" && cfg.Database.Host == "" && cfg.Database.Name == "" {
		return nil, errors.New("config: either DATABASE_URL or DB_HOST/DB_NAME must be set")
	}
	return &cfg, nil
}

// Options returns the structured connection parts for the driver registry.
func (d DatabaseConfig) Options() db.DriverOptions {
	return db.DriverOptions{
		Host:     d.Host,
		Port:     d.Port,
		User:     d.User,
		Password: d.Password,
		Database: d.Name,
		SSLMode:  d.SSLMode,
	}
}

// DSN returns DATABASE_URL, or builds one from the structured options.
func (d DatabaseConfig) DSN() (string, error) {
	if d.URL != "" {
		return d.URL, nil
	}
	drv, err := db.LookupDriver(d.Driver)
	if err != nil {
		return "", err
	}
	return drv.DSN(d.Options())
}

// Dialect is the migration set matching Driver.
func (d DatabaseConfig) Dialect() string {
	drv, err := db.LookupDriver(d.Driver)
	if err != nil {
		return d.Driver
	}
	return drv.Dialect()
}

// PoolConfig converts d into a db.Config with the given hooks. DSN is
// DATABASE_URL and stays empty when the DSN is to be built from parts.
func (d DatabaseConfig) PoolConfig(hooks ...db.Hook) db.Config {
	return db.Config{
		DSN:             d.URL,
		DriverName:      d.Driver,
		MaxOpenConns:    d.MaxOpenConns,
		MaxIdleConns:    d.MaxIdleConns,
		ConnMaxLifetime: d.ConnMaxLifetime,
		ConnMaxIdleTime: d.ConnMaxIdleTime,
		DefaultTimeout:  d.DefaultTimeout,
		Hooks:           hooks,
	}
}

// Open opens the pool: DATABASE_URL as-is when set, otherwise through the
// driver registry from the DB_* parts.
func (d DatabaseConfig) Open(hooks ...db.Hook) (*db.DB, error) {
	cfg := d.PoolConfig(hooks...)
	if d.URL != "" {
		return db.Open(cfg)
	}
	return db.OpenWithDriver(d.Driver, d.Options(), cfg)
}
