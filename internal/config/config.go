// Package config defines the top-level configuration for the index service
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by BTCIDX_* environment variables.
type Config struct {
	Index    IndexConfig    `toml:"index"`
	Book     BookConfig     `toml:"book"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Export   ExportConfig   `toml:"export"`
	Archive  ArchiveConfig  `toml:"archive"`
	Server   ServerConfig   `toml:"server"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// IndexConfig holds the consolidated price computation parameters and the
// venue set feeding it.
type IndexConfig struct {
	// Venues lists the venue ids polled for depth snapshots each tick.
	Venues []string `toml:"venues"`

	// SpacingVol is the volume-grid spacing in BTC.
	SpacingVol float64 `toml:"spacing_vol"`

	// DevMid is the relative spread ceiling used to pick the depth cutoff.
	DevMid float64 `toml:"dev_mid"`

	// ErrBand is the allowed relative deviation of a venue mid from the
	// cross-venue median before the venue is dropped.
	ErrBand float64 `toml:"err_band"`

	// MaxSample caps the number of levels taken per side per venue.
	MaxSample int `toml:"max_sample"`

	// MaxStale is how old a venue book may be before it is ignored.
	MaxStale duration `toml:"max_stale"`

	// TickInterval is the computation cadence.
	TickInterval duration `toml:"tick_interval"`

	// FetchTimeout bounds each venue REST fetch inside a tick.
	FetchTimeout duration `toml:"fetch_timeout"`
}

// BookConfig holds the local order book feed parameters.
type BookConfig struct {
	ProductID string `toml:"product_id"`
	Precision int    `toml:"precision"`
	WsURL     string `toml:"ws_url"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	CacheTTL   duration `toml:"cache_ttl"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ExportConfig holds feature-record export parameters.
type ExportConfig struct {
	Enabled   bool     `toml:"enabled"`
	Interval  duration `toml:"interval"`
	BatchSize int      `toml:"batch_size"`
}

// ArchiveConfig holds cold-storage rollover parameters.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	RetentionDays int      `toml:"retention_days"`
	Interval      duration `toml:"interval"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Index: IndexConfig{
			Venues:       []string{"coinbase", "kraken", "bitstamp", "gemini"},
			SpacingVol:   1.0,
			DevMid:       0.005,
			ErrBand:      0.05,
			MaxSample:    50,
			MaxStale:     duration{30 * time.Second},
			TickInterval: duration{time.Second},
			FetchTimeout: duration{800 * time.Millisecond},
		},
		Book: BookConfig{
			ProductID: "BTC-USD",
			Precision: 2,
			WsURL:     "wss://advanced-trade-ws.coinbase.com",
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "btcindex",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
			CacheTTL:   duration{time.Minute},
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "btcindex-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Export: ExportConfig{
			Enabled:   false,
			Interval:  duration{time.Second},
			BatchSize: 60,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 90,
			Interval:      duration{24 * time.Hour},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   0,
			RateWindow:  duration{time.Second},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"index": true,
	"book":  true,
	"full":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: index, book, full)", c.Mode))
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Index
	needsIndex := mode == "index" || mode == "full"
	if needsIndex {
		if len(c.Index.Venues) == 0 {
			errs = append(errs, "index: venues must not be empty for mode "+c.Mode)
		}
		if c.Index.SpacingVol <= 0 {
			errs = append(errs, "index: spacing_vol must be > 0")
		}
		if c.Index.DevMid <= 0 {
			errs = append(errs, "index: dev_mid must be > 0")
		}
		if c.Index.ErrBand <= 0 {
			errs = append(errs, "index: err_band must be > 0")
		}
		if c.Index.MaxSample < 1 {
			errs = append(errs, "index: max_sample must be >= 1")
		}
		if c.Index.MaxStale.Duration <= 0 {
			errs = append(errs, "index: max_stale must be > 0")
		}
		if c.Index.TickInterval.Duration <= 0 {
			errs = append(errs, "index: tick_interval must be > 0")
		}
		if c.Index.FetchTimeout.Duration <= 0 {
			errs = append(errs, "index: fetch_timeout must be > 0")
		}
	}

	// Book
	needsBook := mode == "book" || mode == "full"
	if needsBook {
		if strings.TrimSpace(c.Book.ProductID) == "" {
			errs = append(errs, "book: product_id must not be empty for mode "+c.Mode)
		}
		if c.Book.Precision < 0 {
			errs = append(errs, "book: precision must be >= 0")
		}
		if strings.TrimSpace(c.Book.WsURL) == "" {
			errs = append(errs, "book: ws_url must not be empty for mode "+c.Mode)
		}
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Export requires Postgres.
	if c.Export.Enabled {
		if !c.Postgres.Enabled {
			errs = append(errs, "export: postgres must be enabled when export is enabled")
		}
		if c.Export.Interval.Duration <= 0 {
			errs = append(errs, "export: interval must be > 0")
		}
		if c.Export.BatchSize < 1 {
			errs = append(errs, "export: batch_size must be >= 1")
		}
	}

	// Archive requires Postgres and S3 credentials.
	if c.Archive.Enabled {
		if !c.Postgres.Enabled {
			errs = append(errs, "archive: postgres must be enabled when archive is enabled")
		}
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archive is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archive is enabled")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
		if c.Archive.Interval.Duration <= 0 {
			errs = append(errs, "archive: interval must be > 0")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit > 0 && !c.Redis.Enabled {
			errs = append(errs, "server: redis must be enabled when rate_limit is set")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
