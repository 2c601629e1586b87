package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies BTCIDX_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known BTCIDX_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Index ──
	setStringSlice(&cfg.Index.Venues, "BTCIDX_INDEX_VENUES")
	setFloat64(&cfg.Index.SpacingVol, "BTCIDX_INDEX_SPACING_VOL")
	setFloat64(&cfg.Index.DevMid, "BTCIDX_INDEX_DEV_MID")
	setFloat64(&cfg.Index.ErrBand, "BTCIDX_INDEX_ERR_BAND")
	setInt(&cfg.Index.MaxSample, "BTCIDX_INDEX_MAX_SAMPLE")
	setDuration(&cfg.Index.MaxStale, "BTCIDX_INDEX_MAX_STALE")
	setDuration(&cfg.Index.TickInterval, "BTCIDX_INDEX_TICK_INTERVAL")
	setDuration(&cfg.Index.FetchTimeout, "BTCIDX_INDEX_FETCH_TIMEOUT")

	// ── Book ──
	setStr(&cfg.Book.ProductID, "BTCIDX_BOOK_PRODUCT_ID")
	setInt(&cfg.Book.Precision, "BTCIDX_BOOK_PRECISION")
	setStr(&cfg.Book.WsURL, "BTCIDX_BOOK_WS_URL")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "BTCIDX_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "BTCIDX_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "BTCIDX_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "BTCIDX_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "BTCIDX_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "BTCIDX_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "BTCIDX_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "BTCIDX_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "BTCIDX_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "BTCIDX_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "BTCIDX_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "BTCIDX_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "BTCIDX_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "BTCIDX_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "BTCIDX_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "BTCIDX_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "BTCIDX_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "BTCIDX_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.CacheTTL, "BTCIDX_REDIS_CACHE_TTL")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "BTCIDX_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "BTCIDX_S3_REGION")
	setStr(&cfg.S3.Bucket, "BTCIDX_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "BTCIDX_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "BTCIDX_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "BTCIDX_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "BTCIDX_S3_FORCE_PATH_STYLE")

	// ── Export ──
	setBool(&cfg.Export.Enabled, "BTCIDX_EXPORT_ENABLED")
	setDuration(&cfg.Export.Interval, "BTCIDX_EXPORT_INTERVAL")
	setInt(&cfg.Export.BatchSize, "BTCIDX_EXPORT_BATCH_SIZE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "BTCIDX_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "BTCIDX_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "BTCIDX_ARCHIVE_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "BTCIDX_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "BTCIDX_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "BTCIDX_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "BTCIDX_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "BTCIDX_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "BTCIDX_SERVER_RATE_WINDOW")

	// ── Top-level ──
	setStr(&cfg.Mode, "BTCIDX_MODE")
	setStr(&cfg.LogLevel, "BTCIDX_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
