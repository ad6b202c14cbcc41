// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/offerdesk/tracker/internal/cache"
	"github.com/offerdesk/tracker/internal/repository"
)

// Record modes for the click write issued on the tracking path.
const (
	RecordModeAsync   = "async"
	RecordModeBounded = "bounded"
)

// Click sinks.
const (
	ClickSinkPostgres = "postgres"
	ClickSinkStream   = "stream"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL       string        `env:"DATABASE_URL,required"`
	DBMaxConns        int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns        int32         `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`

	// Cache (Redis)
	RedisURL         string        `env:"REDIS_URL,required"`
	RedisPoolSize    int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	RedisMinIdle     int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	RedisPoolTimeout time.Duration `env:"REDIS_POOL_TIMEOUT" envDefault:"4s"`

	// Base URL used for tracking links when no redirect domain is active.
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Tracking core
	TrackFallbackURL   string        `env:"TRACK_FALLBACK_URL" envDefault:"/"`
	TrackRecordMode    string        `env:"TRACK_RECORD_MODE" envDefault:"async"`
	TrackRecordTimeout time.Duration `env:"TRACK_RECORD_TIMEOUT" envDefault:"2s"`
	TrackRecordWait    time.Duration `env:"TRACK_RECORD_WAIT" envDefault:"150ms"`
	TrackCollectIP     bool          `env:"TRACK_COLLECT_IP" envDefault:"true"`
	TrackMaxDelay      int           `env:"TRACK_MAX_DELAY_SECONDS" envDefault:"10"`
	ClickSink          string        `env:"CLICK_SINK" envDefault:"postgres"`
	AnalyticsConsumer  string        `env:"ANALYTICS_CONSUMER_PREFIX" envDefault:"tracker"`

	// Rate limiting
	RateLimitTrackEnabled bool `env:"RATE_LIMIT_TRACK_ENABLED" envDefault:"true"`
	RateLimitTrackRPS     int  `env:"RATE_LIMIT_TRACK_RPS" envDefault:"50"`
	RateLimitTrackBurst   int  `env:"RATE_LIMIT_TRACK_BURST" envDefault:"20"`

	// Edge provider (domain health)
	EdgeAPIURL           string        `env:"EDGE_API_URL" envDefault:"https://api.cloudflare.com/client/v4"`
	EdgeAPIToken         string        `env:"EDGE_API_TOKEN"`
	EdgeRequestTimeout   time.Duration `env:"EDGE_REQUEST_TIMEOUT" envDefault:"10s"`
	DomainHealthMinScore int           `env:"DOMAIN_HEALTH_MIN_SCORE" envDefault:"50"`
	DomainHealthWorkers  int           `env:"DOMAIN_HEALTH_WORKERS" envDefault:"4"`

	// Notifications (fire-and-forget webhook)
	NotifyWebhookURL    string `env:"NOTIFY_WEBHOOK_URL"`
	NotifyWebhookSecret string `env:"NOTIFY_WEBHOOK_SECRET"`

	// Admin token hash (Argon2id PHC string) guarding /api/v1 and /internal.
	AdminTokenHash string `env:"ADMIN_TOKEN_HASH"`

	// Tracing
	TracingEnabled  bool   `env:"TRACING_ENABLED" envDefault:"false"`
	TracingEndpoint string `env:"TRACING_ENDPOINT" envDefault:"http://localhost:14268/api/traces"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// DatabasePool returns the Postgres pool settings.
func (c *Config) DatabasePool() repository.PoolConfig {
	return repository.PoolConfig{
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnIdleTime: c.DBMaxConnIdleTime,
	}
}

// RedisPool returns the Redis pool settings.
func (c *Config) RedisPool() cache.PoolConfig {
	return cache.PoolConfig{
		Size:    c.RedisPoolSize,
		MinIdle: c.RedisMinIdle,
		Timeout: c.RedisPoolTimeout,
	}
}

// Validate checks enumerated settings that env tags cannot express.
func (c *Config) Validate() error {
	switch c.TrackRecordMode {
	case RecordModeAsync, RecordModeBounded:
	default:
		return fmt.Errorf("invalid TRACK_RECORD_MODE %q", c.TrackRecordMode)
	}

	switch c.ClickSink {
	case ClickSinkPostgres, ClickSinkStream:
	default:
		return fmt.Errorf("invalid CLICK_SINK %q", c.ClickSink)
	}

	if c.TrackRecordTimeout <= 0 {
		return fmt.Errorf("TRACK_RECORD_TIMEOUT must be positive")
	}
	if c.DBMaxConns <= 0 || c.RedisPoolSize <= 0 {
		return fmt.Errorf("DB_MAX_CONNS and REDIS_POOL_SIZE must be positive")
	}
	if c.DomainHealthMinScore < 0 || c.DomainHealthMinScore > 100 {
		return fmt.Errorf("DOMAIN_HEALTH_MIN_SCORE must be between 0 and 100")
	}

	return nil
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
