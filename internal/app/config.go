package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	RedisAddr         string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisEnabled      bool          `envconfig:"REDIS_ENABLED" default:"true"`
	RedisPassword     string        `envconfig:"REDIS_PASSWORD"`
	RedisDB           int           `envconfig:"REDIS_DB" default:"0"`
	DashboardCacheTTL time.Duration `envconfig:"DASHBOARD_CACHE_TTL" default:"5m"`

	JobsEnabled     bool   `envconfig:"JOBS_ENABLED" default:"true"`
	JobsConcurrency int    `envconfig:"JOBS_CONCURRENCY" default:"5"`
	LedgerAuditCron string `envconfig:"LEDGER_AUDIT_CRON" default:"@every 15m"`

	ERPLatency     time.Duration `envconfig:"ERP_LATENCY" default:"1s"`
	ERPSuccessRate float64       `envconfig:"ERP_SUCCESS_RATE" default:"0.9"`
	ERPSeed        uint64        `envconfig:"ERP_SEED" default:"0"`

	Currency string `envconfig:"CURRENCY" default:"INR"`
	Locale   string `envconfig:"LOCALE" default:"en-IN"`

	SeedSampleData bool `envconfig:"SEED_SAMPLE_DATA" default:"true"`

	GotenbergURL string `envconfig:"GOTENBERG_URL" default:"http://127.0.0.1:3000"`

	RateLimitPerMinute int `envconfig:"RATE_LIMIT_PER_MINUTE" default:"120"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges that envconfig cannot express.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config: nil")
	}
	if c.ERPSuccessRate < 0 || c.ERPSuccessRate > 1 {
		return fmt.Errorf("ERP_SUCCESS_RATE must be within [0,1], got %v", c.ERPSuccessRate)
	}
	if c.ERPLatency < 0 {
		return errors.New("ERP_LATENCY must not be negative")
	}
	if c.JobsEnabled && !c.RedisEnabled {
		return errors.New("JOBS_ENABLED requires REDIS_ENABLED")
	}
	if c.JobsConcurrency <= 0 {
		return errors.New("JOBS_CONCURRENCY must be positive")
	}
	if c.RateLimitPerMinute <= 0 {
		return errors.New("RATE_LIMIT_PER_MINUTE must be positive")
	}
	return nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
