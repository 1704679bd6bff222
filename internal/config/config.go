// Package config loads service configuration from config.yaml and the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"stockbridge/internal/domain/documents"
)

// EnvPrefix prefixes every environment override, e.g. STOCKBRIDGE_APP_PORT.
const EnvPrefix = "STOCKBRIDGE"

// Config holds all service configuration.
type Config struct {
	App      AppConfig
	Log      LogConfig
	CRM      CRMConfig
	Document DocumentConfig
	Setup    SetupConfig
	Redis    RedisConfig
	Database DatabaseConfig
}

type AppConfig struct {
	Env  string
	Port string
}

type LogConfig struct {
	Level string // debug, info, warn, error
}

type CRMConfig struct {
	Timeout         time.Duration
	BreakerEnabled  bool
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

type DocumentConfig struct {
	ResponsibleID             int64
	Currency                  string
	DefaultSmartProcessTypeID int
	AttachConcurrency         int
	AttachMode                string
	RollbackOnFailure         bool
}

type SetupConfig struct {
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// RedisConfig enables the shared rate limiter when URL is set.
type RedisConfig struct {
	URL string
}

// DatabaseConfig enables the postgres settings store when URL is set.
// EndpointCacheTTL bounds how long a replica keeps the opened endpoint
// before re-reading it; zero reads the table on every remote call.
type DatabaseConfig struct {
	URL              string
	EndpointCacheTTL time.Duration
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "production")
	v.SetDefault("app.port", "8080")
	v.SetDefault("log.level", "info")

	v.SetDefault("crm.timeout", 30*time.Second)
	v.SetDefault("crm.breaker_enabled", true)
	v.SetDefault("crm.breaker_failures", 5)
	v.SetDefault("crm.breaker_timeout", 30*time.Second)

	v.SetDefault("document.responsible_id", 1)
	v.SetDefault("document.currency", "RUB")
	v.SetDefault("document.default_smart_process_type_id", 1038)
	v.SetDefault("document.attach_concurrency", 8)
	v.SetDefault("document.attach_mode", string(documents.FailFast))
	v.SetDefault("document.rollback_on_failure", false)

	v.SetDefault("setup.rate_limit_requests", 30)
	v.SetDefault("setup.rate_limit_window", time.Minute)

	v.SetDefault("redis.url", "")
	v.SetDefault("database.url", "")
	v.SetDefault("database.endpoint_cache_ttl", 5*time.Second)
}

// Load reads config.yaml (optional) from the working directory or /etc/stockbridge,
// then applies environment overrides and validates the result.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/stockbridge")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Log: LogConfig{
			Level: v.GetString("log.level"),
		},
		CRM: CRMConfig{
			Timeout:         v.GetDuration("crm.timeout"),
			BreakerEnabled:  v.GetBool("crm.breaker_enabled"),
			BreakerFailures: v.GetUint32("crm.breaker_failures"),
			BreakerTimeout:  v.GetDuration("crm.breaker_timeout"),
		},
		Document: DocumentConfig{
			ResponsibleID:             v.GetInt64("document.responsible_id"),
			Currency:                  strings.TrimSpace(v.GetString("document.currency")),
			DefaultSmartProcessTypeID: v.GetInt("document.default_smart_process_type_id"),
			AttachConcurrency:         v.GetInt("document.attach_concurrency"),
			AttachMode:                v.GetString("document.attach_mode"),
			RollbackOnFailure:         v.GetBool("document.rollback_on_failure"),
		},
		Setup: SetupConfig{
			RateLimitRequests: v.GetInt("setup.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("setup.rate_limit_window"),
		},
		Redis: RedisConfig{
			URL: v.GetString("redis.url"),
		},
		Database: DatabaseConfig{
			URL:              v.GetString("database.url"),
			EndpointCacheTTL: v.GetDuration("database.endpoint_cache_ttl"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the service cannot run with.
func (c *Config) Validate() error {
	if c.App.Port == "" {
		return fmt.Errorf("app.port is required")
	}
	if c.CRM.Timeout <= 0 {
		return fmt.Errorf("crm.timeout must be positive")
	}
	if c.CRM.BreakerEnabled && c.CRM.BreakerFailures == 0 {
		return fmt.Errorf("crm.breaker_failures must be positive when the breaker is enabled")
	}
	if c.Document.ResponsibleID <= 0 {
		return fmt.Errorf("document.responsible_id must be positive")
	}
	if c.Document.Currency == "" {
		return fmt.Errorf("document.currency is required")
	}
	if c.Document.DefaultSmartProcessTypeID <= 0 {
		return fmt.Errorf("document.default_smart_process_type_id must be positive")
	}
	if c.Document.AttachConcurrency <= 0 {
		return fmt.Errorf("document.attach_concurrency must be positive")
	}
	if _, err := documents.ParseAttachMode(c.Document.AttachMode); err != nil {
		return fmt.Errorf("document.attach_mode: %w", err)
	}
	if c.Setup.RateLimitRequests <= 0 {
		return fmt.Errorf("setup.rate_limit_requests must be positive")
	}
	if c.Setup.RateLimitWindow <= 0 {
		return fmt.Errorf("setup.rate_limit_window must be positive")
	}
	if c.Database.EndpointCacheTTL < 0 {
		return fmt.Errorf("database.endpoint_cache_ttl must not be negative")
	}
	return nil
}

// Pipeline converts the document section into pipeline settings.
func (c *Config) Pipeline() documents.Config {
	mode, _ := documents.ParseAttachMode(c.Document.AttachMode)
	return documents.Config{
		ResponsibleID:     c.Document.ResponsibleID,
		Currency:          c.Document.Currency,
		AttachMode:        mode,
		AttachConcurrency: c.Document.AttachConcurrency,
		RollbackOnFailure: c.Document.RollbackOnFailure,
	}
}
