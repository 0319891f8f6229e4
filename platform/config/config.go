// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSOrigins() []string
}

// SchedulerConfig provides settings for the asynq scheduler.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// LockConfig provides settings for per-lead locking.
type LockConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetLockTTL() time.Duration
}

// WhatsAppConfig provides settings for the GOWA WhatsApp relay.
type WhatsAppConfig interface {
	GetWhatsAppURL() string
	GetWhatsAppKey() string
	GetWhatsAppDeviceID() string
}

// WebhookConfig provides settings for the generic webhook relay channel.
type WebhookConfig interface {
	GetWebhookURL() string
	GetWebhookSecret() string
}

// EmailConfig provides settings for the SMTP channel.
type EmailConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetSMTPFromName() string
	GetSMTPFromAddress() string
}

// ChannelConfig selects and throttles the outbound message channel.
type ChannelConfig interface {
	WhatsAppConfig
	WebhookConfig
	EmailConfig
	GetChannelKind() string
	GetChannelRatePerMinute() int
	GetDispatchTimeout() time.Duration
}

// EngineConfig provides the tunables of the automation engine.
type EngineConfig interface {
	GetTemplatesPath() string
	GetTickInterval() time.Duration
	GetParallelism() int
	GetStoreTimeout() time.Duration
	GetDispatchTimeout() time.Duration
	GetStaleThresholdDays() int
}

// Channel kinds.
const (
	ChannelWebhook  = "webhook"
	ChannelWhatsApp = "whatsapp"
	ChannelEmail    = "email"
	ChannelLog      = "log"
)

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                  string
	HTTPAddr             string
	DatabaseURL          string
	CORSOrigins          []string
	RedisURL             string
	RedisTLSInsecure     bool
	AsynqQueueName       string
	AsynqConcurrency     int
	LockTTL              time.Duration
	ChannelKind          string
	ChannelRatePerMinute int
	WebhookURL           string
	WebhookSecret        string
	WhatsAppURL          string
	WhatsAppKey          string
	WhatsAppDeviceID     string
	SMTPHost             string
	SMTPPort             int
	SMTPUsername         string
	SMTPPassword         string
	SMTPFromName         string
	SMTPFromAddress      string
	TemplatesPath        string
	TickInterval         time.Duration
	Parallelism          int
	StoreTimeout         time.Duration
	DispatchTimeout      time.Duration
	StaleThresholdDays   int
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// LockConfig implementation

// Store calls and dispatches a single locked operation may make, each bounded
// by its own timeout.
const (
	lockHoldStoreCalls = 8
	lockHoldDispatches = 2
)

// GetLockTTL never returns less than the longest time a holder can keep a
// lead locked, so a slow advance cannot lose its lock mid-flight.
func (c *Config) GetLockTTL() time.Duration {
	hold := lockHoldStoreCalls*c.StoreTimeout + lockHoldDispatches*c.DispatchTimeout
	return max(c.LockTTL, hold)
}

// WhatsAppConfig implementation
func (c *Config) GetWhatsAppURL() string      { return c.WhatsAppURL }
func (c *Config) GetWhatsAppKey() string      { return c.WhatsAppKey }
func (c *Config) GetWhatsAppDeviceID() string { return c.WhatsAppDeviceID }

// WebhookConfig implementation
func (c *Config) GetWebhookURL() string    { return c.WebhookURL }
func (c *Config) GetWebhookSecret() string { return c.WebhookSecret }

// EmailConfig implementation
func (c *Config) GetSMTPHost() string        { return c.SMTPHost }
func (c *Config) GetSMTPPort() int           { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string    { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string    { return c.SMTPPassword }
func (c *Config) GetSMTPFromName() string    { return c.SMTPFromName }
func (c *Config) GetSMTPFromAddress() string { return c.SMTPFromAddress }

// ChannelConfig implementation
func (c *Config) GetChannelKind() string            { return c.ChannelKind }
func (c *Config) GetChannelRatePerMinute() int      { return c.ChannelRatePerMinute }
func (c *Config) GetDispatchTimeout() time.Duration { return c.DispatchTimeout }

// EngineConfig implementation
func (c *Config) GetTemplatesPath() string       { return c.TemplatesPath }
func (c *Config) GetTickInterval() time.Duration { return c.TickInterval }
func (c *Config) GetParallelism() int            { return c.Parallelism }
func (c *Config) GetStoreTimeout() time.Duration { return c.StoreTimeout }
func (c *Config) GetStaleThresholdDays() int     { return c.StaleThresholdDays }

// IsRedisEnabled reports whether Redis-backed locking and asynq are configured.
func (c *Config) IsRedisEnabled() bool { return c.RedisURL != "" }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:                  getEnv("APP_ENV", "development"),
		HTTPAddr:             getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		CORSOrigins:          splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200")),
		RedisURL:             getEnv("REDIS_URL", ""),
		RedisTLSInsecure:     strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:       getEnv("ASYNQ_QUEUE", "automation"),
		AsynqConcurrency:     mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		LockTTL:              mustDuration(getEnv("LOCK_TTL", "30s")),
		ChannelKind:          strings.ToLower(getEnv("CHANNEL_KIND", ChannelLog)),
		ChannelRatePerMinute: mustInt(getEnv("CHANNEL_RATE_PER_MINUTE", "30")),
		WebhookURL:           getEnv("CHANNEL_WEBHOOK_URL", ""),
		WebhookSecret:        getEnv("CHANNEL_WEBHOOK_SECRET", ""),
		WhatsAppURL:          getEnv("WHATSAPP_URL", ""),
		WhatsAppKey:          getEnv("WHATSAPP_KEY", ""),
		WhatsAppDeviceID:     getEnv("WHATSAPP_DEVICE_ID", ""),
		SMTPHost:             getEnv("SMTP_HOST", ""),
		SMTPPort:             mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:         getEnv("SMTP_USERNAME", ""),
		SMTPPassword:         getEnv("SMTP_PASSWORD", ""),
		SMTPFromName:         getEnv("SMTP_FROM_NAME", "Corretor"),
		SMTPFromAddress:      getEnv("SMTP_FROM_ADDRESS", ""),
		TemplatesPath:        getEnv("TEMPLATES_PATH", ""),
		TickInterval:         mustDuration(getEnv("AUTOMATION_TICK_INTERVAL", "1m")),
		Parallelism:          mustInt(getEnv("AUTOMATION_PARALLELISM", "8")),
		StoreTimeout:         mustDuration(getEnv("ENGINE_STORE_TIMEOUT", "5s")),
		DispatchTimeout:      mustDuration(getEnv("ENGINE_DISPATCH_TIMEOUT", "10s")),
		StaleThresholdDays:   mustInt(getEnv("STALE_THRESHOLD_DAYS", "3")),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("AUTOMATION_TICK_INTERVAL must be a positive duration")
	}
	if c.StoreTimeout <= 0 || c.DispatchTimeout <= 0 {
		return fmt.Errorf("ENGINE_STORE_TIMEOUT and ENGINE_DISPATCH_TIMEOUT must be positive durations")
	}
	if c.StaleThresholdDays < 1 {
		return fmt.Errorf("STALE_THRESHOLD_DAYS must be at least 1")
	}

	switch c.ChannelKind {
	case ChannelLog:
	case ChannelWebhook:
		if c.WebhookURL == "" {
			return fmt.Errorf("CHANNEL_WEBHOOK_URL is required when CHANNEL_KIND is webhook")
		}
	case ChannelWhatsApp:
		if c.WhatsAppURL == "" {
			return fmt.Errorf("WHATSAPP_URL is required when CHANNEL_KIND is whatsapp")
		}
	case ChannelEmail:
		if c.SMTPHost == "" || c.SMTPFromAddress == "" {
			return fmt.Errorf("SMTP_HOST and SMTP_FROM_ADDRESS are required when CHANNEL_KIND is email")
		}
	default:
		return fmt.Errorf("unsupported CHANNEL_KIND %q", c.ChannelKind)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}
