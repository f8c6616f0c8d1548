// Package config handles application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Payment modes for threshold recharges.
const (
	PaymentModeSimulated = "simulated"
	PaymentModeStripe    = "stripe"
)

// Email providers.
const (
	EmailProviderNone   = "none"
	EmailProviderSMTP   = "smtp"
	EmailProviderResend = "resend"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port    int
	BaseURL string

	// Database
	DatabaseURL string

	// CORS
	CORSOrigins []string

	// Metronome billing provider
	MetronomeAPIKey        string
	MetronomeAPIURL        string
	MetronomeRateCardName  string
	MetronomeWebhookSecret string
	ProviderTimeout        time.Duration

	// Credit types and pricing
	NativeCreditTypeID   string // Vocalis credits
	FallbackCreditTypeID string // USD cents
	Billing              BillingConfig

	// Payments
	PaymentMode         string // "simulated" or "stripe"
	StripeSecretKey     string
	StripePaymentMethod string // saved or test payment method charged for recharges

	// Email
	EmailProvider           string
	SMTPHost                string
	SMTPPort                string
	SMTPUser                string
	SMTPPassword            string
	ResendAPIKey            string
	EmailFrom               string
	EmailFromName           string
	DashboardURL            string
	DocsURL                 string
	SendWelcomeOnPlanSelect bool

	// Notifications
	SSEKeepAlive time.Duration

	// Object Storage (Tigris/S3-compatible)
	StorageEnabled   bool
	StorageEndpoint  string // AWS_ENDPOINT_URL_S3
	StorageAccessKey string // AWS_ACCESS_KEY_ID
	StorageSecretKey string // AWS_SECRET_ACCESS_KEY
	StorageBucket    string
	StorageRegion    string
	LogFiltersKey    string
	ArchiveWebhooks  bool
	ArchiveRetention time.Duration // archived payloads older than this are deleted (0 = keep forever)
	ArchiveSweep     time.Duration // how often the archive is swept

	// Rate limiting
	RateLimitPerMinute int

	// Background tasks
	TaskQueueSize   int
	TaskConcurrency int

	// Idle shutdown settings (for scale-to-zero on Fly.io)
	IdleTimeout time.Duration // Time before shutting down when idle (0 = disabled)
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnvInt("PORT", 8080),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
		DatabaseURL: getEnv("DATABASE_URL", "file:vocalis.db?_journal=WAL&_timeout=5000"),
		CORSOrigins: getEnvSlice("CORS_ORIGINS", []string{"http://localhost:3000"}),

		MetronomeAPIKey:        getEnv("METRONOME_API_KEY", ""),
		MetronomeAPIURL:        strings.TrimRight(getEnv("METRONOME_API_URL", "https://api.metronome.com"), "/"),
		MetronomeRateCardName:  getEnv("METRONOME_RATE_CARD_NAME", "Vocalis Standard"),
		MetronomeWebhookSecret: getEnv("METRONOME_WEBHOOK_SECRET", ""),
		ProviderTimeout:        getEnvDuration("PROVIDER_TIMEOUT", 30*time.Second),

		NativeCreditTypeID:   getEnv("VOCALIS_CREDIT_TYPE_ID", DefaultNativeCreditTypeID),
		FallbackCreditTypeID: getEnv("USD_CENTS_CREDIT_TYPE_ID", DefaultFallbackCreditTypeID),

		PaymentMode:         strings.ToLower(getEnv("PAYMENT_MODE", PaymentModeSimulated)),
		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripePaymentMethod: getEnv("STRIPE_PAYMENT_METHOD", "pm_card_visa"),

		EmailProvider:           strings.ToLower(getEnv("EMAIL_PROVIDER", EmailProviderSMTP)),
		SMTPHost:                getEnv("SMTP_HOST", "localhost"),
		SMTPPort:                getEnv("SMTP_PORT", "1025"),
		SMTPUser:                getEnv("SMTP_USER", ""),
		SMTPPassword:            getEnv("SMTP_PASSWORD", ""),
		ResendAPIKey:            getEnv("RESEND_API_KEY", ""),
		EmailFrom:               getEnv("EMAIL_FROM", "hello@vocalis.ai"),
		EmailFromName:           getEnv("EMAIL_FROM_NAME", "Vocalis"),
		DashboardURL:            getEnv("DASHBOARD_URL", "http://localhost:3000/dashboard"),
		DocsURL:                 getEnv("DOCS_URL", "http://localhost:3000/docs"),
		SendWelcomeOnPlanSelect: getEnvBool("SEND_WELCOME_ON_PLAN_SELECT", false),

		SSEKeepAlive: getEnvDuration("SSE_KEEPALIVE", 30*time.Second),

		// Fly's standard env vars; BUCKET_NAME is set by `fly storage create`
		StorageEndpoint:  getEnv("AWS_ENDPOINT_URL_S3", ""),
		StorageAccessKey: getEnv("AWS_ACCESS_KEY_ID", ""),
		StorageSecretKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		StorageBucket:    getEnvWithFallback("BUCKET_NAME", "STORAGE_BUCKET", ""),
		StorageRegion:    getEnv("AWS_REGION", "auto"),
		LogFiltersKey:    getEnv("LOG_FILTERS_KEY", "config/logfilters.json"),
		ArchiveWebhooks:  getEnvBool("ARCHIVE_WEBHOOKS", true),
		ArchiveRetention: getEnvDuration("ARCHIVE_RETENTION", 30*24*time.Hour),
		ArchiveSweep:     getEnvDuration("ARCHIVE_SWEEP_INTERVAL", 6*time.Hour),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 100),
		TaskQueueSize:      getEnvInt("TASK_QUEUE_SIZE", 256),
		TaskConcurrency:    getEnvInt("TASK_CONCURRENCY", 2),

		IdleTimeout: getEnvDuration("IDLE_TIMEOUT", 0), // 0 = disabled
	}

	cfg.StorageEnabled = cfg.StorageBucket != "" && cfg.StorageEndpoint != ""

	billing, err := loadBillingConfig()
	if err != nil {
		return nil, err
	}
	cfg.Billing = billing

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}
	if c.ProviderTimeout <= 0 {
		errs = append(errs, errors.New("PROVIDER_TIMEOUT must be positive"))
	}
	if c.SSEKeepAlive <= 0 {
		errs = append(errs, errors.New("SSE_KEEPALIVE must be positive"))
	}
	if c.NativeCreditTypeID == "" || c.FallbackCreditTypeID == "" {
		errs = append(errs, errors.New("credit type identifiers must not be empty"))
	}

	switch c.PaymentMode {
	case PaymentModeSimulated:
	case PaymentModeStripe:
		if c.StripeSecretKey == "" {
			errs = append(errs, errors.New("STRIPE_SECRET_KEY is required when PAYMENT_MODE=stripe"))
		}
	default:
		errs = append(errs, fmt.Errorf("PAYMENT_MODE must be %q or %q, got %q", PaymentModeSimulated, PaymentModeStripe, c.PaymentMode))
	}

	switch c.EmailProvider {
	case EmailProviderNone, EmailProviderSMTP:
	case EmailProviderResend:
		if c.ResendAPIKey == "" {
			errs = append(errs, errors.New("RESEND_API_KEY is required when EMAIL_PROVIDER=resend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown EMAIL_PROVIDER %q", c.EmailProvider))
	}

	if c.ArchiveRetention > 0 && c.ArchiveSweep <= 0 {
		errs = append(errs, errors.New("ARCHIVE_SWEEP_INTERVAL must be positive when ARCHIVE_RETENTION is set"))
	}

	if err := c.Billing.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// MetronomeConfigured returns true if provider credentials are present.
func (c *Config) MetronomeConfigured() bool {
	return c.MetronomeAPIKey != "" && c.MetronomeAPIURL != ""
}

// WebhookSignatureRequired returns true if inbound webhooks must be signed.
func (c *Config) WebhookSignatureRequired() bool {
	return c.MetronomeWebhookSecret != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "true" || lower == "1" || lower == "yes"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvDecimal parses a decimal value. Unlike the other helpers an
// unparseable value is an error, since it feeds money arithmetic.
func getEnvDecimal(key string, defaultValue decimal.Decimal) (decimal.Decimal, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}

func getEnvWithFallback(primary, fallback, defaultValue string) string {
	if value := os.Getenv(primary); value != "" {
		return value
	}
	if value := os.Getenv(fallback); value != "" {
		return value
	}
	return defaultValue
}
