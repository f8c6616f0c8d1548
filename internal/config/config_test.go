package config

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// ========================================
// Helper Functions Tests
// ========================================

func TestGetEnv(t *testing.T) {
	t.Setenv("TEST_GET_ENV", "test_value")

	if got := getEnv("TEST_GET_ENV", "default"); got != "test_value" {
		t.Errorf("getEnv() = %q, want %q", got, "test_value")
	}
	if got := getEnv("TEST_MISSING_VAR", "default_value"); got != "default_value" {
		t.Errorf("getEnv() = %q, want %q", got, "default_value")
	}

	t.Run("empty env var uses default", func(t *testing.T) {
		t.Setenv("TEST_EMPTY_VAR", "")
		if got := getEnv("TEST_EMPTY_VAR", "default"); got != "default" {
			t.Errorf("getEnv() = %q, want %q", got, "default")
		}
	})
}

func TestGetEnvInt64(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  int64
	}{
		{"valid", "196000", 196000},
		{"negative", "-5", -5},
		{"invalid", "lots", 7},
		{"missing", "", 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_INT64", tt.value)
			if got := getEnvInt64("TEST_INT64", 7); got != tt.want {
				t.Errorf("getEnvInt64() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"true", true},
		{"TRUE", true},
		{"1", true},
		{"yes", true},
		{"false", false},
		{"0", false},
		{"maybe", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("TEST_BOOL", tt.value)
			if got := getEnvBool("TEST_BOOL", !tt.want); got != tt.want {
				t.Errorf("getEnvBool(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("TEST_DUR", "45s")
	if got := getEnvDuration("TEST_DUR", time.Hour); got != 45*time.Second {
		t.Errorf("getEnvDuration() = %v, want 45s", got)
	}

	t.Setenv("TEST_DUR_INVALID", "soon")
	if got := getEnvDuration("TEST_DUR_INVALID", 2*time.Hour); got != 2*time.Hour {
		t.Errorf("getEnvDuration() = %v, want 2h (default)", got)
	}
}

func TestGetEnvDecimal(t *testing.T) {
	def := decimal.RequireFromString("0.5")

	t.Run("missing", func(t *testing.T) {
		got, err := getEnvDecimal("TEST_DEC_MISSING", def)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !got.Equal(def) {
			t.Errorf("getEnvDecimal() = %s, want %s", got, def)
		}
	})

	t.Run("valid", func(t *testing.T) {
		t.Setenv("TEST_DEC", " 0.00025 ")
		got, err := getEnvDecimal("TEST_DEC", def)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.String() != "0.00025" {
			t.Errorf("getEnvDecimal() = %s, want 0.00025", got)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		t.Setenv("TEST_DEC_BAD", "cheap")
		if _, err := getEnvDecimal("TEST_DEC_BAD", def); err == nil {
			t.Error("expected error for invalid decimal")
		}
	})
}

func TestGetEnvSlice(t *testing.T) {
	t.Setenv("TEST_SLICE", "a, b,,c ")
	got := getEnvSlice("TEST_SLICE", nil)
	if strings.Join(got, "|") != "a|b|c" {
		t.Errorf("getEnvSlice() = %v, want [a b c]", got)
	}

	def := []string{"x"}
	if got := getEnvSlice("TEST_SLICE_MISSING", def); len(got) != 1 || got[0] != "x" {
		t.Errorf("getEnvSlice() = %v, want default", got)
	}
}

func TestGetEnvWithFallback(t *testing.T) {
	t.Setenv("FALLBACK_KEY", "fallback_value")

	if got := getEnvWithFallback("MISSING_PRIMARY", "FALLBACK_KEY", "default"); got != "fallback_value" {
		t.Errorf("getEnvWithFallback() = %q, want %q", got, "fallback_value")
	}

	t.Setenv("PRIMARY_KEY", "primary_value")
	if got := getEnvWithFallback("PRIMARY_KEY", "FALLBACK_KEY", "default"); got != "primary_value" {
		t.Errorf("getEnvWithFallback() = %q, want %q", got, "primary_value")
	}
}

// ========================================
// Load / Validate Tests
// ========================================

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.MetronomeAPIURL != "https://api.metronome.com" {
		t.Errorf("MetronomeAPIURL = %q", cfg.MetronomeAPIURL)
	}
	if cfg.ProviderTimeout != 30*time.Second {
		t.Errorf("ProviderTimeout = %v, want 30s", cfg.ProviderTimeout)
	}
	if cfg.SSEKeepAlive != 30*time.Second {
		t.Errorf("SSEKeepAlive = %v, want 30s", cfg.SSEKeepAlive)
	}
	if cfg.NativeCreditTypeID != DefaultNativeCreditTypeID {
		t.Errorf("NativeCreditTypeID = %q", cfg.NativeCreditTypeID)
	}
	if cfg.PaymentMode != PaymentModeSimulated {
		t.Errorf("PaymentMode = %q, want simulated", cfg.PaymentMode)
	}
	if cfg.StorageEnabled {
		t.Error("StorageEnabled should be false without bucket and endpoint")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("METRONOME_API_URL", "http://localhost:9999/")
	t.Setenv("METRONOME_RATE_CARD_NAME", "Vocalis Beta")
	t.Setenv("CREDIT_UNIT_PRICE", "0.0005")
	t.Setenv("BUCKET_NAME", "vocalis")
	t.Setenv("AWS_ENDPOINT_URL_S3", "https://fly.storage.tigris.dev")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MetronomeAPIURL != "http://localhost:9999" {
		t.Errorf("MetronomeAPIURL = %q, trailing slash should be trimmed", cfg.MetronomeAPIURL)
	}
	if cfg.MetronomeRateCardName != "Vocalis Beta" {
		t.Errorf("MetronomeRateCardName = %q", cfg.MetronomeRateCardName)
	}
	if cfg.Billing.CreditUnitPrice.String() != "0.0005" {
		t.Errorf("CreditUnitPrice = %s", cfg.Billing.CreditUnitPrice)
	}
	if !cfg.StorageEnabled {
		t.Error("StorageEnabled should be true")
	}
}

func TestLoad_InvalidPrice(t *testing.T) {
	t.Setenv("CREDIT_UNIT_PRICE", "free")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid CREDIT_UNIT_PRICE")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port:                 8080,
			ProviderTimeout:      30 * time.Second,
			SSEKeepAlive:         30 * time.Second,
			NativeCreditTypeID:   DefaultNativeCreditTypeID,
			FallbackCreditTypeID: DefaultFallbackCreditTypeID,
			PaymentMode:          PaymentModeSimulated,
			EmailProvider:        EmailProviderSMTP,
			Billing:              DefaultBillingConfig(),
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Port = 0 }, "PORT"},
		{"stripe without key", func(c *Config) { c.PaymentMode = PaymentModeStripe }, "STRIPE_SECRET_KEY"},
		{"stripe with key", func(c *Config) { c.PaymentMode = PaymentModeStripe; c.StripeSecretKey = "sk_test" }, ""},
		{"unknown payment mode", func(c *Config) { c.PaymentMode = "cash" }, "PAYMENT_MODE"},
		{"resend without key", func(c *Config) { c.EmailProvider = EmailProviderResend }, "RESEND_API_KEY"},
		{"unknown email provider", func(c *Config) { c.EmailProvider = "pigeon" }, "EMAIL_PROVIDER"},
		{"zero price", func(c *Config) { c.Billing.CreditUnitPrice = decimal.Zero }, "CREDIT_UNIT_PRICE"},
		{"missing credit type", func(c *Config) { c.NativeCreditTypeID = "" }, "credit type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_WebhookSignatureRequired(t *testing.T) {
	cfg := &Config{}
	if cfg.WebhookSignatureRequired() {
		t.Error("should not require signature without secret")
	}
	cfg.MetronomeWebhookSecret = "whsec"
	if !cfg.WebhookSignatureRequired() {
		t.Error("should require signature with secret")
	}
}
