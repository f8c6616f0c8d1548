package routes

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/vocalis-api/internal/version"
)

// NewHumaConfig creates the shared Huma configuration for the API.
func NewHumaConfig(baseURL string) huma.Config {
	cfg := huma.DefaultConfig("Vocalis API", version.Get().Short())
	cfg.Info.Description = "Prepaid credit billing for Vocalis voice generation, backed by Metronome."

	// Disable $schema field in responses
	cfg.CreateHooks = nil

	if baseURL != "" {
		cfg.Servers = []*huma.Server{
			{URL: baseURL, Description: "API Server"},
		}
	}

	cfg.Tags = []*huma.Tag{
		{Name: "Auth", Description: "Account signup and login"},
		{Name: "Billing", Description: "Plans, credit purchases and balances"},
		{Name: "Usage", Description: "Metered voice generation"},
		{Name: "Notifications", Description: "Real-time balance updates"},
		{Name: "Health", Description: "System health and provider self-checks"},
	}

	return cfg
}
