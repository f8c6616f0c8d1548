package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jmylchreest/vocalis-api/internal/config"
	"github.com/jmylchreest/vocalis-api/internal/metronome"
)

// Integration report statuses.
const (
	IntegrationOK    = "ok"
	IntegrationWarn  = "warn"
	IntegrationError = "error"
)

// CatalogProbe is the read-only subset of the gateway used by health checks.
type CatalogProbe interface {
	Configured() bool
	ResolveRateCard(ctx context.Context, name string) (string, error)
	FindPrepaidProduct(ctx context.Context) (string, error)
}

// IntegrationCheck is the result of one probe.
type IntegrationCheck struct {
	OK    bool   `json:"ok"`
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Error string `json:"error,omitempty"`
}

// MetronomeChecks groups the provider probes.
type MetronomeChecks struct {
	BaseURL            string            `json:"base_url"`
	RateCardName       string            `json:"rate_card_name"`
	CredentialsPresent bool              `json:"credentials_present"`
	Reachability       *IntegrationCheck `json:"reachability,omitempty"`
	RateCardResolved   *IntegrationCheck `json:"rate_card_resolved,omitempty"`
	ProductPresent     *IntegrationCheck `json:"product_present,omitempty"`
}

// IntegrationsReport is the self-check result.
type IntegrationsReport struct {
	Status  string          `json:"status"`
	Summary string          `json:"summary"`
	Checks  MetronomeChecks `json:"metronome"`
}

// IntegrationsHealth runs read-only provider self-checks. It never creates
// anything at the provider.
type IntegrationsHealth struct {
	probe        CatalogProbe
	baseURL      string
	rateCardName string
	logger       *slog.Logger
}

// NewIntegrationsHealth creates the integration checker.
func NewIntegrationsHealth(cfg *config.Config, probe CatalogProbe, logger *slog.Logger) *IntegrationsHealth {
	return &IntegrationsHealth{
		probe:        probe,
		baseURL:      cfg.MetronomeAPIURL,
		rateCardName: cfg.MetronomeRateCardName,
		logger:       logger.With("component", "integrations"),
	}
}

// Check runs all probes in order, stopping early when the provider is
// unreachable or unauthorized.
func (h *IntegrationsHealth) Check(ctx context.Context) IntegrationsReport {
	checks := MetronomeChecks{
		BaseURL:            h.baseURL,
		RateCardName:       h.rateCardName,
		CredentialsPresent: h.probe.Configured(),
	}
	if !checks.CredentialsPresent {
		return IntegrationsReport{Status: IntegrationError, Summary: "Missing METRONOME_API_KEY", Checks: checks}
	}

	rateCardID, err := h.probe.ResolveRateCard(ctx, h.rateCardName)
	if err != nil && unreachable(err) {
		checks.Reachability = &IntegrationCheck{Error: err.Error()}
		h.logger.Warn("provider unreachable", "error", err)
		return IntegrationsReport{Status: IntegrationError, Summary: "Unable to call Metronome API", Checks: checks}
	}
	checks.Reachability = &IntegrationCheck{OK: true}

	checks.RateCardResolved = &IntegrationCheck{OK: err == nil, ID: rateCardID, Name: h.rateCardName}
	if err != nil {
		checks.RateCardResolved.Error = err.Error()
	}

	productID, err := h.probe.FindPrepaidProduct(ctx)
	checks.ProductPresent = &IntegrationCheck{OK: err == nil, ID: productID, Name: metronome.PrepaidProductName}
	if err != nil {
		checks.ProductPresent.Error = err.Error()
	}

	if checks.RateCardResolved.OK {
		return IntegrationsReport{Status: IntegrationOK, Summary: "Metronome reachable; see checks for details", Checks: checks}
	}
	return IntegrationsReport{Status: IntegrationWarn, Summary: "Some checks failed", Checks: checks}
}

// unreachable reports whether err means the API could not be used at all:
// transport failure or bad credentials.
func unreachable(err error) bool {
	if errors.Is(err, metronome.ErrProviderUnavailable) {
		return true
	}
	var apiErr *metronome.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
	}
	return false
}
