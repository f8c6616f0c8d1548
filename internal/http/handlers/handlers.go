// Package handlers contains HTTP handlers for the API.
package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/vocalis-api/internal/service"
	"github.com/jmylchreest/vocalis-api/internal/version"
)

// HealthCheckOutput represents health check response.
type HealthCheckOutput struct {
	Body struct {
		Status  string `json:"status"`
		Service string `json:"service"`
		Version string `json:"version"`
	}
}

// HealthCheck returns the health status of the API.
func HealthCheck(_ context.Context, _ *struct{}) (*HealthCheckOutput, error) {
	out := &HealthCheckOutput{}
	out.Body.Status = "healthy"
	out.Body.Service = "vocalis-api"
	out.Body.Version = version.Get().Short()
	return out, nil
}

// LivezOutput is the liveness probe response.
type LivezOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

// Livez reports that the process is up.
func Livez(_ context.Context, _ *struct{}) (*LivezOutput, error) {
	out := &LivezOutput{}
	out.Body.Status = "ok"
	return out, nil
}

// DBPinger is satisfied by *sql.DB.
type DBPinger interface {
	PingContext(ctx context.Context) error
}

// ReadyzOutput is the readiness probe response.
type ReadyzOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

// ReadyzHandler checks the local database before reporting ready.
type ReadyzHandler struct {
	db DBPinger
}

// NewReadyzHandler creates a readiness handler. A nil db is always ready.
func NewReadyzHandler(db DBPinger) *ReadyzHandler {
	return &ReadyzHandler{db: db}
}

// Readyz returns 503 while the database is unreachable.
func (h *ReadyzHandler) Readyz(ctx context.Context, _ *struct{}) (*ReadyzOutput, error) {
	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			return nil, huma.Error503ServiceUnavailable("database not ready")
		}
	}
	out := &ReadyzOutput{}
	out.Body.Status = "ok"
	return out, nil
}

// IntegrationsChecker runs the provider self-check.
type IntegrationsChecker interface {
	Check(ctx context.Context) service.IntegrationsReport
}

// IntegrationsOutput is the provider self-check response.
type IntegrationsOutput struct {
	Body service.IntegrationsReport
}

// IntegrationsHandler serves the read-only provider self-check.
type IntegrationsHandler struct {
	checker IntegrationsChecker
}

// NewIntegrationsHandler creates an integrations health handler.
func NewIntegrationsHandler(checker IntegrationsChecker) *IntegrationsHandler {
	return &IntegrationsHandler{checker: checker}
}

// Check always answers 200; failures are reported in the body status.
func (h *IntegrationsHandler) Check(ctx context.Context, _ *struct{}) (*IntegrationsOutput, error) {
	return &IntegrationsOutput{Body: h.checker.Check(ctx)}, nil
}
