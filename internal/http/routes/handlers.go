// Package routes provides shared route registration for the Vocalis API.
// Both the server and the OpenAPI generator register through Register, so
// the published document always matches what is served.
package routes

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/vocalis-api/internal/http/handlers"
)

// IntegrationsHandlers defines the provider self-check operation.
type IntegrationsHandlers interface {
	Check(ctx context.Context, input *struct{}) (*handlers.IntegrationsOutput, error)
}

// AuthHandlers defines the account operations.
type AuthHandlers interface {
	Signup(ctx context.Context, input *handlers.SignupInput) (*handlers.SignupOutput, error)
	Login(ctx context.Context, input *handlers.LoginInput) (*handlers.LoginOutput, error)
	GetUser(ctx context.Context, input *handlers.GetUserInput) (*handlers.GetUserOutput, error)
}

// BillingHandlers defines plan, purchase and balance operations.
type BillingHandlers interface {
	ListPlans(ctx context.Context, input *struct{}) (*handlers.ListPlansOutput, error)
	SelectPlan(ctx context.Context, input *handlers.SelectPlanInput) (*handlers.SelectPlanOutput, error)
	PurchaseCredits(ctx context.Context, input *handlers.PurchaseCreditsInput) (*handlers.PurchaseCreditsOutput, error)
	GetBalance(ctx context.Context, input *handlers.GetBalanceInput) (*handlers.GetBalanceOutput, error)
}

// UsageHandlers defines the metered voice operations.
type UsageHandlers interface {
	GenerateVoice(ctx context.Context, input *handlers.GenerateVoiceInput) (*handlers.UsageOutput, error)
	CloneVoice(ctx context.Context, input *handlers.CloneVoiceInput) (*handlers.UsageOutput, error)
}

// NotificationHandlers documents the raw SSE stream.
type NotificationHandlers interface {
	RegisterRawEndpoints(api huma.API)
}

// Handlers aggregates all handlers for route registration.
// The server passes real implementations; the OpenAPI generator passes stubs.
type Handlers struct {
	HealthCheck func(ctx context.Context, input *struct{}) (*handlers.HealthCheckOutput, error)

	// Kubernetes probes (hidden from docs)
	Livez  func(ctx context.Context, input *struct{}) (*handlers.LivezOutput, error)
	Readyz func(ctx context.Context, input *struct{}) (*handlers.ReadyzOutput, error)

	Integrations  IntegrationsHandlers
	Auth          AuthHandlers
	Billing       BillingHandlers
	Usage         UsageHandlers
	Notifications NotificationHandlers
}
