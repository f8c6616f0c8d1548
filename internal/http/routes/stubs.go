package routes

import (
	"context"
	"log/slog"

	"github.com/jmylchreest/vocalis-api/internal/http/handlers"
)

// StubHandlers returns Handlers whose operations return nil responses.
// They are only used for OpenAPI generation, where Huma reads types from
// the function signatures.
func StubHandlers() *Handlers {
	return &Handlers{
		HealthCheck: handlers.HealthCheck,
		Livez:       handlers.Livez,
		Readyz:      handlers.NewReadyzHandler(nil).Readyz,

		Integrations: stubIntegrations{},
		Auth:         stubAuth{},
		Billing:      stubBilling{},
		Usage:        stubUsage{},
		// Raw endpoint registration only defines operations.
		Notifications: handlers.NewNotificationsHandler(nil, slog.Default()),
	}
}

type stubIntegrations struct{}

func (stubIntegrations) Check(context.Context, *struct{}) (*handlers.IntegrationsOutput, error) {
	return nil, nil
}

type stubAuth struct{}

func (stubAuth) Signup(context.Context, *handlers.SignupInput) (*handlers.SignupOutput, error) {
	return nil, nil
}

func (stubAuth) Login(context.Context, *handlers.LoginInput) (*handlers.LoginOutput, error) {
	return nil, nil
}

func (stubAuth) GetUser(context.Context, *handlers.GetUserInput) (*handlers.GetUserOutput, error) {
	return nil, nil
}

type stubBilling struct{}

func (stubBilling) ListPlans(context.Context, *struct{}) (*handlers.ListPlansOutput, error) {
	return nil, nil
}

func (stubBilling) SelectPlan(context.Context, *handlers.SelectPlanInput) (*handlers.SelectPlanOutput, error) {
	return nil, nil
}

func (stubBilling) PurchaseCredits(context.Context, *handlers.PurchaseCreditsInput) (*handlers.PurchaseCreditsOutput, error) {
	return nil, nil
}

func (stubBilling) GetBalance(context.Context, *handlers.GetBalanceInput) (*handlers.GetBalanceOutput, error) {
	return nil, nil
}

type stubUsage struct{}

func (stubUsage) GenerateVoice(context.Context, *handlers.GenerateVoiceInput) (*handlers.UsageOutput, error) {
	return nil, nil
}

func (stubUsage) CloneVoice(context.Context, *handlers.CloneVoiceInput) (*handlers.UsageOutput, error) {
	return nil, nil
}
