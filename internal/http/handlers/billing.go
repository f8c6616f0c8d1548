package handlers

import (
	"context"
	"log/slog"

	"github.com/jmylchreest/vocalis-api/internal/models"
	"github.com/jmylchreest/vocalis-api/internal/service"
)

// PlanService is the plan and purchase operations used by BillingHandler.
type PlanService interface {
	ListPlans() []models.Plan
	SelectPlan(ctx context.Context, customerID, planID string) (*service.PlanSelection, error)
	PurchaseCredits(ctx context.Context, customerID string, credits int64) (*service.CreditPurchase, error)
}

// BalanceResolver resolves a customer's current balance.
type BalanceResolver interface {
	Resolve(ctx context.Context, customerID string) (*models.CreditBalance, error)
}

// BillingHandler handles plans, credit purchases and balance lookups.
type BillingHandler struct {
	plans    PlanService
	balances BalanceResolver
	logger   *slog.Logger
}

// NewBillingHandler creates a billing handler.
func NewBillingHandler(plans PlanService, balances BalanceResolver, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{plans: plans, balances: balances, logger: logger.With("component", "billing_handler")}
}

// ListPlansOutput represents the plan catalogue.
type ListPlansOutput struct {
	Body struct {
		Plans []models.Plan `json:"plans"`
	}
}

// ListPlans returns the configured plans.
func (h *BillingHandler) ListPlans(_ context.Context, _ *struct{}) (*ListPlansOutput, error) {
	out := &ListPlansOutput{}
	out.Body.Plans = h.plans.ListPlans()
	return out, nil
}

// SelectPlanInput represents a plan selection.
type SelectPlanInput struct {
	CustomerID string `query:"customer_id" required:"true" doc:"Billing customer ID"`
	Body       struct {
		PlanID string `json:"plan_id" enum:"trial,creator,pro" doc:"Plan to subscribe to"`
	}
}

// SelectPlanOutput represents the created plan contract.
type SelectPlanOutput struct {
	Body struct {
		Success    bool                    `json:"success"`
		ContractID string                  `json:"contract_id"`
		Plan       models.Plan             `json:"plan"`
		Contract   *models.BillingContract `json:"contract"`
	}
}

// SelectPlan creates the plan contract for the customer.
func (h *BillingHandler) SelectPlan(ctx context.Context, input *SelectPlanInput) (*SelectPlanOutput, error) {
	sel, err := h.plans.SelectPlan(ctx, input.CustomerID, input.Body.PlanID)
	if err != nil {
		return nil, mapError(h.logger, "select_plan", err)
	}
	out := &SelectPlanOutput{}
	out.Body.Success = true
	out.Body.ContractID = sel.Contract.ContractID
	out.Body.Plan = sel.Plan
	out.Body.Contract = sel.Contract
	return out, nil
}

// PurchaseCreditsInput represents a one-off credit purchase.
type PurchaseCreditsInput struct {
	CustomerID string `query:"customer_id" required:"true" doc:"Billing customer ID"`
	Body       struct {
		Credits int64 `json:"credits" minimum:"1" maximum:"10000000" doc:"Credits to purchase"`
	}
}

// PurchaseCreditsOutput represents the purchase result.
type PurchaseCreditsOutput struct {
	Body struct {
		Success    bool                  `json:"success"`
		ContractID string                `json:"contract_id"`
		Message    string                `json:"message"`
		Balance    *models.CreditBalance `json:"balance,omitempty"`
	}
}

// PurchaseCredits creates a prepaid contract for the credits.
func (h *BillingHandler) PurchaseCredits(ctx context.Context, input *PurchaseCreditsInput) (*PurchaseCreditsOutput, error) {
	p, err := h.plans.PurchaseCredits(ctx, input.CustomerID, input.Body.Credits)
	if err != nil {
		return nil, mapError(h.logger, "purchase_credits", err)
	}
	out := &PurchaseCreditsOutput{}
	out.Body.Success = true
	out.Body.ContractID = p.Contract.ContractID
	out.Body.Message = "Credits purchased successfully"
	out.Body.Balance = p.Balance
	return out, nil
}

// GetBalanceInput identifies the customer.
type GetBalanceInput struct {
	CustomerID string `path:"customer_id" doc:"Billing customer ID"`
}

// GetBalanceOutput represents the resolved balance.
type GetBalanceOutput struct {
	Body models.CreditBalance
}

// GetBalance resolves the balance from the provider. An indeterminate
// balance is a 502, never a zero.
func (h *BillingHandler) GetBalance(ctx context.Context, input *GetBalanceInput) (*GetBalanceOutput, error) {
	b, err := h.balances.Resolve(ctx, input.CustomerID)
	if err != nil {
		return nil, mapError(h.logger, "get_balance", err)
	}
	return &GetBalanceOutput{Body: *b}, nil
}
