package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmylchreest/vocalis-api/internal/config"
	"github.com/jmylchreest/vocalis-api/internal/metronome"
	"github.com/jmylchreest/vocalis-api/internal/models"
	"github.com/jmylchreest/vocalis-api/internal/repository"
)

// Plan errors.
var (
	ErrUnknownPlan     = errors.New("unknown plan")
	ErrRateCardMissing = errors.New("configured rate card not found")
	ErrInvalidPurchase = errors.New("invalid credit purchase")
)

// MaxPurchaseCredits bounds a single one-off purchase.
const MaxPurchaseCredits = 10_000_000

// ContractProvisioner is the subset of the billing gateway needed to
// create contracts.
type ContractProvisioner interface {
	ResolveRateCard(ctx context.Context, name string) (string, error)
	EnsurePrepaidProduct(ctx context.Context) (string, error)
	CreateContract(ctx context.Context, req metronome.ContractRequest) (*models.BillingContract, error)
}

// WelcomeQueuer queues a welcome email after plan selection.
type WelcomeQueuer interface {
	QueueWelcome(user *models.User, plan models.Plan, selectedAt time.Time) bool
}

// PlanSelection is the result of choosing a plan.
type PlanSelection struct {
	Plan     models.Plan             `json:"plan"`
	Contract *models.BillingContract `json:"contract"`
}

// CreditPurchase is the result of a one-off credit purchase.
type CreditPurchase struct {
	Contract *models.BillingContract `json:"contract"`
	Balance  *models.CreditBalance   `json:"balance,omitempty"`
}

// PlanService manages the plan catalogue, plan selection and credit purchases.
type PlanService struct {
	provisioner  ContractProvisioner
	balances     BalanceRefresher
	broadcaster  Broadcaster
	users        repository.UserRepository
	welcome      WelcomeQueuer
	billing      config.BillingConfig
	rateCardName string
	creditTypeID string
	sendWelcome  bool
	now          func() time.Time
	logger       *slog.Logger
}

// NewPlanService creates a new plan service. welcome may be nil.
func NewPlanService(
	cfg *config.Config,
	provisioner ContractProvisioner,
	balances BalanceRefresher,
	broadcaster Broadcaster,
	users repository.UserRepository,
	welcome WelcomeQueuer,
	logger *slog.Logger,
) *PlanService {
	return &PlanService{
		provisioner:  provisioner,
		balances:     balances,
		broadcaster:  broadcaster,
		users:        users,
		welcome:      welcome,
		billing:      cfg.Billing,
		rateCardName: cfg.MetronomeRateCardName,
		creditTypeID: cfg.NativeCreditTypeID,
		sendWelcome:  cfg.SendWelcomeOnPlanSelect && welcome != nil,
		now:          time.Now,
		logger:       logger.With("component", "plans"),
	}
}

// ListPlans returns the plan catalogue.
func (s *PlanService) ListPlans() []models.Plan {
	return s.billing.Plans()
}

// SelectPlan creates the contract for planID. Paid plans run for a year
// with auto-recharge; the trial runs for TrialDays without it.
func (s *PlanService) SelectPlan(ctx context.Context, customerID, planID string) (*PlanSelection, error) {
	plan, ok := s.billing.Plan(planID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlan, planID)
	}

	user, err := s.users.GetByCustomerID(ctx, customerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	now := s.now()
	start := startOfDayUTC(now)
	end := start.AddDate(1, 0, 0)
	var rule *models.AutoRechargeRule
	if plan.Trial {
		end = start.AddDate(0, 0, plan.TrialDays)
	} else {
		rule = &models.AutoRechargeRule{
			Threshold:        s.billing.AutoRechargeThreshold(plan.MonthlyCredits),
			RechargeToAmount: plan.MonthlyCredits,
			Enabled:          true,
		}
	}

	contract, err := s.createContract(ctx, customerID, plan.MonthlyCredits, start, end, plan.Name+" plan credits", rule)
	if err != nil {
		return nil, err
	}

	if err := s.users.SetPlan(ctx, customerID, plan.ID, contract.ContractID, now); err != nil {
		// The contract exists at the provider; the local record is advisory.
		s.logger.Warn("failed to record plan selection", "customer_id", customerID, "error", err)
	}

	s.logger.Info("plan selected",
		"customer_id", customerID,
		"plan", plan.ID,
		"contract_id", contract.ContractID,
		"credits", plan.MonthlyCredits,
	)

	if s.sendWelcome {
		s.welcome.QueueWelcome(user, plan, now)
	}
	return &PlanSelection{Plan: plan, Contract: contract}, nil
}

// PurchaseCredits grants a one-off block of credits valid for a year and
// pushes the refreshed balance to subscribers.
func (s *PlanService) PurchaseCredits(ctx context.Context, customerID string, credits int64) (*CreditPurchase, error) {
	if credits <= 0 || credits > MaxPurchaseCredits {
		return nil, fmt.Errorf("%w: credits must be between 1 and %d", ErrInvalidPurchase, MaxPurchaseCredits)
	}

	start := startOfDayUTC(s.now())
	contract, err := s.createContract(ctx, customerID, credits, start, start.AddDate(1, 0, 0), "Credit top-up", nil)
	if err != nil {
		return nil, err
	}

	out := &CreditPurchase{Contract: contract}
	balance, err := s.balances.Resolve(ctx, customerID)
	if err != nil {
		s.logger.Warn("balance refresh after purchase failed", "customer_id", customerID, "error", err)
		return out, nil
	}
	out.Balance = balance
	s.broadcaster.Broadcast(customerID, balanceEvent(balance, "purchase", map[string]any{
		"contract_id": contract.ContractID,
	}))
	return out, nil
}

func (s *PlanService) createContract(ctx context.Context, customerID string, credits int64, start, end time.Time, name string, rule *models.AutoRechargeRule) (*models.BillingContract, error) {
	rateCardID, err := s.provisioner.ResolveRateCard(ctx, s.rateCardName)
	if err != nil {
		if errors.Is(err, metronome.ErrNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrRateCardMissing, s.rateCardName)
		}
		return nil, err
	}

	productID, err := s.provisioner.EnsurePrepaidProduct(ctx)
	if err != nil {
		return nil, err
	}

	return s.provisioner.CreateContract(ctx, metronome.ContractRequest{
		CustomerID:   customerID,
		RateCardID:   rateCardID,
		ProductID:    productID,
		CreditTypeID: s.creditTypeID,
		Credits:      credits,
		Start:        start,
		End:          end,
		CommitName:   name,
		AutoRecharge: rule,
	})
}

// balanceEvent builds a balance_updated notification.
func balanceEvent(b *models.CreditBalance, reason string, extra map[string]any) models.Event {
	data := map[string]any{
		"new_balance":   b.Amount,
		"dollar_value":  b.DollarValue.StringFixed(2),
		"currency_kind": string(b.CurrencyKind),
		"reason":        reason,
	}
	for k, v := range extra {
		data[k] = v
	}
	return models.NewEvent(models.EventBalanceUpdated, data)
}
