package config

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jmylchreest/vocalis-api/internal/models"
)

// Default Metronome credit type identifiers.
const (
	DefaultNativeCreditTypeID   = "21984655-5f0c-4161-973e-bdc5d2ecd530"
	DefaultFallbackCreditTypeID = "2714e483-4ff1-48e4-9e25-ac732e8f24f2"
)

// Plan identifiers.
const (
	PlanTrial   = "trial"
	PlanCreator = "creator"
	PlanPro     = "pro"
)

// BillingConfig holds billing-related configuration.
type BillingConfig struct {
	// CreditUnitPrice is the USD price of one credit.
	CreditUnitPrice decimal.Decimal

	// AutoRechargeMinThreshold is the floor for the auto-recharge trigger level.
	AutoRechargeMinThreshold int64

	// AutoRechargeThresholdPercent is the trigger level as a percentage of the
	// plan's monthly credits, used when larger than the floor.
	AutoRechargeThresholdPercent int64

	// TrialCredits and TrialDays describe the free trial grant.
	TrialCredits int64
	TrialDays    int

	// PlanPriceCents is the monthly price per paid plan.
	PlanPriceCents map[string]int64
}

// DefaultBillingConfig returns the default billing configuration.
func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		CreditUnitPrice:              decimal.RequireFromString("0.00025"), // 40 credits per cent
		AutoRechargeMinThreshold:     10000,
		AutoRechargeThresholdPercent: 10,
		TrialCredits:                 50000,
		TrialDays:                    14,
		PlanPriceCents: map[string]int64{
			PlanCreator: 4900,
			PlanPro:     19900,
		},
	}
}

func loadBillingConfig() (BillingConfig, error) {
	b := DefaultBillingConfig()

	price, err := getEnvDecimal("CREDIT_UNIT_PRICE", b.CreditUnitPrice)
	if err != nil {
		return b, err
	}
	b.CreditUnitPrice = price
	b.AutoRechargeMinThreshold = getEnvInt64("AUTO_RECHARGE_MIN_THRESHOLD", b.AutoRechargeMinThreshold)
	b.AutoRechargeThresholdPercent = getEnvInt64("AUTO_RECHARGE_THRESHOLD_PERCENT", b.AutoRechargeThresholdPercent)
	b.TrialCredits = getEnvInt64("TRIAL_CREDITS", b.TrialCredits)
	b.TrialDays = getEnvInt("TRIAL_DAYS", b.TrialDays)
	return b, nil
}

// Validate checks the billing settings are usable.
func (c BillingConfig) Validate() error {
	if !c.CreditUnitPrice.IsPositive() {
		return errors.New("CREDIT_UNIT_PRICE must be positive")
	}
	if c.AutoRechargeMinThreshold < 0 {
		return errors.New("AUTO_RECHARGE_MIN_THRESHOLD must not be negative")
	}
	if c.AutoRechargeThresholdPercent < 0 || c.AutoRechargeThresholdPercent > 100 {
		return fmt.Errorf("AUTO_RECHARGE_THRESHOLD_PERCENT must be 0-100, got %d", c.AutoRechargeThresholdPercent)
	}
	if c.TrialCredits < 0 || c.TrialDays <= 0 {
		return errors.New("trial credits and days must be positive")
	}
	return nil
}

// CentsPerCredit returns the USD-cent value of one credit.
func (c BillingConfig) CentsPerCredit() decimal.Decimal {
	return c.CreditUnitPrice.Mul(decimal.NewFromInt(100))
}

// CreditsForCents converts a USD-cent amount into whole credits, rounding down.
func (c BillingConfig) CreditsForCents(cents int64) int64 {
	return decimal.NewFromInt(cents).Div(c.CentsPerCredit()).Floor().IntPart()
}

// AutoRechargeThreshold returns max(floor, percent of monthly credits).
func (c BillingConfig) AutoRechargeThreshold(monthlyCredits int64) int64 {
	pct := monthlyCredits * c.AutoRechargeThresholdPercent / 100
	if pct > c.AutoRechargeMinThreshold {
		return pct
	}
	return c.AutoRechargeMinThreshold
}

// Plans returns the plan catalogue in display order.
func (c BillingConfig) Plans() []models.Plan {
	plans := []models.Plan{{
		ID:             PlanTrial,
		Name:           "Free Trial",
		MonthlyCredits: c.TrialCredits,
		Trial:          true,
		TrialDays:      c.TrialDays,
		Description:    fmt.Sprintf("%d credits for %d days, no card required", c.TrialCredits, c.TrialDays),
	}}
	for _, id := range []string{PlanCreator, PlanPro} {
		price, ok := c.PlanPriceCents[id]
		if !ok {
			continue
		}
		credits := c.CreditsForCents(price)
		plans = append(plans, models.Plan{
			ID:             id,
			Name:           planName(id),
			PriceCents:     price,
			MonthlyCredits: credits,
			Description:    fmt.Sprintf("%d credits per month with auto-recharge", credits),
		})
	}
	return plans
}

// Plan looks up a plan by ID.
func (c BillingConfig) Plan(id string) (models.Plan, bool) {
	for _, p := range c.Plans() {
		if p.ID == id {
			return p, true
		}
	}
	return models.Plan{}, false
}

func planName(id string) string {
	switch id {
	case PlanCreator:
		return "Creator"
	case PlanPro:
		return "Pro"
	default:
		return id
	}
}
