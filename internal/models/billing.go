// Package models defines the domain models for the application.
package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ========================================
// Credit Balance
// ========================================

// CurrencyKind records which credit type a balance was resolved from.
type CurrencyKind string

const (
	CurrencyNative   CurrencyKind = "native"   // Vocalis credit type
	CurrencyFallback CurrencyKind = "fallback" // USD cents, converted to credits
)

// CreditBalance is the normalized credits-remaining figure for one customer.
// It is computed on every query and never cached.
type CreditBalance struct {
	CustomerID   string          `json:"customer_id"`
	Amount       int64           `json:"amount"`
	CurrencyKind CurrencyKind    `json:"currency_kind"`
	DollarValue  decimal.Decimal `json:"dollar_value"`
	AsOf         time.Time       `json:"as_of"`
}

// RawBalanceEntry is one provider balance record after shape normalization.
type RawBalanceEntry struct {
	CreditTypeID string          `json:"credit_type_id"`
	Balance      decimal.Decimal `json:"balance"`
	Ledgers      []LedgerEntry   `json:"ledgers,omitempty"` // diagnostic only
}

// LedgerEntry is an incremental ledger movement reported alongside a balance.
type LedgerEntry struct {
	Type      string          `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// ========================================
// Contracts
// ========================================

// ErrInvalidAutoRecharge is returned when an auto-recharge rule is inconsistent.
var ErrInvalidAutoRecharge = errors.New("invalid auto-recharge rule")

// AutoRechargeRule is the provider-managed threshold top-up configuration.
type AutoRechargeRule struct {
	Threshold        int64 `json:"threshold"`
	RechargeToAmount int64 `json:"recharge_to_amount"`
	Enabled          bool  `json:"enabled"`
}

// Validate checks threshold >= 0 and a positive recharge amount when enabled.
func (r AutoRechargeRule) Validate() error {
	if r.Threshold < 0 {
		return errors.Join(ErrInvalidAutoRecharge, errors.New("threshold must not be negative"))
	}
	if r.Enabled && r.RechargeToAmount <= 0 {
		return errors.Join(ErrInvalidAutoRecharge, errors.New("recharge_to_amount must be positive"))
	}
	return nil
}

// BillingContract is a provider contract carrying one prepaid commit.
// Contracts are immutable once created.
type BillingContract struct {
	ContractID     string            `json:"contract_id"`
	CustomerID     string            `json:"customer_id"`
	RateCardID     string            `json:"rate_card_id"`
	ProductID      string            `json:"product_id"`
	InitialCredits int64             `json:"initial_credits"`
	ValidFrom      time.Time         `json:"valid_from"`
	ValidUntil     time.Time         `json:"valid_until"` // exclusive
	AutoRecharge   *AutoRechargeRule `json:"auto_recharge,omitempty"`
}

// ========================================
// Recharge Workflows
// ========================================

// WorkflowState is the state of a payment-gate handshake.
type WorkflowState string

const (
	WorkflowThresholdReached WorkflowState = "threshold_reached"
	WorkflowPaymentRequested WorkflowState = "payment_requested"
	WorkflowReleased         WorkflowState = "released"
	WorkflowFailed           WorkflowState = "failed"
)

// ReleaseOutcome is the result reported back to the provider.
type ReleaseOutcome string

const (
	OutcomePaid   ReleaseOutcome = "paid"
	OutcomeFailed ReleaseOutcome = "failed"
)

// RechargeWorkflow correlates one threshold recharge webhook sequence.
// It is rebuilt from each webhook payload and never stored.
type RechargeWorkflow struct {
	WorkflowID      string        `json:"workflow_id"`
	CustomerID      string        `json:"customer_id"`
	ContractID      string        `json:"contract_id"`
	InvoiceID       string        `json:"invoice_id"`
	InvoiceTotal    int64         `json:"invoice_total"`
	InvoiceCurrency string        `json:"invoice_currency"`
	State           WorkflowState `json:"state"`
}

// ========================================
// Plans
// ========================================

// Plan is a purchasable subscription option.
type Plan struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	PriceCents     int64  `json:"price_cents"`
	MonthlyCredits int64  `json:"monthly_credits"`
	Trial          bool   `json:"trial"`
	TrialDays      int    `json:"trial_days,omitempty"`
	Description    string `json:"description"`
}

// ========================================
// Usage
// ========================================

// Usage event types ingested for metering.
const (
	UsageEventVoiceGeneration = "voice_generation"
	UsageEventVoiceCloning    = "voice_cloning"
)

// UsageEvent is one metered usage record.
type UsageEvent struct {
	TransactionID string         `json:"transaction_id"`
	CustomerID    string         `json:"customer_id"`
	EventType     string         `json:"event_type"`
	Timestamp     time.Time      `json:"timestamp"`
	Properties    map[string]any `json:"properties"`
}
