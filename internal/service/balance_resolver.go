package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jmylchreest/vocalis-api/internal/config"
	"github.com/jmylchreest/vocalis-api/internal/metronome"
	"github.com/jmylchreest/vocalis-api/internal/models"
)

// ErrBalanceIndeterminate means no balance could be derived from provider data.
// A placeholder balance is never substituted.
var ErrBalanceIndeterminate = errors.New("balance indeterminate")

// BalanceSource returns the provider's raw balance records.
type BalanceSource interface {
	QueryRawBalances(ctx context.Context, customerID string) ([]models.RawBalanceEntry, error)
}

// BalanceResolver collapses raw provider records into one credit balance.
type BalanceResolver struct {
	source         BalanceSource
	nativeType     string
	fallbackType   string
	unitPrice      decimal.Decimal
	centsPerCredit decimal.Decimal
	now            func() time.Time
	logger         *slog.Logger
}

// NewBalanceResolver creates a resolver for the configured credit types.
func NewBalanceResolver(source BalanceSource, cfg *config.Config, logger *slog.Logger) *BalanceResolver {
	return &BalanceResolver{
		source:         source,
		nativeType:     cfg.NativeCreditTypeID,
		fallbackType:   cfg.FallbackCreditTypeID,
		unitPrice:      cfg.Billing.CreditUnitPrice,
		centsPerCredit: cfg.Billing.CentsPerCredit(),
		now:            time.Now,
		logger:         logger.With("component", "balance_resolver"),
	}
}

// Resolve fetches fresh provider data and resolves it. Nothing is cached.
func (r *BalanceResolver) Resolve(ctx context.Context, customerID string) (*models.CreditBalance, error) {
	entries, err := r.source.QueryRawBalances(ctx, customerID)
	if err != nil {
		if errors.Is(err, metronome.ErrNoBalanceData) {
			return nil, fmt.Errorf("%w: %w", ErrBalanceIndeterminate, err)
		}
		return nil, err
	}

	balance, err := r.ResolveEntries(customerID, entries, r.now())
	if err != nil {
		r.logger.Warn("no interpretable balance entries",
			"customer_id", customerID,
			"entries", len(entries),
		)
		return nil, err
	}
	return balance, nil
}

// ResolveEntries applies the native-then-fallback rule to a set of entries.
// Only each entry's balance field counts; ledger detail is ignored.
func (r *BalanceResolver) ResolveEntries(customerID string, entries []models.RawBalanceEntry, now time.Time) (*models.CreditBalance, error) {
	var (
		nativeSum, fallbackSum     decimal.Decimal
		nativeCount, fallbackCount int
	)
	for _, e := range entries {
		switch e.CreditTypeID {
		case r.nativeType:
			nativeSum = nativeSum.Add(e.Balance)
			nativeCount++
		case r.fallbackType:
			fallbackSum = fallbackSum.Add(e.Balance)
			fallbackCount++
		}
	}

	switch {
	case nativeCount > 0:
		amount := clampCredits(nativeSum.Floor().IntPart())
		return &models.CreditBalance{
			CustomerID:   customerID,
			Amount:       amount,
			CurrencyKind: models.CurrencyNative,
			DollarValue:  decimal.NewFromInt(amount).Mul(r.unitPrice),
			AsOf:         now,
		}, nil
	case fallbackCount > 0:
		amount := clampCredits(fallbackSum.Div(r.centsPerCredit).Floor().IntPart())
		return &models.CreditBalance{
			CustomerID:   customerID,
			Amount:       amount,
			CurrencyKind: models.CurrencyFallback,
			DollarValue:  fallbackSum.Div(decimal.NewFromInt(100)),
			AsOf:         now,
		}, nil
	default:
		return nil, fmt.Errorf("customer %s: %w", customerID, ErrBalanceIndeterminate)
	}
}

// clampCredits keeps an overdrawn balance at zero.
func clampCredits(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}
