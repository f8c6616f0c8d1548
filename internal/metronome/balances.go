package metronome

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/jmylchreest/vocalis-api/internal/models"
)

// balanceShape tags which provider layout a balance record used.
type balanceShape int

const (
	shapeUnknown        balanceShape = iota
	shapeAccessSchedule              // access_schedule.credit_type.id
	shapeCreditType                  // credit_type.id
	shapeFlat                        // credit_type_id
)

func (s balanceShape) String() string {
	switch s {
	case shapeAccessSchedule:
		return "access_schedule"
	case shapeCreditType:
		return "credit_type"
	case shapeFlat:
		return "flat"
	default:
		return "unknown"
	}
}

type creditTypeRef struct {
	ID string `json:"id"`
}

type rawLedgerEntry struct {
	Type      string          `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp string          `json:"timestamp"`
}

// rawBalanceRecord is the union of every known balance record layout.
type rawBalanceRecord struct {
	Balance        *decimal.Decimal `json:"balance"`
	CreditTypeID   string           `json:"credit_type_id"`
	CreditType     *creditTypeRef   `json:"credit_type"`
	AccessSchedule *struct {
		CreditType   *creditTypeRef `json:"credit_type"`
		CreditTypeID string         `json:"credit_type_id"`
	} `json:"access_schedule"`
	Ledger  []rawLedgerEntry `json:"ledger"`
	Ledgers []rawLedgerEntry `json:"ledgers"`
}

// normalize resolves the credit type from whichever layout is present.
// The nested access schedule wins because it is what the commit is denominated in.
func (r rawBalanceRecord) normalize() (models.RawBalanceEntry, balanceShape, bool) {
	var (
		creditType string
		shape      balanceShape
	)
	switch {
	case r.AccessSchedule != nil && r.AccessSchedule.CreditType != nil && r.AccessSchedule.CreditType.ID != "":
		creditType, shape = r.AccessSchedule.CreditType.ID, shapeAccessSchedule
	case r.AccessSchedule != nil && r.AccessSchedule.CreditTypeID != "":
		creditType, shape = r.AccessSchedule.CreditTypeID, shapeAccessSchedule
	case r.CreditType != nil && r.CreditType.ID != "":
		creditType, shape = r.CreditType.ID, shapeCreditType
	case r.CreditTypeID != "":
		creditType, shape = r.CreditTypeID, shapeFlat
	default:
		return models.RawBalanceEntry{}, shapeUnknown, false
	}
	if r.Balance == nil {
		return models.RawBalanceEntry{}, shape, false
	}

	entry := models.RawBalanceEntry{
		CreditTypeID: creditType,
		Balance:      *r.Balance,
	}
	for _, l := range append(r.Ledger, r.Ledgers...) {
		entry.Ledgers = append(entry.Ledgers, models.LedgerEntry{
			Type:      l.Type,
			Amount:    l.Amount,
			Timestamp: l.Timestamp,
		})
	}
	return entry, shape, true
}

// parseBalanceRecords normalizes one page of raw records, skipping those
// with no credit type or no balance.
func (c *Client) parseBalanceRecords(customerID string, records []json.RawMessage) []models.RawBalanceEntry {
	entries := make([]models.RawBalanceEntry, 0, len(records))
	for i, raw := range records {
		var rec rawBalanceRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			c.logger.Warn("skipping unparseable balance record", "customer_id", customerID, "index", i, "error", err)
			continue
		}
		entry, shape, ok := rec.normalize()
		if !ok {
			c.logger.Debug("skipping balance record without credit type or balance",
				"customer_id", customerID,
				"index", i,
				"shape", shape.String(),
			)
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

// QueryRawBalances lists every balance record for a customer.
// An empty result is ErrNoBalanceData, never an implicit zero.
func (c *Client) QueryRawBalances(ctx context.Context, customerID string) ([]models.RawBalanceEntry, error) {
	req := map[string]any{
		"customer_id":               customerID,
		"include_balance":           true,
		"include_contract_balances": true,
		"include_ledgers":           true,
	}

	var (
		entries []models.RawBalanceEntry
		cursor  string
	)
	for range maxPages {
		var query url.Values
		if cursor != "" {
			query = url.Values{"next_page": {cursor}}
		}

		var resp page[json.RawMessage]
		if err := c.do(ctx, "list_balances", http.MethodPost, "/v1/contracts/customerBalances/list", query, req, &resp); err != nil {
			return nil, err
		}
		entries = append(entries, c.parseBalanceRecords(customerID, resp.Data)...)

		if resp.NextPage == nil || *resp.NextPage == "" {
			break
		}
		cursor = *resp.NextPage
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("customer %s: %w", customerID, ErrNoBalanceData)
	}
	return entries, nil
}
