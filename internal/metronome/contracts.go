package metronome

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jmylchreest/vocalis-api/internal/models"
)

// ContractRequest describes a contract with a single prepaid commit.
type ContractRequest struct {
	CustomerID   string
	RateCardID   string
	ProductID    string
	CreditTypeID string
	Credits      int64
	Start        time.Time
	End          time.Time // exclusive
	CommitName   string
	AutoRecharge *models.AutoRechargeRule
}

func (r ContractRequest) validate() error {
	switch {
	case r.CustomerID == "":
		return errors.New("customer id is required")
	case r.RateCardID == "":
		return errors.New("rate card id is required")
	case r.ProductID == "":
		return errors.New("product id is required")
	case r.Credits <= 0:
		return errors.New("credits must be positive")
	case !r.End.After(r.Start):
		return errors.New("validity window end must be after start")
	}
	if r.AutoRecharge != nil {
		return r.AutoRecharge.Validate()
	}
	return nil
}

// contractPayload builds the create-contract request body.
func (r ContractRequest) contractPayload() map[string]any {
	start := r.Start.UTC().Format(time.RFC3339)
	end := r.End.UTC().Format(time.RFC3339)
	name := r.CommitName
	if name == "" {
		name = PrepaidProductName
	}

	payload := map[string]any{
		"customer_id":   r.CustomerID,
		"rate_card_id":  r.RateCardID,
		"starting_at":   start,
		"ending_before": end,
		"commits": []map[string]any{{
			"product_id": r.ProductID,
			"type":       "PREPAID",
			"name":       name,
			"access_schedule": map[string]any{
				"credit_type_id": r.CreditTypeID,
				"schedule_items": []map[string]any{{
					"amount":        r.Credits,
					"starting_at":   start,
					"ending_before": end,
				}},
			},
		}},
	}

	if r.AutoRecharge != nil && r.AutoRecharge.Enabled {
		payload["prepaid_balance_threshold_configuration"] = map[string]any{
			"commit": map[string]any{
				"product_id":  r.ProductID,
				"name":        "Auto-recharge credits",
				"description": "Credits granted when the balance falls below the threshold",
			},
			"is_enabled": true,
			"payment_gate_config": map[string]any{
				"payment_gate_type": "EXTERNAL",
			},
			"threshold_amount":      r.AutoRecharge.Threshold,
			"recharge_to_amount":    r.AutoRecharge.RechargeToAmount,
			"custom_credit_type_id": r.CreditTypeID,
		}
	}
	return payload
}

// CreateContract creates a contract with one prepaid commit and an optional
// threshold auto-recharge block.
func (c *Client) CreateContract(ctx context.Context, req ContractRequest) (*models.BillingContract, error) {
	if err := req.validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrContractCreationFailed, err)
	}

	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := c.do(ctx, "create_contract", http.MethodPost, "/v1/contracts/create", nil, req.contractPayload(), &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrContractCreationFailed, err)
	}
	if resp.Data.ID == "" {
		return nil, fmt.Errorf("%w: response missing contract id", ErrContractCreationFailed)
	}

	contract := &models.BillingContract{
		ContractID:     resp.Data.ID,
		CustomerID:     req.CustomerID,
		RateCardID:     req.RateCardID,
		ProductID:      req.ProductID,
		InitialCredits: req.Credits,
		ValidFrom:      req.Start.UTC(),
		ValidUntil:     req.End.UTC(),
	}
	if req.AutoRecharge != nil && req.AutoRecharge.Enabled {
		rule := *req.AutoRecharge
		contract.AutoRecharge = &rule
	}

	c.logger.Info("contract created",
		"contract_id", contract.ContractID,
		"customer_id", req.CustomerID,
		"credits", req.Credits,
		"auto_recharge", contract.AutoRecharge != nil,
	)
	return contract, nil
}
