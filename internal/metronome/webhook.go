package metronome

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmylchreest/vocalis-api/internal/models"
)

// Webhook event types this service acts on or records.
const (
	EventThresholdReached   = "payment_gate.threshold_reached"
	EventExternalInitiate   = "payment_gate.external_initiate"
	EventPaymentStatus      = "payment_gate.payment_status"
	EventLowBalance         = "alerts.low_remaining_credit_balance"
	EventInvoiceFinalized   = "invoice.finalized"
	EventInvoiceProviderErr = "invoice.billing_provider_error"
	EventContractStart      = "contract.start"
)

// ErrInvalidWebhook is returned when a webhook body is not a usable event.
var ErrInvalidWebhook = errors.New("invalid webhook payload")

// EventProperties holds the fields the provider sends across event types.
// Unused fields are left empty.
type EventProperties struct {
	CustomerID       string           `json:"customer_id"`
	ContractID       string           `json:"contract_id"`
	WorkflowID       string           `json:"workflow_id"`
	InvoiceID        string           `json:"invoice_id"`
	InvoiceTotal     models.FlexInt64 `json:"invoice_total"`
	InvoiceCurrency  string           `json:"invoice_currency"`
	AlertID          string           `json:"alert_id"`
	Threshold        models.FlexInt64 `json:"threshold"`
	RemainingBalance models.FlexInt64 `json:"remaining_balance"`
	PaymentStatus    string           `json:"payment_status"`
}

// WebhookEvent is a parsed provider notification.
type WebhookEvent struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Timestamp  string          `json:"timestamp,omitempty"`
	Properties EventProperties `json:"properties"`
}

// Workflow builds the recharge workflow carried by a payment gate event.
func (e *WebhookEvent) Workflow() models.RechargeWorkflow {
	state := models.WorkflowPaymentRequested
	if e.Type == EventThresholdReached {
		state = models.WorkflowThresholdReached
	}
	return models.RechargeWorkflow{
		WorkflowID:      e.Properties.WorkflowID,
		CustomerID:      e.Properties.CustomerID,
		ContractID:      e.Properties.ContractID,
		InvoiceID:       e.Properties.InvoiceID,
		InvoiceTotal:    e.Properties.InvoiceTotal.Int64(),
		InvoiceCurrency: e.Properties.InvoiceCurrency,
		State:           state,
	}
}

// ParseWebhookEvent decodes a webhook body. Properties may arrive under
// "properties" or "data"; the first non-empty object is used.
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var envelope struct {
		ID         string          `json:"id"`
		Type       string          `json:"type"`
		Timestamp  string          `json:"timestamp"`
		Properties json.RawMessage `json:"properties"`
		Data       json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidWebhook, err)
	}
	if envelope.Type == "" {
		return nil, fmt.Errorf("%w: missing event type", ErrInvalidWebhook)
	}

	event := &WebhookEvent{
		ID:        envelope.ID,
		Type:      envelope.Type,
		Timestamp: envelope.Timestamp,
	}
	for _, raw := range []json.RawMessage{envelope.Properties, envelope.Data} {
		if isEmptyObject(raw) {
			continue
		}
		if err := json.Unmarshal(raw, &event.Properties); err != nil {
			return nil, fmt.Errorf("%w: properties: %w", ErrInvalidWebhook, err)
		}
		break
	}
	return event, nil
}

// isEmptyObject reports whether raw is absent, null or an object with no keys.
func isEmptyObject(raw json.RawMessage) bool {
	if len(raw) == 0 || string(raw) == "null" {
		return true
	}
	var fields map[string]json.RawMessage
	return json.Unmarshal(raw, &fields) == nil && len(fields) == 0
}
