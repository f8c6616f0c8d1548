package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/paymentintent"

	"github.com/jmylchreest/vocalis-api/internal/models"
)

// PaymentAuthorization is the result of charging for a recharge.
type PaymentAuthorization struct {
	Approved  bool
	Reference string // processor reference, empty when simulated
	Reason    string // decline reason
}

// PaymentAuthorizer charges for a threshold recharge before it is released.
type PaymentAuthorizer interface {
	Authorize(ctx context.Context, wf models.RechargeWorkflow) (PaymentAuthorization, error)
}

// SimulatedAuthorizer approves every charge without contacting a processor.
type SimulatedAuthorizer struct {
	logger *slog.Logger
}

// NewSimulatedAuthorizer creates an authorizer for demo deployments.
func NewSimulatedAuthorizer(logger *slog.Logger) *SimulatedAuthorizer {
	return &SimulatedAuthorizer{logger: logger.With("component", "payments", "mode", "simulated")}
}

// Authorize always approves.
func (a *SimulatedAuthorizer) Authorize(_ context.Context, wf models.RechargeWorkflow) (PaymentAuthorization, error) {
	a.logger.Info("simulated payment approved",
		"workflow_id", wf.WorkflowID,
		"customer_id", wf.CustomerID,
		"invoice_total", wf.InvoiceTotal,
		"invoice_currency", wf.InvoiceCurrency,
	)
	return PaymentAuthorization{Approved: true}, nil
}

// StripeAuthorizer confirms a PaymentIntent for each recharge invoice.
// The workflow ID is the idempotency key, so a redelivered webhook
// never charges twice.
type StripeAuthorizer struct {
	paymentMethod string
	create        func(*stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	logger        *slog.Logger
}

// NewStripeAuthorizer creates an authorizer backed by Stripe.
func NewStripeAuthorizer(secretKey, paymentMethod string, logger *slog.Logger) *StripeAuthorizer {
	stripe.Key = secretKey
	return &StripeAuthorizer{
		paymentMethod: paymentMethod,
		create:        paymentintent.New,
		logger:        logger.With("component", "payments", "mode", "stripe"),
	}
}

// Authorize confirms a PaymentIntent for the invoice total. A card decline
// is reported as an unapproved authorization, not an error.
func (a *StripeAuthorizer) Authorize(ctx context.Context, wf models.RechargeWorkflow) (PaymentAuthorization, error) {
	if wf.InvoiceTotal <= 0 {
		return PaymentAuthorization{}, fmt.Errorf("workflow %s: invoice total must be positive, got %d", wf.WorkflowID, wf.InvoiceTotal)
	}
	currency := strings.ToLower(wf.InvoiceCurrency)
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(wf.InvoiceTotal),
		Currency:      stripe.String(currency),
		PaymentMethod: stripe.String(a.paymentMethod),
		Confirm:       stripe.Bool(true),
		Description:   stripe.String("Vocalis credit auto-recharge"),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey("recharge-" + wf.WorkflowID)
	params.AddMetadata("workflow_id", wf.WorkflowID)
	params.AddMetadata("customer_id", wf.CustomerID)
	if wf.InvoiceID != "" {
		params.AddMetadata("invoice_id", wf.InvoiceID)
	}

	pi, err := a.create(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			a.logger.Warn("recharge payment declined",
				"workflow_id", wf.WorkflowID,
				"code", stripeErr.Code,
				"decline_code", stripeErr.DeclineCode,
			)
			return PaymentAuthorization{Approved: false, Reason: string(stripeErr.Code)}, nil
		}
		return PaymentAuthorization{}, fmt.Errorf("failed to create payment intent: %w", err)
	}

	approved := pi.Status == stripe.PaymentIntentStatusSucceeded
	a.logger.Info("recharge payment processed",
		"workflow_id", wf.WorkflowID,
		"payment_intent", pi.ID,
		"status", pi.Status,
	)
	auth := PaymentAuthorization{Approved: approved, Reference: pi.ID}
	if !approved {
		auth.Reason = string(pi.Status)
	}
	return auth, nil
}
