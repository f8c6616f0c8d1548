package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmylchreest/vocalis-api/internal/metronome"
	"github.com/jmylchreest/vocalis-api/internal/models"
)

// ErrMissingWorkflowID is returned for a payment gate event without a workflow.
var ErrMissingWorkflowID = errors.New("payment gate event has no workflow_id")

// WorkflowReleaser completes the provider side of a threshold recharge.
type WorkflowReleaser interface {
	ReleaseThresholdWorkflow(ctx context.Context, workflowID string, outcome models.ReleaseOutcome) (metronome.ReleaseResult, error)
}

// BalanceRefresher computes a customer's current balance.
type BalanceRefresher interface {
	Resolve(ctx context.Context, customerID string) (*models.CreditBalance, error)
}

// Broadcaster pushes an event to a customer's live subscribers.
type Broadcaster interface {
	Broadcast(customerID string, event models.Event) int
}

// RechargeCoordinator drives the payment gate handshake for threshold
// auto-recharges. It acts only on webhook deliveries and keeps no state
// between them.
type RechargeCoordinator struct {
	releaser    WorkflowReleaser
	balances    BalanceRefresher
	broadcaster Broadcaster
	authorizer  PaymentAuthorizer
	logger      *slog.Logger
}

// NewRechargeCoordinator creates a coordinator.
func NewRechargeCoordinator(
	releaser WorkflowReleaser,
	balances BalanceRefresher,
	broadcaster Broadcaster,
	authorizer PaymentAuthorizer,
	logger *slog.Logger,
) *RechargeCoordinator {
	return &RechargeCoordinator{
		releaser:    releaser,
		balances:    balances,
		broadcaster: broadcaster,
		authorizer:  authorizer,
		logger:      logger.With("component", "recharge"),
	}
}

// HandleEvent advances the workflow carried by a payment gate event and
// returns its resulting state. Other event types are ignored.
func (c *RechargeCoordinator) HandleEvent(ctx context.Context, event *metronome.WebhookEvent) (models.RechargeWorkflow, error) {
	wf := event.Workflow()

	switch event.Type {
	case metronome.EventThresholdReached:
		c.logger.Info("balance threshold reached, awaiting payment request",
			"event_id", event.ID,
			"workflow_id", wf.WorkflowID,
			"customer_id", wf.CustomerID,
			"contract_id", wf.ContractID,
		)
		return wf, nil

	case metronome.EventExternalInitiate:
		return c.handlePaymentRequested(ctx, event.ID, wf)

	default:
		c.logger.Debug("ignoring non payment gate event", "event_id", event.ID, "type", event.Type)
		return wf, nil
	}
}

func (c *RechargeCoordinator) handlePaymentRequested(ctx context.Context, eventID string, wf models.RechargeWorkflow) (models.RechargeWorkflow, error) {
	if wf.WorkflowID == "" {
		wf.State = models.WorkflowFailed
		return wf, ErrMissingWorkflowID
	}

	log := c.logger.With(
		"event_id", eventID,
		"workflow_id", wf.WorkflowID,
		"customer_id", wf.CustomerID,
	)
	log.Info("recharge payment requested",
		"invoice_id", wf.InvoiceID,
		"invoice_total", wf.InvoiceTotal,
		"invoice_currency", wf.InvoiceCurrency,
	)

	auth, err := c.authorizer.Authorize(ctx, wf)
	if err != nil {
		// Not released: the provider keeps the workflow open and redelivers.
		wf.State = models.WorkflowFailed
		log.Error("payment authorization error", "error", err)
		return wf, fmt.Errorf("authorize workflow %s: %w", wf.WorkflowID, err)
	}

	outcome := models.OutcomePaid
	if !auth.Approved {
		outcome = models.OutcomeFailed
		log.Warn("payment declined, releasing as failed", "reason", auth.Reason)
	}

	result, err := c.releaser.ReleaseThresholdWorkflow(ctx, wf.WorkflowID, outcome)
	if err != nil {
		wf.State = models.WorkflowFailed
		log.Error("workflow release failed", "outcome", outcome, "error", err)
		return wf, err
	}
	if result.AlreadyResolved {
		log.Info("workflow already released by another delivery", "outcome", outcome)
	}

	if outcome == models.OutcomeFailed {
		wf.State = models.WorkflowFailed
		return wf, nil
	}

	wf.State = models.WorkflowReleased
	log.Info("recharge released", "payment_reference", auth.Reference)
	c.notifyRecharged(ctx, log, wf)
	return wf, nil
}

// notifyRecharged refreshes the balance and pushes it to subscribers.
// A refresh failure never undoes the release; subscribers get a
// recharge_completed event without a figure instead.
func (c *RechargeCoordinator) notifyRecharged(ctx context.Context, log *slog.Logger, wf models.RechargeWorkflow) {
	if wf.CustomerID == "" {
		log.Warn("released workflow has no customer_id, skipping notification")
		return
	}

	balance, err := c.balances.Resolve(ctx, wf.CustomerID)
	if err != nil {
		log.Error("balance refresh after recharge failed", "error", err)
		c.broadcaster.Broadcast(wf.CustomerID, models.NewEvent(models.EventRechargeCompleted, map[string]any{
			"workflow_id": wf.WorkflowID,
		}))
		return
	}

	delivered := c.broadcaster.Broadcast(wf.CustomerID, balanceEvent(balance, "auto_recharge", map[string]any{
		"workflow_id": wf.WorkflowID,
	}))
	log.Info("recharge balance broadcast", "new_balance", balance.Amount, "delivered", delivered)
}
