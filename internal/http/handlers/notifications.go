package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/go-chi/chi/v5"

	"github.com/jmylchreest/vocalis-api/internal/models"
	"github.com/jmylchreest/vocalis-api/internal/notify"
)

// =============================================================================
// SSE Event Types for OpenAPI Schema Generation
// =============================================================================

// SSEConnectedEvent is the first event on every stream.
type SSEConnectedEvent struct {
	Type       string `json:"type" doc:"Always connected"`
	CustomerID string `json:"customer_id"`
}

// SSEPingEvent is sent after a keep-alive interval with no other event.
type SSEPingEvent struct {
	Type string `json:"type" doc:"Always ping"`
}

// SSEBalanceEvent is sent whenever the balance changes.
type SSEBalanceEvent struct {
	Type         string `json:"type" doc:"Always balance_updated"`
	NewBalance   int64  `json:"new_balance" doc:"Credits remaining"`
	DollarValue  string `json:"dollar_value" doc:"Dollar value of the balance"`
	CurrencyKind string `json:"currency_kind" doc:"native or fallback"`
	Reason       string `json:"reason" doc:"auto_recharge or purchase"`
	WorkflowID   string `json:"workflow_id,omitempty"`
	ContractID   string `json:"contract_id,omitempty"`
}

// SSERechargeEvent is sent when a recharge was released but the new
// balance could not be read.
type SSERechargeEvent struct {
	Type       string `json:"type" doc:"Always recharge_completed"`
	WorkflowID string `json:"workflow_id"`
}

// SSEUsageEvent is sent after each metered action.
type SSEUsageEvent struct {
	Type              string `json:"type" doc:"Always usage_recorded"`
	TransactionID     string `json:"transaction_id"`
	EventType         string `json:"event_type"`
	CreditsConsumed   int64  `json:"credits_consumed"`
	RemainingEstimate int64  `json:"remaining_estimate"`
}

// SSEStreamInput is the input for the notification stream endpoint.
type SSEStreamInput struct {
	CustomerID string `path:"customer_id" doc:"Billing customer ID to subscribe to"`
}

// Subscriber registers notification channels.
type Subscriber interface {
	Subscribe(customerID string) *notify.Subscription
}

// NotificationsHandler streams per-customer notifications over SSE.
type NotificationsHandler struct {
	hub    Subscriber
	logger *slog.Logger
}

// NewNotificationsHandler creates a notifications handler.
func NewNotificationsHandler(hub Subscriber, logger *slog.Logger) *NotificationsHandler {
	return &NotificationsHandler{hub: hub, logger: logger.With("component", "notifications")}
}

// Stream handles SSE streaming of customer notifications.
// This is a raw HTTP handler (not Huma) to support SSE. The subscription is
// removed on every exit path.
func (h *NotificationsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "customer_id")
	if customerID == "" {
		http.Error(w, `{"error":"customer ID required"}`, http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, `{"error":"streaming not supported"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	// Streams outlive the server write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	sub := h.hub.Subscribe(customerID)
	defer sub.Close()

	log := h.logger.With("customer_id", customerID, "handle", sub.Handle)
	log.Debug("notification stream opened")

	for {
		event, err := sub.Next(r.Context())
		if err != nil {
			log.Debug("notification stream closed", "reason", err)
			return
		}
		if err := writeSSEEvent(w, flusher, event); err != nil {
			log.Debug("notification stream write failed", "error", err)
			return
		}
	}
}

// writeSSEEvent writes one event as `event: <type>` plus a JSON data line.
func writeSSEEvent(w http.ResponseWriter, flusher http.Flusher, event models.Event) error {
	data, err := json.Marshal(event.Payload())
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

// =============================================================================
// Raw Endpoint OpenAPI Registration
// =============================================================================

// RegisterRawEndpoints documents the SSE stream in the OpenAPI spec. The
// real handler is mounted on the chi router.
func (h *NotificationsHandler) RegisterRawEndpoints(api huma.API) {
	sse.Register(api, huma.Operation{
		OperationID: "streamNotifications",
		Method:      http.MethodGet,
		Path:        "/api/notifications/stream/{customer_id}",
		Summary:     "Stream balance notifications via SSE",
		Description: `Server-Sent Events stream of balance changes for one customer.

Events sent:
- **connected**: first event after subscribing
- **ping**: keep-alive when nothing else was sent for the keep-alive interval
- **balance_updated**: new balance after a purchase or an automatic recharge
- **recharge_completed**: recharge released but the new balance could not be read
- **usage_recorded**: credits consumed by a metered action`,
		Tags: []string{"Notifications"},
	}, map[string]any{
		models.EventConnected:         SSEConnectedEvent{},
		models.EventPing:              SSEPingEvent{},
		models.EventBalanceUpdated:    SSEBalanceEvent{},
		models.EventRechargeCompleted: SSERechargeEvent{},
		models.EventUsageRecorded:     SSEUsageEvent{},
	}, func(ctx context.Context, input *SSEStreamInput, send sse.Sender) {
		// Placeholder handler - the chi route serves the stream.
		<-ctx.Done()
	})
}
