package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmylchreest/vocalis-api/internal/metronome"
	"github.com/jmylchreest/vocalis-api/internal/models"
	"github.com/jmylchreest/vocalis-api/internal/worker"
)

const maxWebhookBodySize = 65536 // 64KB

// Webhook processing results, used as the metrics label.
const (
	WebhookResultProcessed    = "processed"
	WebhookResultQueued       = "queued"
	WebhookResultDuplicate    = "duplicate"
	WebhookResultObserved     = "observed"
	WebhookResultIgnored      = "ignored"
	WebhookResultFailed       = "failed"
	WebhookResultInvalid      = "invalid"
	WebhookResultUnauthorized = "unauthorized"
)

// WebhookError is a rejection of the inbound request itself. Only these
// change the acknowledgment status.
type WebhookError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *WebhookError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *WebhookError) Unwrap() error { return e.Err }

// RechargeHandler advances payment gate workflows.
type RechargeHandler interface {
	HandleEvent(ctx context.Context, event *metronome.WebhookEvent) (models.RechargeWorkflow, error)
}

// OnboardingHandler queues onboarding emails. It returns true when an
// email task was queued.
type OnboardingHandler interface {
	HandleEvent(event *metronome.WebhookEvent) bool
}

// WebhookArchiver stores raw webhook payloads.
type WebhookArchiver interface {
	IsEnabled() bool
	ArchiveWebhook(ctx context.Context, eventType string, body []byte, receivedAt time.Time) (string, error)
}

// TaskSubmitter runs detached background tasks.
type TaskSubmitter interface {
	Submit(name string, fn worker.TaskFunc) bool
}

// WebhookObserver records webhook outcomes.
type WebhookObserver interface {
	ObserveWebhook(eventType, result string)
}

// MetronomeWebhookConfig wires the webhook handler. Verifier, Archive,
// Tasks and Observer are optional.
type MetronomeWebhookConfig struct {
	Verifier       *metronome.WebhookVerifier
	Recharge       RechargeHandler
	Onboarding     OnboardingHandler
	Archive        WebhookArchiver
	Tasks          TaskSubmitter
	Observer       WebhookObserver
	ProcessTimeout time.Duration // default 60s
	Logger         *slog.Logger
}

// MetronomeWebhookHandler receives billing provider webhooks.
//
// Every parsed event is acknowledged with 200, whatever happens while
// processing it, so the provider never retries over events this service
// chooses not to act on. Only unreadable bodies (400) and bad signatures
// (401) are rejected.
type MetronomeWebhookHandler struct {
	verifier       *metronome.WebhookVerifier
	recharge       RechargeHandler
	onboarding     OnboardingHandler
	archive        WebhookArchiver
	tasks          TaskSubmitter
	observer       WebhookObserver
	processTimeout time.Duration
	logger         *slog.Logger
	now            func() time.Time
}

// NewMetronomeWebhookHandler creates a webhook handler.
func NewMetronomeWebhookHandler(cfg MetronomeWebhookConfig) *MetronomeWebhookHandler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ProcessTimeout <= 0 {
		cfg.ProcessTimeout = 60 * time.Second
	}
	return &MetronomeWebhookHandler{
		verifier:       cfg.Verifier,
		recharge:       cfg.Recharge,
		onboarding:     cfg.Onboarding,
		archive:        cfg.Archive,
		tasks:          cfg.Tasks,
		observer:       cfg.Observer,
		processTimeout: cfg.ProcessTimeout,
		logger:         cfg.Logger.With("component", "metronome_webhook"),
		now:            time.Now,
	}
}

// HandleWebhook is the combined endpoint; it dispatches by event type.
func (h *MetronomeWebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "combined")
}

// HandleCategory returns a handler for one of the per-category endpoints
// (alerts, invoices, payments, contracts). Routing is still by event type;
// the category is recorded for diagnostics.
func (h *MetronomeWebhookHandler) HandleCategory(category string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.serve(w, r, category)
	}
}

type webhookAck struct {
	Status    string `json:"status"`
	EventID   string `json:"event_id,omitempty"`
	EventType string `json:"event_type,omitempty"`
}

type webhookRejection struct {
	Error string `json:"error"`
}

func (h *MetronomeWebhookHandler) serve(w http.ResponseWriter, r *http.Request, category string) {
	receivedAt := h.now()

	event, body, err := h.readEvent(w, r)
	if err != nil {
		var werr *WebhookError
		if !errors.As(err, &werr) {
			werr = &WebhookError{StatusCode: http.StatusBadRequest, Message: "invalid payload", Err: err}
		}
		result := WebhookResultInvalid
		if werr.StatusCode == http.StatusUnauthorized {
			result = WebhookResultUnauthorized
		}
		h.observe("unknown", result)
		h.logger.Warn("webhook rejected", "category", category, "status", werr.StatusCode, "error", werr)
		writeJSON(w, werr.StatusCode, webhookRejection{Error: werr.Message})
		return
	}

	log := h.logger.With("category", category, "event_id", event.ID, "type", event.Type)
	log.Info("webhook received", "customer_id", event.Properties.CustomerID)

	h.archiveAsync(log, event.Type, body, receivedAt)

	// Processing outlives a provider hang-up; the release must not be
	// abandoned halfway.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.processTimeout)
	defer cancel()
	h.observe(event.Type, h.dispatch(ctx, log, event))

	writeJSON(w, http.StatusOK, webhookAck{Status: "received", EventID: event.ID, EventType: event.Type})
}

// readEvent reads, verifies and parses the request body.
func (h *MetronomeWebhookHandler) readEvent(w http.ResponseWriter, r *http.Request) (*metronome.WebhookEvent, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, nil, &WebhookError{StatusCode: http.StatusBadRequest, Message: "failed to read body", Err: err}
	}

	if h.verifier != nil {
		if err := h.verifier.Verify(r.Header, body); err != nil {
			return nil, nil, &WebhookError{StatusCode: http.StatusUnauthorized, Message: "invalid signature", Err: err}
		}
	}

	event, err := metronome.ParseWebhookEvent(body)
	if err != nil {
		return nil, nil, &WebhookError{StatusCode: http.StatusBadRequest, Message: "invalid payload", Err: err}
	}
	return event, body, nil
}

// dispatch routes the event and returns the processing result. Errors are
// logged here and never reach the provider.
func (h *MetronomeWebhookHandler) dispatch(ctx context.Context, log *slog.Logger, event *metronome.WebhookEvent) string {
	switch event.Type {
	case metronome.EventThresholdReached, metronome.EventExternalInitiate:
		if h.recharge == nil {
			return WebhookResultIgnored
		}
		wf, err := h.recharge.HandleEvent(ctx, event)
		if err != nil {
			log.Error("recharge workflow processing failed", "workflow_id", wf.WorkflowID, "state", wf.State, "error", err)
			return WebhookResultFailed
		}
		log.Info("recharge workflow processed", "workflow_id", wf.WorkflowID, "state", wf.State)
		return WebhookResultProcessed

	case metronome.EventContractStart, metronome.EventLowBalance:
		if h.onboarding == nil {
			return WebhookResultIgnored
		}
		if h.onboarding.HandleEvent(event) {
			return WebhookResultQueued
		}
		return WebhookResultDuplicate

	case metronome.EventPaymentStatus, metronome.EventInvoiceFinalized, metronome.EventInvoiceProviderErr:
		log.Info("webhook observed",
			"customer_id", event.Properties.CustomerID,
			"invoice_id", event.Properties.InvoiceID,
			"payment_status", event.Properties.PaymentStatus,
		)
		return WebhookResultObserved

	default:
		log.Debug("unhandled webhook event type")
		return WebhookResultIgnored
	}
}

func (h *MetronomeWebhookHandler) archiveAsync(log *slog.Logger, eventType string, body []byte, receivedAt time.Time) {
	if h.archive == nil || !h.archive.IsEnabled() || h.tasks == nil {
		return
	}
	ok := h.tasks.Submit("webhook_archive", func(ctx context.Context) error {
		_, err := h.archive.ArchiveWebhook(ctx, eventType, body, receivedAt)
		return err
	})
	if !ok {
		log.Warn("webhook archive queue full, payload not archived")
	}
}

func (h *MetronomeWebhookHandler) observe(eventType, result string) {
	if h.observer != nil {
		h.observer.ObserveWebhook(eventType, result)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
