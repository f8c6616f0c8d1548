package handlers

import (
	"context"
	"log/slog"

	"github.com/jmylchreest/vocalis-api/internal/service"
)

// UsageService is the metered actions used by UsageHandler.
type UsageService interface {
	GenerateVoice(ctx context.Context, customerID string, req service.VoiceRequest) (*service.UsageResult, error)
	CloneVoice(ctx context.Context, customerID, voiceName string) (*service.UsageResult, error)
}

// UsageHandler handles simulated voice generation and cloning.
type UsageHandler struct {
	usage  UsageService
	logger *slog.Logger
}

// NewUsageHandler creates a usage handler.
func NewUsageHandler(usage UsageService, logger *slog.Logger) *UsageHandler {
	return &UsageHandler{usage: usage, logger: logger.With("component", "usage_handler")}
}

// UsageOutput is returned by metered actions.
type UsageOutput struct {
	Body struct {
		Success           bool   `json:"success"`
		Message           string `json:"message"`
		TransactionID     string `json:"transaction_id" doc:"Usage event transaction ID"`
		EventType         string `json:"event_type"`
		CreditsConsumed   int64  `json:"credits_consumed"`
		RemainingEstimate int64  `json:"remaining_estimate" doc:"Balance before this action minus its cost"`
	}
}

// GenerateVoiceInput represents a voice generation request.
type GenerateVoiceInput struct {
	CustomerID string `query:"customer_id" required:"true" doc:"Billing customer ID"`
	Body       struct {
		Text      string `json:"text" minLength:"1" maxLength:"5000"`
		VoiceName string `json:"voice_name" required:"false" maxLength:"100"`
		VoiceType string `json:"voice_type" required:"false" enum:"standard,premium" default:"standard"`
	}
}

// GenerateVoice meters a voice generation. Cost is one credit per
// character, doubled for premium voices.
func (h *UsageHandler) GenerateVoice(ctx context.Context, input *GenerateVoiceInput) (*UsageOutput, error) {
	res, err := h.usage.GenerateVoice(ctx, input.CustomerID, service.VoiceRequest{
		Text:      input.Body.Text,
		VoiceName: input.Body.VoiceName,
		VoiceType: input.Body.VoiceType,
	})
	if err != nil {
		return nil, mapError(h.logger, "generate_voice", err)
	}
	return usageOutput(res, "Voice generated successfully"), nil
}

// CloneVoiceInput represents a voice clone request.
type CloneVoiceInput struct {
	CustomerID string `query:"customer_id" required:"true" doc:"Billing customer ID"`
	Body       struct {
		VoiceName string `json:"voice_name" minLength:"1" maxLength:"100"`
	}
}

// CloneVoice meters a voice clone at a fixed cost.
func (h *UsageHandler) CloneVoice(ctx context.Context, input *CloneVoiceInput) (*UsageOutput, error) {
	res, err := h.usage.CloneVoice(ctx, input.CustomerID, input.Body.VoiceName)
	if err != nil {
		return nil, mapError(h.logger, "clone_voice", err)
	}
	return usageOutput(res, "Voice cloned successfully"), nil
}

func usageOutput(res *service.UsageResult, msg string) *UsageOutput {
	out := &UsageOutput{}
	out.Body.Success = true
	out.Body.Message = msg
	out.Body.TransactionID = res.TransactionID
	out.Body.EventType = res.EventType
	out.Body.CreditsConsumed = res.CreditsConsumed
	out.Body.RemainingEstimate = res.RemainingEstimate
	return out
}
