package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/vocalis-api/internal/models"
)

// Usage errors.
var (
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrInvalidUsage        = errors.New("invalid usage request")
)

// Voice types and their per-character credit multipliers.
const (
	VoiceTypeStandard = "standard"
	VoiceTypePremium  = "premium"
)

var voiceMultipliers = map[string]int64{
	VoiceTypeStandard: 1,
	VoiceTypePremium:  2,
}

// Usage limits and fixed costs.
const (
	VoiceCloneCredits = 25_000
	MaxTextLength     = 5_000
)

// UsageIngester records metered usage with the billing provider.
type UsageIngester interface {
	IngestUsageEvent(ctx context.Context, event models.UsageEvent) error
}

// VoiceRequest is a simulated voice generation request.
type VoiceRequest struct {
	Text      string
	VoiceName string
	VoiceType string
}

// UsageResult reports what a usage action consumed.
type UsageResult struct {
	TransactionID     string `json:"transaction_id"`
	EventType         string `json:"event_type"`
	CreditsConsumed   int64  `json:"credits_consumed"`
	RemainingEstimate int64  `json:"remaining_estimate"`
}

// UsageService meters voice generation and cloning against the balance.
type UsageService struct {
	ingester    UsageIngester
	balances    BalanceRefresher
	broadcaster Broadcaster
	now         func() time.Time
	logger      *slog.Logger
}

// NewUsageService creates a new usage service.
func NewUsageService(ingester UsageIngester, balances BalanceRefresher, broadcaster Broadcaster, logger *slog.Logger) *UsageService {
	return &UsageService{
		ingester:    ingester,
		balances:    balances,
		broadcaster: broadcaster,
		now:         time.Now,
		logger:      logger.With("component", "usage"),
	}
}

// VoiceCost returns the credit cost of speaking text in voiceType.
func VoiceCost(text, voiceType string) (int64, error) {
	mult, ok := voiceMultipliers[strings.ToLower(voiceType)]
	if !ok {
		return 0, fmt.Errorf("%w: unknown voice type %q", ErrInvalidUsage, voiceType)
	}
	chars := utf8.RuneCountInString(text)
	if chars == 0 {
		return 0, fmt.Errorf("%w: text is required", ErrInvalidUsage)
	}
	if chars > MaxTextLength {
		return 0, fmt.Errorf("%w: text exceeds %d characters", ErrInvalidUsage, MaxTextLength)
	}
	return int64(chars) * mult, nil
}

// GenerateVoice charges for a simulated voice generation.
func (s *UsageService) GenerateVoice(ctx context.Context, customerID string, req VoiceRequest) (*UsageResult, error) {
	cost, err := VoiceCost(req.Text, req.VoiceType)
	if err != nil {
		return nil, err
	}
	return s.record(ctx, customerID, models.UsageEventVoiceGeneration, cost, map[string]any{
		"voice_type":      strings.ToLower(req.VoiceType),
		"voice_name":      req.VoiceName,
		"character_count": utf8.RuneCountInString(req.Text),
	})
}

// CloneVoice charges the fixed voice cloning setup cost.
func (s *UsageService) CloneVoice(ctx context.Context, customerID, voiceName string) (*UsageResult, error) {
	voiceName = strings.TrimSpace(voiceName)
	if voiceName == "" {
		return nil, fmt.Errorf("%w: voice name is required", ErrInvalidUsage)
	}
	return s.record(ctx, customerID, models.UsageEventVoiceCloning, VoiceCloneCredits, map[string]any{
		"voice_name": voiceName,
	})
}

// record checks the balance, ingests the event and notifies subscribers.
// The balance check is advisory; concurrent actions may overdraw.
func (s *UsageService) record(ctx context.Context, customerID, eventType string, cost int64, props map[string]any) (*UsageResult, error) {
	balance, err := s.balances.Resolve(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if balance.Amount < cost {
		return nil, fmt.Errorf("%w: need %d, have %d", ErrInsufficientCredits, cost, balance.Amount)
	}

	props["credits_consumed"] = cost
	event := models.UsageEvent{
		TransactionID: ulid.Make().String(),
		CustomerID:    customerID,
		EventType:     eventType,
		Timestamp:     s.now().UTC(),
		Properties:    props,
	}
	if err := s.ingester.IngestUsageEvent(ctx, event); err != nil {
		return nil, err
	}

	result := &UsageResult{
		TransactionID:     event.TransactionID,
		EventType:         eventType,
		CreditsConsumed:   cost,
		RemainingEstimate: balance.Amount - cost,
	}

	s.broadcaster.Broadcast(customerID, models.NewEvent(models.EventUsageRecorded, map[string]any{
		"transaction_id":     result.TransactionID,
		"event_type":         eventType,
		"credits_consumed":   cost,
		"remaining_estimate": result.RemainingEstimate,
	}))

	s.logger.Info("usage recorded",
		"customer_id", customerID,
		"event_type", eventType,
		"credits", cost,
		"transaction_id", event.TransactionID,
	)
	return result, nil
}
