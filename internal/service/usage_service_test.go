package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/vocalis-api/internal/metronome"
	"github.com/jmylchreest/vocalis-api/internal/models"
)

func newTestUsageService(balance int64) (*UsageService, *mockIngester, *mockBroadcaster, *callLog) {
	log := &callLog{}
	ingester := &mockIngester{log: log}
	broadcaster := &mockBroadcaster{log: log}
	refresher := &mockRefresher{log: log, balance: &models.CreditBalance{Amount: balance, CurrencyKind: models.CurrencyNative}}
	svc := NewUsageService(ingester, refresher, broadcaster, testLogger())
	svc.now = func() time.Time { return time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC) }
	return svc, ingester, broadcaster, log
}

// ========================================
// Cost Tests
// ========================================

func TestVoiceCost(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		voiceType string
		want      int64
		wantErr   bool
	}{
		{"standard", "hello world", VoiceTypeStandard, 11, false},
		{"premium doubles", "hello world", VoiceTypePremium, 22, false},
		{"case insensitive type", "abc", "PREMIUM", 6, false},
		{"counts runes not bytes", "héllo", VoiceTypeStandard, 5, false},
		{"max length", strings.Repeat("a", MaxTextLength), VoiceTypeStandard, MaxTextLength, false},
		{"empty text", "", VoiceTypeStandard, 0, true},
		{"too long", strings.Repeat("a", MaxTextLength+1), VoiceTypeStandard, 0, true},
		{"unknown voice type", "hi", "celebrity", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := VoiceCost(tt.text, tt.voiceType)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidUsage) {
					t.Errorf("error = %v, want ErrInvalidUsage", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("VoiceCost() = %d, %v; want %d", got, err, tt.want)
			}
		})
	}
}

// ========================================
// GenerateVoice Tests
// ========================================

func TestUsageService_GenerateVoice(t *testing.T) {
	svc, ingester, broadcaster, log := newTestUsageService(1000)

	res, err := svc.GenerateVoice(context.Background(), "cus_1", VoiceRequest{
		Text:      "Welcome to Vocalis",
		VoiceName: "Aria",
		VoiceType: VoiceTypePremium,
	})
	if err != nil {
		t.Fatalf("GenerateVoice() error = %v", err)
	}
	if res.CreditsConsumed != 36 || res.RemainingEstimate != 964 {
		t.Errorf("result = %+v", res)
	}
	if _, err := ulid.Parse(res.TransactionID); err != nil {
		t.Errorf("TransactionID %q is not a ULID: %v", res.TransactionID, err)
	}

	calls := log.list()
	want := []string{"resolve:cus_1", "ingest:voice_generation", "broadcast:cus_1:usage_recorded"}
	if strings.Join(calls, ",") != strings.Join(want, ",") {
		t.Errorf("calls = %v, want %v", calls, want)
	}

	ev := ingester.events[0]
	if ev.CustomerID != "cus_1" || ev.TransactionID != res.TransactionID {
		t.Errorf("event = %+v", ev)
	}
	props := ev.Properties
	if props["credits_consumed"] != int64(36) || props["voice_type"] != "premium" || props["voice_name"] != "Aria" || props["character_count"] != 18 {
		t.Errorf("properties = %v", props)
	}

	data := broadcaster.sent()[0].Event.Data
	if data["remaining_estimate"] != int64(964) || data["transaction_id"] != res.TransactionID {
		t.Errorf("broadcast data = %v", data)
	}
}

func TestUsageService_InsufficientCredits(t *testing.T) {
	svc, ingester, broadcaster, _ := newTestUsageService(10)

	_, err := svc.GenerateVoice(context.Background(), "cus_1", VoiceRequest{Text: "more than ten chars", VoiceType: VoiceTypeStandard})
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("error = %v, want ErrInsufficientCredits", err)
	}
	if len(ingester.events) != 0 || len(broadcaster.sent()) != 0 {
		t.Error("nothing may be ingested or broadcast when credits are short")
	}
}

func TestUsageService_ExactBalanceAllowed(t *testing.T) {
	svc, _, _, _ := newTestUsageService(5)
	res, err := svc.GenerateVoice(context.Background(), "cus_1", VoiceRequest{Text: "hello", VoiceType: VoiceTypeStandard})
	if err != nil {
		t.Fatalf("GenerateVoice() error = %v", err)
	}
	if res.RemainingEstimate != 0 {
		t.Errorf("RemainingEstimate = %d, want 0", res.RemainingEstimate)
	}
}

func TestUsageService_Failures(t *testing.T) {
	t.Run("balance indeterminate", func(t *testing.T) {
		svc, ingester, _, _ := newTestUsageService(0)
		svc.balances = &mockRefresher{err: ErrBalanceIndeterminate}
		_, err := svc.CloneVoice(context.Background(), "cus_1", "My Voice")
		if !errors.Is(err, ErrBalanceIndeterminate) {
			t.Errorf("error = %v, want ErrBalanceIndeterminate", err)
		}
		if len(ingester.events) != 0 {
			t.Error("no ingest without a balance")
		}
	})

	t.Run("ingest failure", func(t *testing.T) {
		svc, ingester, broadcaster, _ := newTestUsageService(100000)
		ingester.err = metronome.ErrIngestFailed
		_, err := svc.CloneVoice(context.Background(), "cus_1", "My Voice")
		if !errors.Is(err, metronome.ErrIngestFailed) {
			t.Errorf("error = %v, want ErrIngestFailed", err)
		}
		if len(broadcaster.sent()) != 0 {
			t.Error("failed ingest must not be broadcast")
		}
	})
}

// ========================================
// CloneVoice Tests
// ========================================

func TestUsageService_CloneVoice(t *testing.T) {
	svc, ingester, _, _ := newTestUsageService(30000)

	res, err := svc.CloneVoice(context.Background(), "cus_1", "  My Voice ")
	if err != nil {
		t.Fatalf("CloneVoice() error = %v", err)
	}
	if res.CreditsConsumed != VoiceCloneCredits || res.RemainingEstimate != 5000 {
		t.Errorf("result = %+v", res)
	}
	ev := ingester.events[0]
	if ev.EventType != models.UsageEventVoiceCloning || ev.Properties["voice_name"] != "My Voice" {
		t.Errorf("event = %+v", ev)
	}

	if _, err := svc.CloneVoice(context.Background(), "cus_1", " "); !errors.Is(err, ErrInvalidUsage) {
		t.Errorf("blank name error = %v, want ErrInvalidUsage", err)
	}
}
