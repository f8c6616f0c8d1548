package metronome

import (
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestWebhookVerifier_SignAndVerify(t *testing.T) {
	v := NewWebhookVerifier("test-secret", 0)
	body := []byte(`{"id":"evt_1","type":"contract.start"}`)
	date := "Thu, 15 Oct 2026 12:00:00 GMT"

	h := http.Header{}
	h.Set(DateHeader, date)
	h.Set(SignatureHeader, v.Sign(date, body))

	if err := v.Verify(h, body); err != nil {
		t.Errorf("Verify() error = %v", err)
	}
}

func TestWebhookVerifier_Failures(t *testing.T) {
	v := NewWebhookVerifier("test-secret", 0)
	body := []byte(`{"id":"evt_1"}`)
	date := "Thu, 15 Oct 2026 12:00:00 GMT"
	sig := v.Sign(date, body)

	tests := []struct {
		name string
		h    func() http.Header
		body []byte
		want error
	}{
		{
			name: "missing signature",
			h:    func() http.Header { h := http.Header{}; h.Set(DateHeader, date); return h },
			body: body,
			want: ErrMissingSignature,
		},
		{
			name: "tampered body",
			h: func() http.Header {
				h := http.Header{}
				h.Set(DateHeader, date)
				h.Set(SignatureHeader, sig)
				return h
			},
			body: []byte(`{"id":"evt_2"}`),
			want: ErrInvalidSignature,
		},
		{
			name: "different date",
			h: func() http.Header {
				h := http.Header{}
				h.Set(DateHeader, "Fri, 16 Oct 2026 12:00:00 GMT")
				h.Set(SignatureHeader, sig)
				return h
			},
			body: body,
			want: ErrInvalidSignature,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := v.Verify(tt.h(), tt.body); !errors.Is(err, tt.want) {
				t.Errorf("Verify() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestWebhookVerifier_Tolerance(t *testing.T) {
	v := NewWebhookVerifier("test-secret", 5*time.Minute)
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	v.now = func() time.Time { return now }
	body := []byte(`{}`)

	sign := func(ts time.Time) http.Header {
		date := ts.Format(http.TimeFormat)
		h := http.Header{}
		h.Set(DateHeader, date)
		h.Set(SignatureHeader, v.Sign(date, body))
		return h
	}

	if err := v.Verify(sign(now.Add(-2*time.Minute)), body); err != nil {
		t.Errorf("recent date: error = %v", err)
	}
	if err := v.Verify(sign(now.Add(-10*time.Minute)), body); !errors.Is(err, ErrStaleSignature) {
		t.Errorf("old date: error = %v, want ErrStaleSignature", err)
	}
	if err := v.Verify(sign(now.Add(10*time.Minute)), body); !errors.Is(err, ErrStaleSignature) {
		t.Errorf("future date: error = %v, want ErrStaleSignature", err)
	}
}
