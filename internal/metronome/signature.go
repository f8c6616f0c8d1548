package metronome

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"time"
)

// Webhook signature headers.
const (
	SignatureHeader = "Metronome-Webhook-Signature"
	DateHeader      = "Date"
)

// Signature verification errors.
var (
	ErrMissingSignature = errors.New("missing webhook signature")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrStaleSignature   = errors.New("webhook date outside tolerance")
)

// WebhookVerifier checks HMAC-SHA256(secret, date + "\n" + body) signatures.
type WebhookVerifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewWebhookVerifier creates a verifier. A zero tolerance disables the date check.
func NewWebhookVerifier(secret string, tolerance time.Duration) *WebhookVerifier {
	return &WebhookVerifier{
		secret:    []byte(secret),
		tolerance: tolerance,
		now:       time.Now,
	}
}

// Sign computes the hex signature for a date header value and body.
func (v *WebhookVerifier) Sign(date string, body []byte) string {
	h := hmac.New(sha256.New, v.secret)
	h.Write([]byte(date))
	h.Write([]byte("\n"))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// Verify validates the request headers against the raw body.
func (v *WebhookVerifier) Verify(header http.Header, body []byte) error {
	signature := header.Get(SignatureHeader)
	if signature == "" {
		return ErrMissingSignature
	}
	date := header.Get(DateHeader)

	if v.tolerance > 0 {
		ts, err := http.ParseTime(date)
		if err != nil {
			return ErrStaleSignature
		}
		skew := v.now().Sub(ts)
		if skew < 0 {
			skew = -skew
		}
		if skew > v.tolerance {
			return ErrStaleSignature
		}
	}

	expected := v.Sign(date, body)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return ErrInvalidSignature
	}
	return nil
}
