package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultResendURL = "https://api.resend.com/emails"

// ResendConfig configures the Resend HTTP sender.
type ResendConfig struct {
	APIKey   string
	From     string
	FromName string
	Endpoint string // defaults to the public API
	Timeout  time.Duration
}

// ResendSender delivers mail through the Resend REST API.
type ResendSender struct {
	config ResendConfig
	client *http.Client
}

// NewResendSender creates a Resend sender.
func NewResendSender(cfg ResendConfig) *ResendSender {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultResendURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &ResendSender{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text,omitempty"`
}

// Send posts msg to Resend. 200 and 202 are success.
func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	if s.config.APIKey == "" {
		return fmt.Errorf("resend: %w", ErrNotConfigured)
	}

	payload, err := json.Marshal(resendRequest{
		From:    fromHeader(s.config.FromName, s.config.From),
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return fmt.Errorf("resend: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("resend: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("resend: status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return nil
}
