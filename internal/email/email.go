// Package email sends transactional email through SMTP or the Resend API.
package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmylchreest/vocalis-api/internal/config"
)

// ErrNotConfigured is returned by the no-op sender.
var ErrNotConfigured = errors.New("email delivery not configured")

// Message is a rendered email ready to send.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string // optional plain-text alternative
}

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewSender builds the sender selected by EMAIL_PROVIDER.
func NewSender(cfg *config.Config, logger *slog.Logger) Sender {
	switch cfg.EmailProvider {
	case config.EmailProviderResend:
		logger.Info("email provider configured", "provider", "resend")
		return NewResendSender(ResendConfig{
			APIKey:   cfg.ResendAPIKey,
			From:     cfg.EmailFrom,
			FromName: cfg.EmailFromName,
		})
	case config.EmailProviderSMTP:
		logger.Info("email provider configured", "provider", "smtp", "host", cfg.SMTPHost, "port", cfg.SMTPPort)
		return NewSMTPSender(SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.EmailFrom,
			FromName: cfg.EmailFromName,
		})
	default:
		logger.Warn("email provider disabled, welcome emails will not be sent")
		return noopSender{}
	}
}

type noopSender struct{}

func (noopSender) Send(context.Context, Message) error { return ErrNotConfigured }

// fromHeader formats the From header with an optional display name.
func fromHeader(name, addr string) string {
	if strings.TrimSpace(name) == "" {
		return addr
	}
	return fmt.Sprintf("%s <%s>", name, addr)
}

func sanitizeHeader(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	return strings.ReplaceAll(s, "\n", "")
}
