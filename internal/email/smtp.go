package email

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/oklog/ulid/v2"
)

// SMTPConfig configures the SMTP sender. MailHog works with no credentials.
type SMTPConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	// From is the envelope sender; FromName is used only in the header.
	From     string
	FromName string
}

// SMTPSender delivers mail over SMTP.
type SMTPSender struct {
	config SMTPConfig
	auth   smtp.Auth
}

// NewSMTPSender creates an SMTP sender. Auth is used only when both
// user and password are set.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	var auth smtp.Auth
	if cfg.User != "" && cfg.Password != "" {
		auth = smtp.PlainAuth("", cfg.User, cfg.Password, cfg.Host)
	}
	return &SMTPSender{config: cfg, auth: auth}
}

// Send delivers msg. net/smtp has no context support, so ctx is only
// checked before dialing.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := net.JoinHostPort(s.config.Host, s.config.Port)
	to := sanitizeHeader(msg.To)
	body := s.buildMessage(to, msg)

	if s.auth != nil {
		if err := smtp.SendMail(addr, s.auth, s.config.From, []string{to}, body); err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	}

	c, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}
	defer func() { _ = c.Close() }()

	if err := c.Mail(s.config.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return c.Quit()
}

// buildMessage renders headers and body. With a text part the message is
// multipart/alternative, plain text first.
func (s *SMTPSender) buildMessage(to string, msg Message) []byte {
	lines := []string{
		"From: " + sanitizeHeader(fromHeader(s.config.FromName, s.config.From)),
		"To: " + to,
		"Subject: " + sanitizeHeader(msg.Subject),
		"MIME-Version: 1.0",
	}

	if msg.Text == "" {
		lines = append(lines, "Content-Type: text/html; charset=UTF-8", "", msg.HTML)
		return []byte(strings.Join(lines, "\r\n"))
	}

	boundary := "vocalis-" + ulid.Make().String()
	lines = append(lines,
		fmt.Sprintf("Content-Type: multipart/alternative; boundary=%q", boundary),
		"",
		"--"+boundary,
		"Content-Type: text/plain; charset=UTF-8",
		"",
		msg.Text,
		"--"+boundary,
		"Content-Type: text/html; charset=UTF-8",
		"",
		msg.HTML,
		"--"+boundary+"--",
		"",
	)
	return []byte(strings.Join(lines, "\r\n"))
}
