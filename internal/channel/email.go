package channel

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"watchtower/pkg/models"
)

// EmailConfig configures the SMTP channel.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// Email delivers alerts as plain-text mail over SMTP.
type Email struct {
	name string
	cfg  EmailConfig
}

// NewEmail creates an email channel.
func NewEmail(name string, cfg EmailConfig) (*Email, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("email %s: SMTP host is empty", name)
	}
	if cfg.From == "" || len(cfg.To) == 0 {
		return nil, fmt.Errorf("email %s: from and to addresses are required", name)
	}
	if cfg.Port <= 0 {
		cfg.Port = 25
	}
	return &Email{name: name, cfg: cfg}, nil
}

// Name returns the configured channel name.
func (e *Email) Name() string {
	return e.name
}

// Send delivers one message. net/smtp has no context plumbing; the
// dispatcher's hard per-channel timeout bounds a stalled SMTP dialog.
func (e *Email) Send(ctx context.Context, alert *models.SecurityAlert) error {
	addr := fmt.Sprintf("%s:%d", e.cfg.Host, e.cfg.Port)

	var auth smtp.Auth
	if e.cfg.Username != "" {
		auth = smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", e.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(e.cfg.To, ", "))
	fmt.Fprintf(&b, "Subject: [%s] security alert: %s\r\n", strings.ToUpper(alert.Severity.String()), alert.PatternName)
	b.WriteString("\r\n")
	b.WriteString(formatAlertText(alert))
	b.WriteString("\r\n")

	if err := smtp.SendMail(addr, auth, e.cfg.From, e.cfg.To, []byte(b.String())); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// Close is a no-op; each Send opens its own SMTP session.
func (e *Email) Close() error {
	return nil
}
