package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"watchtower/pkg/models"
)

const telegramAPIBase = "https://api.telegram.org"

// TelegramConfig configures the Telegram bot channel.
type TelegramConfig struct {
	BotToken string
	ChatID   string
	// APIBase overrides the Bot API host, for proxies and tests.
	APIBase string
}

// Telegram delivers alerts as bot messages to one chat.
type Telegram struct {
	name   string
	url    string
	chatID string
	client *http.Client
}

// NewTelegram creates a Telegram channel.
func NewTelegram(name string, cfg TelegramConfig) (*Telegram, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("telegram %s: bot token is empty", name)
	}
	if cfg.ChatID == "" {
		return nil, fmt.Errorf("telegram %s: chat_id is empty", name)
	}
	base := cfg.APIBase
	if base == "" {
		base = telegramAPIBase
	}
	return &Telegram{
		name:   name,
		url:    strings.TrimRight(base, "/") + "/bot" + cfg.BotToken + "/sendMessage",
		chatID: cfg.ChatID,
		client: &http.Client{},
	}, nil
}

// Name returns the configured channel name.
func (t *Telegram) Name() string {
	return t.name
}

// Send posts one sendMessage call.
func (t *Telegram) Send(ctx context.Context, alert *models.SecurityAlert) error {
	body, err := json.Marshal(map[string]string{
		"chat_id": t.chatID,
		"text":    formatAlertText(alert),
	})
	if err != nil {
		return fmt.Errorf("marshal telegram message: %w", err)
	}
	return postJSON(ctx, t.client, t.url, nil, body)
}

// Close releases HTTP resources.
func (t *Telegram) Close() error {
	return nil
}

func formatAlertText(alert *models.SecurityAlert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s\n", strings.ToUpper(alert.Severity.String()), alert.PatternName)
	fmt.Fprintf(&b, "key: %s\n", alert.CorrelationKey)
	fmt.Fprintf(&b, "events: %d between %s and %s\n",
		len(alert.TriggeringEvents),
		alert.WindowStart.Format("15:04:05"),
		alert.WindowEnd.Format("15:04:05"))
	fmt.Fprintf(&b, "alert: %s", alert.AlertID)
	return b.String()
}
