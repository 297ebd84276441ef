package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"watchtower/pkg/models"
)

// WebhookConfig configures a generic webhook channel.
type WebhookConfig struct {
	URL     string
	Headers map[string]string
}

// Webhook posts alerts as JSON to a remote HTTP endpoint.
type Webhook struct {
	name    string
	url     string
	headers map[string]string
	client  *http.Client
}

// NewWebhook creates a webhook channel. Send timeouts come from the
// dispatcher's per-channel context, not from the client.
func NewWebhook(name string, cfg WebhookConfig) (*Webhook, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook %s: URL is empty", name)
	}
	return &Webhook{
		name:    name,
		url:     cfg.URL,
		headers: cfg.Headers,
		client:  &http.Client{},
	}, nil
}

// Name returns the configured channel name.
func (w *Webhook) Name() string {
	return w.name
}

// Send posts one alert.
func (w *Webhook) Send(ctx context.Context, alert *models.SecurityAlert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	return postJSON(ctx, w.client, w.url, w.headers, body)
}

// Close releases HTTP resources.
func (w *Webhook) Close() error {
	return nil
}

func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("http request failed with status %s", resp.Status)
	}
	return nil
}
