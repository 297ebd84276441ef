package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"watchtower/pkg/models"
)

const pagerDutyEventsURL = "https://events.pagerduty.com/v2/enqueue"

// PagerDutyConfig configures the paging channel.
type PagerDutyConfig struct {
	RoutingKey string
	// URL overrides the Events API endpoint, for tests.
	URL string
}

// PagerDuty delivers alerts through the Events API v2. The dedup key is
// pattern plus correlation key, so PagerDuty folds repeats of the same
// incident on its side too.
type PagerDuty struct {
	name       string
	url        string
	routingKey string
	client     *http.Client
}

// NewPagerDuty creates a PagerDuty channel.
func NewPagerDuty(name string, cfg PagerDutyConfig) (*PagerDuty, error) {
	if cfg.RoutingKey == "" {
		return nil, fmt.Errorf("pagerduty %s: routing key is empty", name)
	}
	url := cfg.URL
	if url == "" {
		url = pagerDutyEventsURL
	}
	return &PagerDuty{
		name:       name,
		url:        url,
		routingKey: cfg.RoutingKey,
		client:     &http.Client{},
	}, nil
}

// Name returns the configured channel name.
func (p *PagerDuty) Name() string {
	return p.name
}

// Send enqueues one trigger event.
func (p *PagerDuty) Send(ctx context.Context, alert *models.SecurityAlert) error {
	payload := map[string]interface{}{
		"routing_key":  p.routingKey,
		"event_action": "trigger",
		"dedup_key":    alert.PatternName + "/" + alert.CorrelationKey,
		"payload": map[string]interface{}{
			"summary":   fmt.Sprintf("%s: %d events for %s", alert.PatternName, len(alert.TriggeringEvents), alert.CorrelationKey),
			"source":    alert.CorrelationKey,
			"severity":  pagerDutySeverity(alert.Severity),
			"timestamp": alert.CreatedAt.Format(time.RFC3339),
			"custom_details": map[string]interface{}{
				"alert_id":     alert.AlertID,
				"window_start": alert.WindowStart,
				"window_end":   alert.WindowEnd,
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal pagerduty event: %w", err)
	}
	return postJSON(ctx, p.client, p.url, nil, body)
}

// Close releases HTTP resources.
func (p *PagerDuty) Close() error {
	return nil
}

func pagerDutySeverity(s models.Severity) string {
	switch s {
	case models.SeverityCritical:
		return "critical"
	case models.SeverityHigh:
		return "error"
	case models.SeverityMedium:
		return "warning"
	default:
		return "info"
	}
}
