package channel

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"watchtower/pkg/models"
)

// NATSConfig configures the message-bus channel.
type NATSConfig struct {
	URL     string
	Subject string
}

// NATSPublisher publishes dispatched alerts on a NATS subject so
// downstream responders can subscribe to them.
type NATSPublisher struct {
	name    string
	conn    *nats.Conn
	subject string
}

// NewNATSPublisher connects and creates the channel.
func NewNATSPublisher(name string, cfg NATSConfig) (*NATSPublisher, error) {
	if cfg.Subject == "" {
		return nil, fmt.Errorf("nats %s: subject is empty", name)
	}
	url := cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}
	conn, err := nats.Connect(url, nats.Name("watchtower"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &NATSPublisher{name: name, conn: conn, subject: cfg.Subject}, nil
}

// Name returns the configured channel name.
func (n *NATSPublisher) Name() string {
	return n.name
}

// Send publishes one alert message with routing headers.
func (n *NATSPublisher) Send(ctx context.Context, alert *models.SecurityAlert) error {
	if n.conn == nil || !n.conn.IsConnected() {
		return fmt.Errorf("nats connection not available")
	}

	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	header := nats.Header{}
	header.Set("x-alert-id", alert.AlertID)
	header.Set("x-pattern", alert.PatternName)
	header.Set("x-severity", alert.Severity.String())
	header.Set("x-correlation-key", alert.CorrelationKey)

	msg := &nats.Msg{Subject: n.subject, Data: body, Header: header}
	if err := n.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}
	return nil
}

// Close drains and closes the connection.
func (n *NATSPublisher) Close() error {
	if n.conn != nil {
		n.conn.Close()
	}
	return nil
}
