package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Watchtower WatchtowerConfig `yaml:"watchtower"`
}

// WatchtowerConfig is the project configuration.
type WatchtowerConfig struct {
	Input      InputConfig      `yaml:"input"`
	Monitor    MonitorConfig    `yaml:"monitor"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Channels   []ChannelConfig  `yaml:"channels"`
	Redaction  RedactionConfig  `yaml:"redaction"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// InputConfig controls the event source.
type InputConfig struct {
	Redis   RedisConfig `yaml:"redis"`
	Workers int         `yaml:"workers"`
}

// RedisConfig controls the Redis list consumer.
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	Key          string        `yaml:"key"`
	BlockTimeout time.Duration `yaml:"block_timeout"`
}

// MonitorConfig controls correlation behavior.
type MonitorConfig struct {
	MaxEventsPerKey int                      `yaml:"max_events_per_key"`
	DedupCapacity   int                      `yaml:"dedup_capacity"`
	Cooldowns       map[string]time.Duration `yaml:"cooldowns"`
	Patterns        []PatternConfig          `yaml:"patterns"`
}

// PatternConfig defines one threat pattern.
type PatternConfig struct {
	Name      string        `yaml:"name"`
	EventType string        `yaml:"event_type"`
	Window    time.Duration `yaml:"window"`
	Threshold int           `yaml:"threshold"`
	Severity  string        `yaml:"severity"`
	GroupBy   string        `yaml:"group_by"`
	Cooldown  time.Duration `yaml:"cooldown"`
}

// ClassifierConfig controls the Sigma classifier for untyped envelopes.
type ClassifierConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ChannelConfig defines one notification channel.
type ChannelConfig struct {
	Name        string        `yaml:"name"`
	Type        string        `yaml:"type"` // webhook|telegram|pagerduty|email|nats|file
	MinSeverity string        `yaml:"min_severity"`
	Timeout     time.Duration `yaml:"timeout"`

	Webhook   WebhookChannelConfig   `yaml:"webhook"`
	Telegram  TelegramChannelConfig  `yaml:"telegram"`
	PagerDuty PagerDutyChannelConfig `yaml:"pagerduty"`
	Email     EmailChannelConfig     `yaml:"email"`
	NATS      NATSChannelConfig      `yaml:"nats"`
	File      FileChannelConfig      `yaml:"file"`
}

// WebhookChannelConfig config for generic JSON POST delivery.
type WebhookChannelConfig struct {
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
}

// TelegramChannelConfig config for Bot API delivery.
type TelegramChannelConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
	APIBase  string `yaml:"api_base"`
}

// PagerDutyChannelConfig config for Events API v2 delivery.
type PagerDutyChannelConfig struct {
	RoutingKey string `yaml:"routing_key"`
	URL        string `yaml:"url"`
}

// EmailChannelConfig config for SMTP delivery.
type EmailChannelConfig struct {
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
}

// NATSChannelConfig config for message-bus delivery.
type NATSChannelConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// FileChannelConfig config for local JSONL output.
type FileChannelConfig struct {
	Path string `yaml:"path"`
}

// RedactionConfig controls metadata masking in logs and file output.
// Decided once at startup; disabled means pass through unmodified.
type RedactionConfig struct {
	Enabled bool     `yaml:"enabled"`
	Fields  []string `yaml:"fields"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LoggingConfig controls logging output.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
