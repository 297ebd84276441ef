package models

import "time"

// SecurityAlert is produced when a pattern's threshold is met. It carries
// the most recent threshold events, newest-last.
type SecurityAlert struct {
	AlertID          string           `json:"alert_id"`
	PatternName      string           `json:"pattern_name"`
	Severity         Severity         `json:"severity"`
	GroupBy          string           `json:"group_by,omitempty"`
	CorrelationKey   string           `json:"correlation_key"`
	WindowStart      time.Time        `json:"window_start"`
	WindowEnd        time.Time        `json:"window_end"`
	TriggeringEvents []*SecurityEvent `json:"triggering_events"`
	CreatedAt        time.Time        `json:"created_at"`
}
