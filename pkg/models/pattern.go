package models

import (
	"fmt"
	"time"
)

// ThreatPattern is a named detection rule: a threshold of events of one
// type within a sliding window, grouped by a correlation dimension.
// Immutable after registration.
type ThreatPattern struct {
	Name      string
	EventType EventType
	Window    time.Duration
	Threshold int
	Severity  Severity

	// GroupBy selects the dimension events are counted over. Empty means
	// the event's primary correlation key; otherwise it names a metadata
	// field (for example "account_id").
	GroupBy string

	// Cooldown overrides the severity-based default when > 0.
	Cooldown time.Duration
}

// Validate checks pattern invariants.
func (p *ThreatPattern) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("pattern name is empty")
	}
	if !p.EventType.Valid() {
		return fmt.Errorf("pattern %s: unknown event type %q", p.Name, string(p.EventType))
	}
	if p.Window <= 0 {
		return fmt.Errorf("pattern %s: window must be positive", p.Name)
	}
	if p.Threshold < 1 {
		return fmt.Errorf("pattern %s: threshold must be at least 1", p.Name)
	}
	if p.Severity == SeverityUnknown {
		return fmt.Errorf("pattern %s: severity is required", p.Name)
	}
	return nil
}

// Key returns the grouping value for an event under this pattern, and
// whether the event carries that dimension at all.
func (p *ThreatPattern) Key(event *SecurityEvent) (string, bool) {
	if p.GroupBy == "" {
		return event.CorrelationKey, event.CorrelationKey != ""
	}
	v := event.Meta(p.GroupBy)
	return v, v != ""
}
