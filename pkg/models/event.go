package models

import (
	"fmt"
	"time"
)

// EventType classifies an observed security occurrence.
type EventType string

const (
	EventFailedLogin         EventType = "failed_login"
	EventPrivilegeEscalation EventType = "privilege_escalation"
	EventSQLInjectionAttempt EventType = "sql_injection_attempt"
	EventUnusualAPIPattern   EventType = "unusual_api_pattern"
	EventAdminAccountCreated EventType = "admin_account_created"
	EventBruteForce          EventType = "brute_force"
	EventRateLimitViolation  EventType = "rate_limit_violation"
	EventSuspiciousBehavior  EventType = "suspicious_behavior"
)

var knownEventTypes = map[EventType]struct{}{
	EventFailedLogin:         {},
	EventPrivilegeEscalation: {},
	EventSQLInjectionAttempt: {},
	EventUnusualAPIPattern:   {},
	EventAdminAccountCreated: {},
	EventBruteForce:          {},
	EventRateLimitViolation:  {},
	EventSuspiciousBehavior:  {},
}

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	_, ok := knownEventTypes[t]
	return ok
}

// SecurityEvent is one observed occurrence. Immutable once constructed.
type SecurityEvent struct {
	Type           EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"@timestamp"`
	CorrelationKey string                 `json:"correlation_key"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	SeverityHint   Severity               `json:"severity_hint,omitempty"`
}

// InvalidEventError reports a malformed event rejected at the ingestion
// boundary.
type InvalidEventError struct {
	Field  string
	Reason string
}

func (e *InvalidEventError) Error() string {
	return fmt.Sprintf("invalid event: field %s %s", e.Field, e.Reason)
}

// NewEvent builds an event, defaulting the timestamp to now.
func NewEvent(t EventType, key string, metadata map[string]interface{}) *SecurityEvent {
	return &SecurityEvent{
		Type:           t,
		Timestamp:      time.Now().UTC(),
		CorrelationKey: key,
		Metadata:       metadata,
	}
}

// Validate checks the required fields.
func (e *SecurityEvent) Validate() error {
	if e == nil {
		return &InvalidEventError{Field: "event", Reason: "is nil"}
	}
	if !e.Type.Valid() {
		return &InvalidEventError{Field: "event_type", Reason: fmt.Sprintf("unknown value %q", string(e.Type))}
	}
	if e.CorrelationKey == "" {
		return &InvalidEventError{Field: "correlation_key", Reason: "is empty"}
	}
	if e.Timestamp.IsZero() {
		return &InvalidEventError{Field: "timestamp", Reason: "is zero"}
	}
	return nil
}

// Meta returns a metadata value coerced to string.
func (e *SecurityEvent) Meta(name string) string {
	if e == nil || e.Metadata == nil {
		return ""
	}
	if v, ok := e.Metadata[name]; ok {
		switch val := v.(type) {
		case string:
			return val
		case fmt.Stringer:
			return val.String()
		case int:
			return fmt.Sprintf("%d", val)
		case int64:
			return fmt.Sprintf("%d", val)
		case float64:
			if val == float64(int64(val)) {
				return fmt.Sprintf("%d", int64(val))
			}
			return fmt.Sprintf("%f", val)
		case bool:
			if val {
				return "true"
			}
			return "false"
		default:
			return fmt.Sprintf("%v", val)
		}
	}
	return ""
}

// RedactMetadata returns a copy of md with the listed fields masked.
// The original map is left untouched.
func RedactMetadata(md map[string]interface{}, fields []string) map[string]interface{} {
	if len(md) == 0 || len(fields) == 0 {
		return md
	}
	masked := make(map[string]interface{}, len(md))
	for k, v := range md {
		masked[k] = v
	}
	for _, f := range fields {
		if _, ok := masked[f]; ok {
			masked[f] = "[REDACTED]"
		}
	}
	return masked
}
