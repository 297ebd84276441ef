package pipeline

import (
	"testing"
	"time"

	"watchtower/pkg/models"
)

func TestBuildEventFromTypedEnvelope(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := NewIngest(nil, nil, nil, nil, 1)

	event, ok := p.buildEvent(&Envelope{
		EventType:      "failed_login",
		CorrelationKey: "1.2.3.4",
		Timestamp:      base,
		Metadata:       map[string]interface{}{"user": "alice"},
		Severity:       "medium",
	})
	if !ok {
		t.Fatalf("expected event to be built")
	}
	if event.Type != models.EventFailedLogin {
		t.Fatalf("unexpected type: %s", event.Type)
	}
	if !event.Timestamp.Equal(base) {
		t.Fatalf("timestamp not preserved: %v", event.Timestamp)
	}
	if event.SeverityHint != models.SeverityMedium {
		t.Fatalf("severity hint not parsed: %v", event.SeverityHint)
	}
}

func TestBuildEventDefaultsMissingTimestamp(t *testing.T) {
	p := NewIngest(nil, nil, nil, nil, 1)

	event, ok := p.buildEvent(&Envelope{
		EventType:      "rate_limit_violation",
		CorrelationKey: "1.2.3.4",
	})
	if !ok {
		t.Fatalf("expected event to be built")
	}
	if event.Timestamp.IsZero() {
		t.Fatalf("timestamp must default to now")
	}
}

func TestBuildEventDropsUnknownTypeWithoutClassifier(t *testing.T) {
	p := NewIngest(nil, nil, nil, nil, 1)

	if _, ok := p.buildEvent(&Envelope{
		EventType:      "something_else",
		CorrelationKey: "1.2.3.4",
	}); ok {
		t.Fatalf("unknown type with no classifier must be dropped")
	}
}
