package matcher

import (
	"errors"
	"testing"
	"time"

	"watchtower/internal/eventstore"
	"watchtower/pkg/models"
)

func failedLogin(ts time.Time, key string) *models.SecurityEvent {
	return &models.SecurityEvent{
		Type:           models.EventFailedLogin,
		Timestamp:      ts,
		CorrelationKey: key,
	}
}

func bruteForcePattern() *models.ThreatPattern {
	return &models.ThreatPattern{
		Name:      "brute_force_login",
		EventType: models.EventFailedLogin,
		Window:    60 * time.Second,
		Threshold: 5,
		Severity:  models.SeverityHigh,
	}
}

func TestRegisterRejectsDuplicateNames(t *testing.T) {
	m := New(eventstore.NewStore(0))
	if err := m.Register(bruteForcePattern()); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	err := m.Register(bruteForcePattern())
	var dup *DuplicatePatternError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicatePatternError, got %v", err)
	}
}

func TestRegisterRejectsInvalidPatterns(t *testing.T) {
	m := New(eventstore.NewStore(0))
	bad := bruteForcePattern()
	bad.Threshold = 0
	if err := m.Register(bad); err == nil {
		t.Fatalf("expected error for zero threshold")
	}
	bad = bruteForcePattern()
	bad.Window = 0
	if err := m.Register(bad); err == nil {
		t.Fatalf("expected error for zero window")
	}
}

func TestEvaluateFiresAtThresholdInclusive(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := eventstore.NewStore(0)
	m := New(store)
	if err := m.Register(bruteForcePattern()); err != nil {
		t.Fatalf("register: %v", err)
	}

	var last *models.SecurityEvent
	for i := 0; i < 5; i++ {
		last = failedLogin(base.Add(time.Duration(i)*10*time.Second), "1.2.3.4")
		store.Append(last, m.Dims(last.Type))
		alerts := m.Evaluate(last)
		if i < 4 && len(alerts) != 0 {
			t.Fatalf("event %d: expected no alert below threshold, got %d", i, len(alerts))
		}
		if i == 4 && len(alerts) != 1 {
			t.Fatalf("expected exactly one alert at threshold, got %d", len(alerts))
		}
	}

	alert := m.Evaluate(last)[0]
	if alert.PatternName != "brute_force_login" {
		t.Fatalf("unexpected pattern name: %s", alert.PatternName)
	}
	if len(alert.TriggeringEvents) != 5 {
		t.Fatalf("expected 5 triggering events, got %d", len(alert.TriggeringEvents))
	}
	newest := alert.TriggeringEvents[len(alert.TriggeringEvents)-1]
	if !newest.Timestamp.Equal(last.Timestamp) {
		t.Fatalf("triggering events must be newest-last, got %v", newest.Timestamp)
	}
	if alert.CorrelationKey != "1.2.3.4" {
		t.Fatalf("unexpected correlation key: %s", alert.CorrelationKey)
	}
}

func TestEvaluateRefiresWithoutDedup(t *testing.T) {
	// Raw evaluation re-fires on every qualifying event; the deduplicator
	// is the sole suppression mechanism.
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := eventstore.NewStore(0)
	m := New(store)
	if err := m.Register(bruteForcePattern()); err != nil {
		t.Fatalf("register: %v", err)
	}

	fired := 0
	for i := 0; i < 7; i++ {
		ev := failedLogin(base.Add(time.Duration(i)*time.Second), "1.2.3.4")
		store.Append(ev, m.Dims(ev.Type))
		fired += len(m.Evaluate(ev))
	}
	if fired != 3 {
		t.Fatalf("expected alerts on events 5, 6 and 7, got %d", fired)
	}
}

func TestEvaluateExcludesEventsOutsideWindow(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := eventstore.NewStore(0)
	m := New(store)
	if err := m.Register(bruteForcePattern()); err != nil {
		t.Fatalf("register: %v", err)
	}

	// 3 events at the start, 3 more after the window has slid past them.
	offsets := []time.Duration{0, time.Second, 2 * time.Second, 61 * time.Second, 62 * time.Second, 63 * time.Second}
	for _, off := range offsets {
		ev := failedLogin(base.Add(off), "1.2.3.4")
		store.Append(ev, m.Dims(ev.Type))
		if alerts := m.Evaluate(ev); len(alerts) != 0 {
			t.Fatalf("no alert expected with split bursts, got %d at offset %s", len(alerts), off)
		}
	}
}

func TestEvaluateReturnsAlertsInRegistrationOrder(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := eventstore.NewStore(0)
	m := New(store)

	first := bruteForcePattern()
	first.Name = "first"
	first.Threshold = 1
	second := bruteForcePattern()
	second.Name = "second"
	second.Threshold = 1
	if err := m.Register(first); err != nil {
		t.Fatalf("register first: %v", err)
	}
	if err := m.Register(second); err != nil {
		t.Fatalf("register second: %v", err)
	}

	ev := failedLogin(base, "1.2.3.4")
	store.Append(ev, m.Dims(ev.Type))
	alerts := m.Evaluate(ev)
	if len(alerts) != 2 {
		t.Fatalf("expected both patterns to fire, got %d", len(alerts))
	}
	if alerts[0].PatternName != "first" || alerts[1].PatternName != "second" {
		t.Fatalf("alerts out of registration order: %s, %s", alerts[0].PatternName, alerts[1].PatternName)
	}
}

func TestEvaluateGroupsByMetadataDimension(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := eventstore.NewStore(0)
	m := New(store)

	p := bruteForcePattern()
	p.Name = "per_account_failures"
	p.Threshold = 2
	p.GroupBy = "account_id"
	if err := m.Register(p); err != nil {
		t.Fatalf("register: %v", err)
	}

	// Same account from two different IPs still correlates.
	for i, ip := range []string{"1.1.1.1", "2.2.2.2"} {
		ev := failedLogin(base.Add(time.Duration(i)*time.Second), ip)
		ev.Metadata = map[string]interface{}{"account_id": "u-77"}
		store.Append(ev, m.Dims(ev.Type))
		alerts := m.Evaluate(ev)
		if i == 0 && len(alerts) != 0 {
			t.Fatalf("expected no alert on first event")
		}
		if i == 1 {
			if len(alerts) != 1 {
				t.Fatalf("expected cross-IP alert on shared account, got %d", len(alerts))
			}
			if alerts[0].CorrelationKey != "u-77" {
				t.Fatalf("expected group key u-77, got %s", alerts[0].CorrelationKey)
			}
		}
	}

	// An event without the dimension never matches the pattern.
	ev := failedLogin(base.Add(time.Minute), "3.3.3.3")
	store.Append(ev, m.Dims(ev.Type))
	if alerts := m.Evaluate(ev); len(alerts) != 0 {
		t.Fatalf("expected no alert for event missing group dimension")
	}
}
