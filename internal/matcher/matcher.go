package matcher

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"watchtower/internal/eventstore"
	"watchtower/internal/logger"
	"watchtower/pkg/models"
)

// DuplicatePatternError reports a name collision at registration time.
type DuplicatePatternError struct {
	Name string
}

func (e *DuplicatePatternError) Error() string {
	return fmt.Sprintf("pattern %q is already registered", e.Name)
}

// Matcher holds the registered threat patterns and evaluates them against
// the event store on every incoming event. Registration happens at
// startup; the registry is read-only during evaluation.
type Matcher struct {
	store      *eventstore.Store
	patterns   []*models.ThreatPattern
	names      map[string]struct{}
	dimsByType map[models.EventType][]string
	maxWindow  time.Duration
}

// New creates a matcher over the given store.
func New(store *eventstore.Store) *Matcher {
	return &Matcher{
		store:      store,
		names:      make(map[string]struct{}),
		dimsByType: make(map[models.EventType][]string),
	}
}

// Register adds a pattern. It fails on invalid patterns and on duplicate
// names; both are fatal at startup.
func (m *Matcher) Register(p *models.ThreatPattern) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if _, exists := m.names[p.Name]; exists {
		return &DuplicatePatternError{Name: p.Name}
	}
	m.names[p.Name] = struct{}{}
	m.patterns = append(m.patterns, p)

	dims := m.dimsByType[p.EventType]
	seen := false
	for _, d := range dims {
		if d == p.GroupBy {
			seen = true
			break
		}
	}
	if !seen {
		m.dimsByType[p.EventType] = append(dims, p.GroupBy)
	}
	if p.Window > m.maxWindow {
		m.maxWindow = p.Window
	}
	return nil
}

// Patterns returns the registered patterns in registration order.
func (m *Matcher) Patterns() []*models.ThreatPattern {
	return m.patterns
}

// Dims returns the grouping dimensions registered for an event type.
func (m *Matcher) Dims(t models.EventType) []string {
	return m.dimsByType[t]
}

// MaxWindow returns the widest registered window, used as the store's
// retention horizon.
func (m *Matcher) MaxWindow() time.Duration {
	return m.maxWindow
}

// Evaluate runs every pattern whose event type matches the incoming event
// and returns one alert per pattern whose threshold is met within
// [event.ts - window, event.ts]. Threshold is inclusive. Alerts come back
// in registration order. A pattern that panics is skipped; the rest still
// run.
func (m *Matcher) Evaluate(event *models.SecurityEvent) []*models.SecurityAlert {
	var alerts []*models.SecurityAlert
	for _, p := range m.patterns {
		if p.EventType != event.Type {
			continue
		}
		if alert := m.evaluateOne(p, event); alert != nil {
			alerts = append(alerts, alert)
		}
	}
	return alerts
}

func (m *Matcher) evaluateOne(p *models.ThreatPattern, event *models.SecurityEvent) (alert *models.SecurityAlert) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Pattern %s evaluation failed: %v", p.Name, r)
			alert = nil
		}
	}()

	key, ok := p.Key(event)
	if !ok {
		return nil
	}

	since := event.Timestamp.Add(-p.Window)
	matched := m.store.EventsSince(p.EventType, p.GroupBy, key, since)
	if len(matched) < p.Threshold {
		return nil
	}

	triggering := matched[len(matched)-p.Threshold:]
	return &models.SecurityAlert{
		AlertID:          uuid.NewString(),
		PatternName:      p.Name,
		Severity:         p.Severity,
		GroupBy:          p.GroupBy,
		CorrelationKey:   key,
		WindowStart:      since,
		WindowEnd:        event.Timestamp,
		TriggeringEvents: triggering,
		CreatedAt:        event.Timestamp,
	}
}
