package monitor

import (
	"context"
	"time"

	"watchtower/internal/channel"
	"watchtower/internal/dedup"
	"watchtower/internal/dispatch"
	"watchtower/internal/eventstore"
	"watchtower/internal/matcher"
	"watchtower/internal/metrics"
	"watchtower/pkg/models"
)

// Config controls monitor behavior.
type Config struct {
	// MaxEventsPerKey caps each store bucket.
	MaxEventsPerKey int
	// DedupCapacity bounds the deduplication table.
	DedupCapacity int
	// Cooldowns maps a severity to its default cooldown; a pattern's own
	// Cooldown overrides it. Missing severities fall back to built-ins.
	Cooldowns map[models.Severity]time.Duration
	// Metrics is optional; nil disables instrumentation.
	Metrics *metrics.Metrics
}

// Critical patterns re-fire soonest.
var defaultCooldowns = map[models.Severity]time.Duration{
	models.SeverityLow:      10 * time.Minute,
	models.SeverityMedium:   5 * time.Minute,
	models.SeverityHigh:     2 * time.Minute,
	models.SeverityCritical: 1 * time.Minute,
}

// Monitor is the process-wide coordinator: it owns the event store, the
// pattern registry, the dedup table and the dispatcher. Patterns and
// channels are registered once at startup; RecordEvent is then safe for
// concurrent callers.
type Monitor struct {
	store      *eventstore.Store
	matcher    *matcher.Matcher
	dedup      *dedup.Deduplicator
	dispatcher *dispatch.Dispatcher
	cooldowns  map[string]time.Duration
	metrics    *metrics.Metrics
}

// New creates a monitor with no patterns or channels registered.
func New(cfg Config) *Monitor {
	store := eventstore.NewStore(cfg.MaxEventsPerKey)
	return &Monitor{
		store:      store,
		matcher:    matcher.New(store),
		dedup:      dedup.New(cfg.DedupCapacity),
		dispatcher: dispatch.New(),
		cooldowns:  buildCooldowns(cfg.Cooldowns),
		metrics:    cfg.Metrics,
	}
}

func buildCooldowns(overrides map[models.Severity]time.Duration) map[string]time.Duration {
	out := make(map[string]time.Duration, len(defaultCooldowns))
	for sev, cd := range defaultCooldowns {
		out[sev.String()] = cd
	}
	for sev, cd := range overrides {
		if cd > 0 {
			out[sev.String()] = cd
		}
	}
	return out
}

// RegisterPattern adds a detection pattern. Startup only.
func (m *Monitor) RegisterPattern(p *models.ThreatPattern) error {
	if err := m.matcher.Register(p); err != nil {
		return err
	}
	if p.Cooldown > 0 {
		m.cooldowns["pattern:"+p.Name] = p.Cooldown
	}
	return nil
}

// RegisterChannel adds a notification channel. Startup only.
func (m *Monitor) RegisterChannel(ch channel.Channel, minSeverity models.Severity, timeout time.Duration) {
	m.dispatcher.RegisterChannel(ch, minSeverity, timeout)
}

// RecordEvent validates and stores the event, evaluates every registered
// pattern against the correlation window, and dispatches the alerts that
// survive deduplication. It returns the dispatched alerts only; a channel
// delivery failure never surfaces as an error here.
func (m *Monitor) RecordEvent(ctx context.Context, event *models.SecurityEvent) ([]*models.SecurityAlert, error) {
	if err := event.Validate(); err != nil {
		m.metrics.IncRejected()
		return nil, err
	}
	m.metrics.IncEvent(string(event.Type))

	// Events no pattern watches are counted but not buffered.
	if dims := m.matcher.Dims(event.Type); len(dims) > 0 {
		m.store.Append(event, dims)
	}
	if maxWindow := m.matcher.MaxWindow(); maxWindow > 0 {
		m.store.EvictOlderThan(event.Timestamp.Add(-maxWindow))
	}
	m.metrics.SetStoredEvents(m.store.Len())

	var dispatched []*models.SecurityAlert
	for _, alert := range m.matcher.Evaluate(event) {
		m.metrics.IncTriggered(alert.PatternName)

		cooldown := m.cooldownFor(alert)
		if m.dedup.ShouldSuppress(alert.PatternName, alert.CorrelationKey, alert.CreatedAt, cooldown) {
			m.metrics.IncSuppressed(alert.PatternName)
			continue
		}

		for _, res := range m.dispatcher.Dispatch(ctx, alert) {
			m.metrics.IncChannelSend(res.Channel, res.Err == nil)
		}
		dispatched = append(dispatched, alert)
	}
	return dispatched, nil
}

// Record is the convenience ingestion entry point: it builds the event
// with the current time and records it.
func (m *Monitor) Record(ctx context.Context, t models.EventType, key string, metadata map[string]interface{}) ([]*models.SecurityAlert, error) {
	return m.RecordEvent(ctx, models.NewEvent(t, key, metadata))
}

func (m *Monitor) cooldownFor(alert *models.SecurityAlert) time.Duration {
	if cd, ok := m.cooldowns["pattern:"+alert.PatternName]; ok {
		return cd
	}
	if cd, ok := m.cooldowns[alert.Severity.String()]; ok {
		return cd
	}
	return defaultCooldowns[models.SeverityMedium]
}

// Close drains and closes the dispatcher's channels.
func (m *Monitor) Close() error {
	return m.dispatcher.Close()
}
