package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"watchtower/pkg/models"
)

type fakeChannel struct {
	mu        sync.Mutex
	name      string
	err       error
	ignoreCtx bool
	delay     time.Duration
	sent      []*models.SecurityAlert
}

func (f *fakeChannel) Name() string { return f.name }

func (f *fakeChannel) Send(ctx context.Context, alert *models.SecurityAlert) error {
	if f.delay > 0 {
		if f.ignoreCtx {
			time.Sleep(f.delay)
		} else {
			select {
			case <-time.After(f.delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	f.sent = append(f.sent, alert)
	f.mu.Unlock()
	return nil
}

func (f *fakeChannel) Close() error { return nil }

func (f *fakeChannel) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func testAlert(severity models.Severity) *models.SecurityAlert {
	return &models.SecurityAlert{
		AlertID:        "a-1",
		PatternName:    "brute_force_login",
		Severity:       severity,
		CorrelationKey: "1.2.3.4",
		CreatedAt:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestDispatchRoutesBySeverityFloor(t *testing.T) {
	d := New()
	low := &fakeChannel{name: "low"}
	critOnly := &fakeChannel{name: "pager"}
	d.RegisterChannel(low, models.SeverityLow, time.Second)
	d.RegisterChannel(critOnly, models.SeverityCritical, time.Second)

	results := d.Dispatch(context.Background(), testAlert(models.SeverityHigh))
	if len(results) != 1 {
		t.Fatalf("expected 1 attempted channel, got %d", len(results))
	}
	if results[0].Channel != "low" {
		t.Fatalf("unexpected channel: %s", results[0].Channel)
	}
	if critOnly.sentCount() != 0 {
		t.Fatalf("critical-only channel must not receive a high alert")
	}
}

func TestDispatchIsolatesChannelFailures(t *testing.T) {
	d := New()
	broken := &fakeChannel{name: "broken", err: errors.New("boom")}
	healthy := &fakeChannel{name: "healthy"}
	d.RegisterChannel(broken, models.SeverityLow, time.Second)
	d.RegisterChannel(healthy, models.SeverityLow, time.Second)

	results := d.Dispatch(context.Background(), testAlert(models.SeverityHigh))
	if len(results) != 2 {
		t.Fatalf("expected both channels attempted, got %d", len(results))
	}

	outcomes := make(map[string]error, 2)
	for _, res := range results {
		outcomes[res.Channel] = res.Err
	}
	if outcomes["broken"] == nil {
		t.Fatalf("expected failure recorded for broken channel")
	}
	if outcomes["healthy"] != nil {
		t.Fatalf("healthy channel failed: %v", outcomes["healthy"])
	}
	if healthy.sentCount() != 1 {
		t.Fatalf("healthy channel did not deliver")
	}
}

func TestDispatchBoundsHungChannels(t *testing.T) {
	d := New()
	hung := &fakeChannel{name: "hung", delay: 5 * time.Second, ignoreCtx: true}
	healthy := &fakeChannel{name: "healthy"}
	d.RegisterChannel(hung, models.SeverityLow, 50*time.Millisecond)
	d.RegisterChannel(healthy, models.SeverityLow, time.Second)

	start := time.Now()
	results := d.Dispatch(context.Background(), testAlert(models.SeverityHigh))
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("dispatch stalled on hung channel: %s", elapsed)
	}

	outcomes := make(map[string]error, 2)
	for _, res := range results {
		outcomes[res.Channel] = res.Err
	}
	if outcomes["hung"] == nil {
		t.Fatalf("expected timeout error for hung channel")
	}
	if outcomes["healthy"] != nil {
		t.Fatalf("healthy channel failed: %v", outcomes["healthy"])
	}
}

func TestDispatchWithNoEligibleChannels(t *testing.T) {
	d := New()
	d.RegisterChannel(&fakeChannel{name: "pager"}, models.SeverityCritical, time.Second)

	if results := d.Dispatch(context.Background(), testAlert(models.SeverityLow)); len(results) != 0 {
		t.Fatalf("expected no attempts, got %d", len(results))
	}
}
