package dedup

import (
	"fmt"
	"testing"
	"time"
)

func TestFirstFireIsNeverSuppressed(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d := New(0)

	if d.ShouldSuppress("brute_force_login", "1.2.3.4", base, time.Minute) {
		t.Fatalf("first fire must not be suppressed")
	}
}

func TestRepeatWithinCooldownIsSuppressed(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d := New(0)

	d.ShouldSuppress("p", "k", base, time.Minute)
	if !d.ShouldSuppress("p", "k", base.Add(30*time.Second), time.Minute) {
		t.Fatalf("repeat within cooldown must be suppressed")
	}
	if d.ShouldSuppress("p", "k", base.Add(time.Minute), time.Minute) {
		t.Fatalf("fire at cooldown boundary must pass")
	}
}

func TestCooldownMeasuredFromLastSuccessfulFire(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d := New(0)

	d.ShouldSuppress("p", "k", base, time.Minute)
	// A suppressed attempt must not push the cooldown forward.
	if !d.ShouldSuppress("p", "k", base.Add(50*time.Second), time.Minute) {
		t.Fatalf("attempt at 50s must be suppressed")
	}
	if d.ShouldSuppress("p", "k", base.Add(70*time.Second), time.Minute) {
		t.Fatalf("70s after the successful fire must pass even though an attempt happened at 50s")
	}
}

func TestDistinctPairsTrackIndependently(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d := New(0)

	d.ShouldSuppress("p", "k1", base, time.Minute)
	if d.ShouldSuppress("p", "k2", base, time.Minute) {
		t.Fatalf("different key must not be suppressed")
	}
	if d.ShouldSuppress("q", "k1", base, time.Minute) {
		t.Fatalf("different pattern must not be suppressed")
	}
}

func TestTableStaysBounded(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d := New(100)

	for i := 0; i < 10000; i++ {
		d.ShouldSuppress("p", fmt.Sprintf("key-%d", i), base, time.Minute)
	}
	if d.Len() > 100 {
		t.Fatalf("dedup table grew past capacity: %d entries", d.Len())
	}
}
