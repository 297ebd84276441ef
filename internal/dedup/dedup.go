package dedup

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Deduplicator suppresses repeat alerts for the same (pattern, key) pair
// within a cooldown. The table is LRU-bounded so stale entries age out
// instead of growing without limit.
type Deduplicator struct {
	mu      sync.Mutex
	entries *lru.Cache[string, time.Time]
}

// New creates a deduplicator holding at most capacity entries.
func New(capacity int) *Deduplicator {
	if capacity <= 0 {
		capacity = 4096
	}
	entries, _ := lru.New[string, time.Time](capacity)
	return &Deduplicator{entries: entries}
}

// ShouldSuppress reports whether an alert for (patternName, key) fired
// within cooldown of the last successful fire. On a non-suppressed call
// the entry's last-fired time moves to now; suppressed attempts leave it
// untouched, so cooldown is measured from the last alert that actually
// went out.
func (d *Deduplicator) ShouldSuppress(patternName, key string, now time.Time, cooldown time.Duration) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	entryKey := patternName + "|" + key
	if last, ok := d.entries.Get(entryKey); ok && now.Sub(last) < cooldown {
		return true
	}
	d.entries.Add(entryKey, now)
	return false
}

// Len returns the number of tracked (pattern, key) pairs.
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.entries.Len()
}
