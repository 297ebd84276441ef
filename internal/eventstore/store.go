package eventstore

import (
	"sync"
	"time"

	"watchtower/pkg/models"
)

// PrimaryDim is the grouping dimension backed by the event's own
// correlation key rather than a metadata field.
const PrimaryDim = ""

type bucketKey struct {
	typ models.EventType
	dim string
	key string
}

// Store is a bounded, time-windowed buffer of recent events, keyed by
// (event type, grouping dimension, key value). Events are kept only for
// as long as the widest registered pattern window needs them.
type Store struct {
	mu        sync.Mutex
	buckets   map[bucketKey][]*models.SecurityEvent
	maxPerKey int
}

// NewStore creates an event store. maxPerKey caps each bucket so a burst
// on one key cannot grow memory past maxPerKey events per bucket.
func NewStore(maxPerKey int) *Store {
	if maxPerKey <= 0 {
		maxPerKey = 256
	}
	return &Store{
		buckets:   make(map[bucketKey][]*models.SecurityEvent),
		maxPerKey: maxPerKey,
	}
}

// Append inserts the event in arrival order under each grouping dimension
// in dims. Dimensions the event does not carry are skipped.
func (s *Store) Append(event *models.SecurityEvent, dims []string) {
	if event == nil {
		return
	}
	if len(dims) == 0 {
		dims = []string{PrimaryDim}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, dim := range dims {
		key := event.CorrelationKey
		if dim != PrimaryDim {
			key = event.Meta(dim)
		}
		if key == "" {
			continue
		}
		bk := bucketKey{typ: event.Type, dim: dim, key: key}
		bucket := append(s.buckets[bk], event)
		if len(bucket) > s.maxPerKey {
			bucket = bucket[len(bucket)-s.maxPerKey:]
		}
		s.buckets[bk] = bucket
	}
}

// EventsSince returns matching events no older than since, oldest-first.
// The returned slice is a copy and stays valid across later mutation.
func (s *Store) EventsSince(typ models.EventType, dim, key string, since time.Time) []*models.SecurityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket := s.buckets[bucketKey{typ: typ, dim: dim, key: key}]
	if len(bucket) == 0 {
		return nil
	}
	out := make([]*models.SecurityEvent, 0, len(bucket))
	for _, ev := range bucket {
		if ev.Timestamp.Before(since) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// EvictOlderThan drops events with timestamp < cutoff across all keys and
// removes emptied buckets. Called opportunistically after each append with
// cutoff derived from the widest registered window.
func (s *Store) EvictOlderThan(cutoff time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for bk, bucket := range s.buckets {
		idx := 0
		for idx < len(bucket) && bucket[idx].Timestamp.Before(cutoff) {
			idx++
		}
		switch {
		case idx == len(bucket):
			delete(s.buckets, bk)
		case idx > 0:
			s.buckets[bk] = bucket[idx:]
		}
	}
}

// Len returns the total number of stored event references.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, bucket := range s.buckets {
		n += len(bucket)
	}
	return n
}
