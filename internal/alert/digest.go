// Package alert classifies scored, enriched posts into immediate alerts,
// daily digest entries, or drops, and formats the outbound messages.
package alert

import (
	"sync"
	"time"
)

// DayKey is the calendar-date key for digest grouping.
const DayKey = "2006-01-02"

// DigestQueue accumulates digest-class post IDs per calendar day. It is
// the only state shared across pipeline invocations within a day, so it
// is owned by the caller and injected into the router. Additions are
// idempotent by post ID.
type DigestQueue struct {
	mu   sync.Mutex
	days map[string][]string
	seen map[string]map[string]bool
}

// NewDigestQueue creates an empty digest queue.
func NewDigestQueue() *DigestQueue {
	return &DigestQueue{
		days: make(map[string][]string),
		seen: make(map[string]map[string]bool),
	}
}

// Add queues a post ID under the given day. Re-adding the same ID for
// the same day is a no-op; it returns whether the entry was new.
func (q *DigestQueue) Add(day time.Time, postID string) bool {
	key := day.UTC().Format(DayKey)

	q.mu.Lock()
	defer q.mu.Unlock()

	ids := q.seen[key]
	if ids == nil {
		ids = make(map[string]bool)
		q.seen[key] = ids
	}
	if ids[postID] {
		return false
	}
	ids[postID] = true
	q.days[key] = append(q.days[key], postID)
	return true
}

// Entries returns the queued post IDs for a day in insertion order.
func (q *DigestQueue) Entries(day time.Time) []string {
	key := day.UTC().Format(DayKey)

	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]string, len(q.days[key]))
	copy(out, q.days[key])
	return out
}

// Flush returns and clears the queued post IDs for a day. The digest
// dispatch collaborator calls this at the configured send time.
func (q *DigestQueue) Flush(day time.Time) []string {
	key := day.UTC().Format(DayKey)

	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.days[key]
	delete(q.days, key)
	delete(q.seen, key)
	return out
}

// Len returns the number of queued entries for a day.
func (q *DigestQueue) Len(day time.Time) int {
	key := day.UTC().Format(DayKey)

	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.days[key])
}
