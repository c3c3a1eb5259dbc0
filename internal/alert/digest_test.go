package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var day = time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC)

func TestDigestQueue_AddIdempotent(t *testing.T) {
	q := NewDigestQueue()

	assert.True(t, q.Add(day, "t1"))
	assert.False(t, q.Add(day, "t1"))
	assert.True(t, q.Add(day, "t2"))

	assert.Equal(t, []string{"t1", "t2"}, q.Entries(day))
	assert.Equal(t, 2, q.Len(day))
}

func TestDigestQueue_DaysIsolated(t *testing.T) {
	q := NewDigestQueue()
	nextDay := day.AddDate(0, 0, 1)

	q.Add(day, "t1")
	q.Add(nextDay, "t1")

	assert.Equal(t, []string{"t1"}, q.Entries(day))
	assert.Equal(t, []string{"t1"}, q.Entries(nextDay))
}

func TestDigestQueue_SameCalendarDay(t *testing.T) {
	q := NewDigestQueue()

	q.Add(day, "t1")
	// A different wall-clock time on the same UTC day is the same bucket.
	assert.False(t, q.Add(day.Add(3*time.Hour), "t1"))
	assert.Equal(t, 1, q.Len(day))
}

func TestDigestQueue_Flush(t *testing.T) {
	q := NewDigestQueue()
	q.Add(day, "t1")
	q.Add(day, "t2")

	flushed := q.Flush(day)
	assert.Equal(t, []string{"t1", "t2"}, flushed)
	assert.Zero(t, q.Len(day))

	// Flushing clears dedup state too: the ID can re-enter.
	assert.True(t, q.Add(day, "t1"))
}

func TestDigestQueue_EmptyDay(t *testing.T) {
	q := NewDigestQueue()

	assert.Empty(t, q.Entries(day))
	assert.Empty(t, q.Flush(day))
	assert.Zero(t, q.Len(day))
}
