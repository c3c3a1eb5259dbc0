package alert

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hacksignal/hacksignal/internal/config"
	"github.com/hacksignal/hacksignal/internal/model"
	"github.com/hacksignal/hacksignal/internal/store"
)

// captureNotifier records digest deliveries.
type captureNotifier struct {
	days     []string
	messages [][]string
	err      error
}

func (c *captureNotifier) Notify(context.Context, model.AlertDecision) error { return nil }

func (c *captureNotifier) NotifyDigest(_ context.Context, day string, messages []string) error {
	if c.err != nil {
		return c.err
	}
	c.days = append(c.days, day)
	c.messages = append(c.messages, messages)
	return nil
}

func newDispatchStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })
	return st
}

func TestDispatcher_FlushDay(t *testing.T) {
	ctx := context.Background()
	st := newDispatchStore(t)

	_, err := st.AddDigestEntry(ctx, "2024-06-01", "t1", "first event")
	require.NoError(t, err)
	_, err = st.AddDigestEntry(ctx, "2024-06-01", "t2", "second event")
	require.NoError(t, err)

	notifier := &captureNotifier{}
	d, err := NewDispatcher(st, notifier, config.ProcessingConfig{DigestSendTime: "18:00"})
	require.NoError(t, err)

	sent, err := d.FlushDay(ctx, "2024-06-01")
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	require.Len(t, notifier.messages, 1)
	assert.Equal(t, []string{"first event", "second event"}, notifier.messages[0])

	// Entries are cleared after delivery.
	entries, err := st.ListDigestEntries(ctx, "2024-06-01")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDispatcher_FlushEmptyDaySendsNothing(t *testing.T) {
	st := newDispatchStore(t)
	notifier := &captureNotifier{}
	d, err := NewDispatcher(st, notifier, config.ProcessingConfig{DigestSendTime: "18:00"})
	require.NoError(t, err)

	sent, err := d.FlushDay(context.Background(), "2024-06-01")
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Empty(t, notifier.days)
}

func TestDispatcher_FailedDeliveryKeepsEntries(t *testing.T) {
	ctx := context.Background()
	st := newDispatchStore(t)

	_, err := st.AddDigestEntry(ctx, "2024-06-01", "t1", "event")
	require.NoError(t, err)

	notifier := &captureNotifier{err: assert.AnError}
	d, err := NewDispatcher(st, notifier, config.ProcessingConfig{DigestSendTime: "18:00"})
	require.NoError(t, err)

	_, err = d.FlushDay(ctx, "2024-06-01")
	require.Error(t, err)

	// The queue is untouched, so the next flush can retry.
	entries, err := st.ListDigestEntries(ctx, "2024-06-01")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestNewDispatcher_InvalidSendTime(t *testing.T) {
	st := newDispatchStore(t)
	_, err := NewDispatcher(st, &captureNotifier{}, config.ProcessingConfig{DigestSendTime: "25:99"})
	assert.Error(t, err)
}
