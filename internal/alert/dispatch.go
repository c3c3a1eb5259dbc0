package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hacksignal/hacksignal/internal/config"
	"github.com/hacksignal/hacksignal/internal/store"
)

// Dispatcher sends the daily digest at the configured wall-clock time.
// Entries come from the durable store queue so a restart between
// processing and send time loses nothing.
type Dispatcher struct {
	store    store.Store
	notifier Notifier
	cron     *cron.Cron
	hour     int
	minute   int
}

// NewDispatcher creates a dispatcher for the configured send time.
func NewDispatcher(st store.Store, notifier Notifier, processing config.ProcessingConfig) (*Dispatcher, error) {
	hour, minute, err := config.ParseClock(processing.DigestSendTime)
	if err != nil {
		return nil, err
	}
	return &Dispatcher{
		store:    st,
		notifier: notifier,
		cron:     cron.New(),
		hour:     hour,
		minute:   minute,
	}, nil
}

// Start schedules the daily send. The job flushes the current day.
func (d *Dispatcher) Start() error {
	spec := fmt.Sprintf("%d %d * * *", d.minute, d.hour)
	_, err := d.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		day := time.Now().UTC().Format(DayKey)
		if _, err := d.FlushDay(ctx, day); err != nil {
			zap.L().Error("alert: digest dispatch failed",
				zap.String("day", day),
				zap.Error(err),
			)
		}
	})
	if err != nil {
		return eris.Wrapf(err, "alert: schedule digest at %q", spec)
	}

	d.cron.Start()
	zap.L().Info("alert: digest dispatcher started",
		zap.Int("hour", d.hour),
		zap.Int("minute", d.minute),
	)
	return nil
}

// Stop halts the schedule and waits for a running job to finish.
func (d *Dispatcher) Stop() {
	<-d.cron.Stop().Done()
}

// FlushDay delivers and clears the queued entries for one day. It
// returns the number of entries sent; an empty day sends nothing.
// Entries are cleared only after delivery succeeds, so a failed send
// retries on the next flush.
func (d *Dispatcher) FlushDay(ctx context.Context, day string) (int, error) {
	entries, err := d.store.ListDigestEntries(ctx, day)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		zap.L().Info("alert: no digest entries", zap.String("day", day))
		return 0, nil
	}

	messages := make([]string, len(entries))
	for i, e := range entries {
		messages[i] = e.Message
	}

	if err := d.notifier.NotifyDigest(ctx, day, messages); err != nil {
		return 0, eris.Wrapf(err, "alert: deliver digest for %s", day)
	}

	if _, err := d.store.ClearDigestEntries(ctx, day); err != nil {
		return len(entries), eris.Wrapf(err, "alert: clear digest for %s", day)
	}

	zap.L().Info("alert: digest sent",
		zap.String("day", day),
		zap.Int("entries", len(entries)),
	)
	return len(entries), nil
}
