package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hacksignal/hacksignal/internal/alert"
	"github.com/hacksignal/hacksignal/internal/catalog"
	"github.com/hacksignal/hacksignal/internal/config"
	"github.com/hacksignal/hacksignal/internal/enrich"
	"github.com/hacksignal/hacksignal/internal/model"
	"github.com/hacksignal/hacksignal/internal/store"
)

func testConfig() *config.Config {
	return &config.Config{
		Thresholds: config.ThresholdsConfig{
			FollowerMin:        2000,
			FollowerMax:        50000,
			PrizeMin:           1000,
			PrizeMax:           100000,
			MaxDurationHours:   168,
			RelevanceThreshold: 0.3,
		},
		Processing: config.ProcessingConfig{
			AlertPercentile: 90,
			DigestSendTime:  "18:00",
		},
	}
}

func newTestPipeline(t *testing.T, cfg *config.Config) (*Pipeline, store.Store) {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "pipe.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })

	queue := alert.NewDigestQueue()
	router := alert.NewRouter(cfg.Thresholds, cfg.Processing, queue)
	pipe := New(cfg, catalog.Default(), enrich.New(), router, st)
	return pipe, st
}

func announcement(id string, followers int64, text string) model.RawPost {
	return model.RawPost{
		ID:        id,
		Text:      text,
		Author:    model.Author{ScreenName: "dev", FollowersCount: followers},
		CreatedAt: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
		SourceURL: "https://x.com/p/" + id,
	}
}

func TestPipeline_SingleAnnouncement(t *testing.T) {
	ctx := context.Background()
	pipe, st := newTestPipeline(t, testConfig())

	posts := []model.RawPost{
		announcement("t1", 15000, "AI Hackathon this weekend! $10.8k prize #AIHack"),
	}

	result, err := pipe.Run(ctx, posts)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	require.Len(t, result.Decisions, 1)
	assert.Empty(t, result.Failures)

	rec := result.Records[0]
	assert.Equal(t, "t1", rec.PostID)
	assert.InDelta(t, 0.492, rec.Score, 1e-9)
	assert.Equal(t, 1, rec.FollowerFit)
	assert.Equal(t, []string{"ai", "hackathon", "#aihack"}, rec.KeywordMatches)
	require.NotNil(t, rec.PrizeValue)
	assert.InDelta(t, 10800, *rec.PrizeValue, 1e-9)
	require.NotNil(t, rec.DurationHours)
	assert.InDelta(t, 48, *rec.DurationHours, 1e-9)
	require.NotNil(t, rec.ROIScore)
	assert.InDelta(t, 225, *rec.ROIScore, 1e-9)

	// Persisted and readable back.
	stored, err := st.GetRecord(ctx, "t1")
	require.NoError(t, err)
	assert.InDelta(t, rec.Score, stored.Score, 1e-9)

	run, err := st.GetRun(ctx, result.RunID)
	require.NoError(t, err)
	assert.NotNil(t, run.FinishedAt)
	assert.Equal(t, result.Summary, run.Summary)
}

func TestPipeline_InvalidPostIsIsolated(t *testing.T) {
	ctx := context.Background()
	pipe, _ := newTestPipeline(t, testConfig())

	posts := []model.RawPost{
		{Text: "no id on this one"},
		announcement("ok", 15000, "Web3 hackathon, $5k prize, 48 hours"),
	}

	result, err := pipe.Run(ctx, posts)
	require.NoError(t, err)

	require.Len(t, result.Failures, 1)
	assert.Contains(t, result.Failures[0].Reason, "id")
	require.Len(t, result.Records, 1)
	assert.Equal(t, "ok", result.Records[0].PostID)
	assert.Equal(t, 2, result.Summary.Posts)
	assert.Equal(t, 1, result.Summary.Failed)
}

func TestPipeline_PercentileRouting(t *testing.T) {
	ctx := context.Background()
	pipe, st := newTestPipeline(t, testConfig())

	// Ten scoreable posts with strictly increasing ROI.
	posts := make([]model.RawPost, 0, 10)
	for i := 1; i <= 10; i++ {
		text := fmt.Sprintf("AI hackathon #ai%d, $%dk prize, 48 hours", i, i)
		posts = append(posts, announcement(fmt.Sprintf("t%d", i), 15000, text))
	}

	result, err := pipe.Run(ctx, posts)
	require.NoError(t, err)
	require.Len(t, result.Decisions, 10)

	assert.Equal(t, 1, result.Summary.Immediate)
	assert.Equal(t, 9, result.Summary.Digest)
	assert.Equal(t, 0, result.Summary.Dropped)

	for _, d := range result.Decisions {
		if d.Channel == model.ChannelImmediate {
			assert.Equal(t, "t10", d.PostID)
		}
	}

	// Digest decisions are mirrored into the durable queue under the
	// posts' calendar day.
	entries, err := st.ListDigestEntries(ctx, "2024-06-01")
	require.NoError(t, err)
	assert.Len(t, entries, 9)
}

func TestPipeline_IrrelevantPostDropped(t *testing.T) {
	ctx := context.Background()
	pipe, st := newTestPipeline(t, testConfig())

	result, err := pipe.Run(ctx, []model.RawPost{
		announcement("t1", 100, "had a nice sandwich for lunch"),
	})
	require.NoError(t, err)

	require.Len(t, result.Decisions, 1)
	assert.Equal(t, model.ChannelDrop, result.Decisions[0].Channel)
	assert.Equal(t, 1, result.Summary.Dropped)

	// DROP decisions persist for audit.
	decisions, err := st.ListDecisions(ctx, result.RunID)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, model.ChannelDrop, decisions[0].Channel)
}

func TestPipeline_ReprocessingIsIdempotent(t *testing.T) {
	ctx := context.Background()
	pipe, st := newTestPipeline(t, testConfig())

	posts := []model.RawPost{
		announcement("t1", 15000, "AI Hackathon! $10k, 48 hours #aihack"),
	}

	first, err := pipe.Run(ctx, posts)
	require.NoError(t, err)
	second, err := pipe.Run(ctx, posts)
	require.NoError(t, err)

	assert.Equal(t, first.Records[0].Score, second.Records[0].Score)
	assert.Equal(t, first.Decisions[0].Channel, second.Decisions[0].Channel)

	// Still exactly one stored record for the post.
	records, err := st.ListRecords(ctx, store.RecordFilter{})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestPipeline_EmptyBatch(t *testing.T) {
	pipe, _ := newTestPipeline(t, testConfig())

	result, err := pipe.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, result.Records)
	assert.Empty(t, result.Decisions)
	assert.Zero(t, result.Summary.Posts)
}

func TestPipeline_NoStore(t *testing.T) {
	cfg := testConfig()
	queue := alert.NewDigestQueue()
	router := alert.NewRouter(cfg.Thresholds, cfg.Processing, queue)
	pipe := New(cfg, catalog.Default(), enrich.New(), router, nil)

	result, err := pipe.Run(context.Background(), []model.RawPost{
		announcement("t1", 15000, "AI Hackathon! $10k, 48 hours"),
	})
	require.NoError(t, err)
	assert.Empty(t, result.RunID)
	require.Len(t, result.Records, 1)
}
