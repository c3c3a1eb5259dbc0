package alert

import (
	"time"

	"go.uber.org/zap"

	"github.com/hacksignal/hacksignal/internal/config"
	"github.com/hacksignal/hacksignal/internal/model"
)

// Input pairs the scoring and enrichment results for one post.
type Input struct {
	Post     model.RawPost
	Scored   model.ScoredPost
	Enriched model.EnrichedEvent
}

// Router classifies processed posts. IMMEDIATE classification is a
// property of the whole batch (it ranks ROI against the batch
// distribution), so the router always sees the full batch at once.
type Router struct {
	thresholds config.ThresholdsConfig
	processing config.ProcessingConfig
	queue      *DigestQueue
}

// NewRouter creates a router writing digest entries into queue.
func NewRouter(thresholds config.ThresholdsConfig, processing config.ProcessingConfig, queue *DigestQueue) *Router {
	return &Router{thresholds: thresholds, processing: processing, queue: queue}
}

// RouteBatch classifies every input in the batch. The ROI distribution
// is computed over the batch before any record is classified.
func (r *Router) RouteBatch(inputs []Input, now time.Time) []model.AlertDecision {
	rois := make([]float64, 0, len(inputs))
	for _, in := range inputs {
		if in.Enriched.ROIScore != nil {
			rois = append(rois, *in.Enriched.ROIScore)
		}
	}

	decisions := make([]model.AlertDecision, 0, len(inputs))
	for _, in := range inputs {
		channel := r.classify(in, rois)
		if channel == model.ChannelDigest {
			// Digest entries group by the post's calendar day.
			r.queue.Add(in.Post.CreatedAt, in.Post.ID)
		}

		decisions = append(decisions, model.AlertDecision{
			PostID:    in.Post.ID,
			Channel:   channel,
			Message:   FormatMessage(in.Post, in.Enriched),
			CreatedAt: now,
		})
	}

	zap.L().Debug("alert: batch routed",
		zap.Int("records", len(inputs)),
		zap.Int("roi_ranked", len(rois)),
	)

	return decisions
}

// classify applies the routing rules in order: below the relevance
// threshold (or exactly zero) drops; top-percentile ROI goes out
// immediately; everything else waits for the digest.
func (r *Router) classify(in Input, rois []float64) model.ChannelClass {
	if in.Scored.Score <= 0 {
		return model.ChannelDrop
	}
	if in.Scored.Score < r.thresholds.RelevanceThreshold {
		return model.ChannelDrop
	}

	if in.Enriched.ROIScore != nil && topPercentile(*in.Enriched.ROIScore, rois, r.processing.AlertPercentile) {
		return model.ChannelImmediate
	}

	return model.ChannelDigest
}

// topPercentile reports whether value ranks at or above the given
// percentile within the batch distribution. Rank is the fraction of
// values strictly below it, so ties share a rank and re-running the
// batch yields the same classification.
func topPercentile(value float64, all []float64, percentile float64) bool {
	if len(all) == 0 {
		return false
	}
	below := 0
	for _, v := range all {
		if v < value {
			below++
		}
	}
	rank := float64(below) / float64(len(all))
	return rank >= percentile/100
}
