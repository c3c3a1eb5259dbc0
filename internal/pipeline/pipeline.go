// Package pipeline orchestrates the scoring, enrichment, and alert
// routing stages over a batch of raw posts.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hacksignal/hacksignal/internal/alert"
	"github.com/hacksignal/hacksignal/internal/catalog"
	"github.com/hacksignal/hacksignal/internal/config"
	"github.com/hacksignal/hacksignal/internal/enrich"
	"github.com/hacksignal/hacksignal/internal/model"
	"github.com/hacksignal/hacksignal/internal/scoring"
	"github.com/hacksignal/hacksignal/internal/store"
)

// Failure records a post the pipeline rejected or could not process.
// One bad post never aborts the batch.
type Failure struct {
	PostID string `json:"post_id"`
	Reason string `json:"reason"`
}

// Result is the outcome of one pipeline run.
type Result struct {
	RunID     string                  `json:"run_id"`
	Records   []model.ProcessedRecord `json:"records"`
	Decisions []model.AlertDecision   `json:"decisions"`
	Failures  []Failure               `json:"failures"`
	Summary   store.RunSummary        `json:"summary"`
	Duration  time.Duration           `json:"duration"`
}

// Pipeline wires the stages together. Scoring and enrichment run per
// post; routing runs once over the fully enriched batch because the
// immediate/digest split ranks ROI against the batch distribution.
type Pipeline struct {
	cfg      *config.Config
	cat      *catalog.Catalog
	enricher *enrich.Enricher
	router   *alert.Router
	store    store.Store
}

// New creates a Pipeline. st may be nil, in which case nothing is
// persisted and the run ID is synthesized.
func New(cfg *config.Config, cat *catalog.Catalog, enricher *enrich.Enricher, router *alert.Router, st store.Store) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		cat:      cat,
		enricher: enricher,
		router:   router,
		store:    st,
	}
}

// Run processes a batch of raw posts end to end.
func (p *Pipeline) Run(ctx context.Context, posts []model.RawPost) (*Result, error) {
	start := time.Now()
	log := zap.L().With(zap.Int("posts", len(posts)))
	log.Info("pipeline: starting run")

	result := &Result{}

	if p.store != nil {
		run, err := p.store.CreateRun(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: create run")
		}
		result.RunID = run.ID
	}

	// Stage 1+2: validate, score, and enrich each post. Failures are
	// isolated per post.
	inputs := make([]alert.Input, 0, len(posts))
	for _, post := range posts {
		if err := scoring.Validate(post); err != nil {
			log.Warn("pipeline: rejected post",
				zap.String("post_id", post.ID),
				zap.Error(err),
			)
			result.Failures = append(result.Failures, Failure{
				PostID: post.ID,
				Reason: err.Error(),
			})
			continue
		}

		scored := scoring.Score(post, p.cat, p.cfg.Thresholds)
		enriched := p.enricher.Enrich(ctx, post)

		inputs = append(inputs, alert.Input{Post: post, Scored: scored, Enriched: enriched})
		result.Records = append(result.Records, model.NewProcessedRecord(post, scored, enriched))

		if p.store != nil {
			if err := p.store.SavePost(ctx, result.RunID, post); err != nil {
				log.Warn("pipeline: save post failed",
					zap.String("post_id", post.ID),
					zap.Error(err),
				)
			}
		}
	}

	// Stage 3: route the whole batch at once.
	result.Decisions = p.router.RouteBatch(inputs, time.Now().UTC())

	postDays := make(map[string]string, len(inputs))
	for _, in := range inputs {
		postDays[in.Post.ID] = in.Post.CreatedAt.UTC().Format(alert.DayKey)
	}

	result.Summary = summarize(len(posts), result.Decisions, result.Failures)
	result.Duration = time.Since(start)

	if err := p.persist(ctx, result, postDays); err != nil {
		return nil, err
	}

	log.Info("pipeline: run complete",
		zap.String("run_id", result.RunID),
		zap.Int("immediate", result.Summary.Immediate),
		zap.Int("digest", result.Summary.Digest),
		zap.Int("dropped", result.Summary.Dropped),
		zap.Int("failed", result.Summary.Failed),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

func (p *Pipeline) persist(ctx context.Context, result *Result, postDays map[string]string) error {
	if p.store == nil {
		return nil
	}

	if err := p.store.SaveRecords(ctx, result.RunID, result.Records); err != nil {
		return eris.Wrap(err, "pipeline: save records")
	}

	messages := make(map[string]string, len(result.Decisions))
	for _, d := range result.Decisions {
		messages[d.PostID] = d.Message
		if err := p.store.SaveDecision(ctx, result.RunID, d); err != nil {
			return eris.Wrapf(err, "pipeline: save decision for %s", d.PostID)
		}
	}

	// Mirror digest-class decisions into the durable queue so entries
	// survive a restart before send time. Entries key on the post's
	// calendar day; the primary key on (day, post) keeps reprocessing
	// idempotent.
	for _, d := range result.Decisions {
		if d.Channel != model.ChannelDigest {
			continue
		}
		if _, err := p.store.AddDigestEntry(ctx, postDays[d.PostID], d.PostID, messages[d.PostID]); err != nil {
			return eris.Wrapf(err, "pipeline: queue digest entry for %s", d.PostID)
		}
	}

	if err := p.store.CompleteRun(ctx, result.RunID, result.Summary); err != nil {
		return eris.Wrap(err, "pipeline: complete run")
	}
	return nil
}

func summarize(posts int, decisions []model.AlertDecision, failures []Failure) store.RunSummary {
	s := store.RunSummary{Posts: posts, Failed: len(failures)}
	for _, d := range decisions {
		switch d.Channel {
		case model.ChannelImmediate:
			s.Immediate++
		case model.ChannelDigest:
			s.Digest++
		case model.ChannelDrop:
			s.Dropped++
		}
	}
	return s
}
