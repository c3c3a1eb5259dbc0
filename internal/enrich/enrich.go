// Package enrich extracts prize value, event duration, and registration
// deadline from post text and derives an ROI figure. Extraction is
// lexical and never fails for absent matches; the only outbound call is
// the optional currency-rate lookup, which is bounded and degrades to a
// static table.
package enrich

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hacksignal/hacksignal/internal/model"
	"github.com/hacksignal/hacksignal/internal/resilience"
)

// Enricher turns raw posts into enriched events.
type Enricher struct {
	live   RateSource
	static StaticRates
	retry  resilience.RetryConfig
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithLiveRates attaches a live rate source, used before the static
// table. The pipeline behaves identically when it is absent.
func WithLiveRates(src RateSource) Option {
	return func(e *Enricher) { e.live = src }
}

// WithRetry overrides the retry policy for live rate lookups.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(e *Enricher) { e.retry = cfg }
}

// New creates an Enricher. Without options it is fully offline.
func New(opts ...Option) *Enricher {
	e := &Enricher{retry: resilience.DefaultRetryConfig()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich extracts prize, duration, ROI, and deadline for one post.
// ROI is present iff both prize and duration are; absent fields stay
// nil and are never defaulted.
func (e *Enricher) Enrich(ctx context.Context, post model.RawPost) model.EnrichedEvent {
	event := model.EnrichedEvent{
		PostID:   post.ID,
		Currency: model.CurrencyUnknown,
	}

	if amount, currency, ok := extractPrize(post.Text); ok {
		event.Currency = currency
		usd := e.toUSD(ctx, amount, currency, &event)
		event.PrizeUSD = &usd
	}

	if hours, ok := extractDuration(post.Text); ok {
		event.DurationHours = &hours
	}

	if event.PrizeUSD != nil && event.DurationHours != nil {
		roi := *event.PrizeUSD / *event.DurationHours
		event.ROIScore = &roi
	}

	event.Deadline = extractDeadline(post.Text, post.CreatedAt)

	return event
}

// toUSD converts an amount using the live source when one is configured,
// falling back to the static table. A fallback is recorded as a note on
// the event, not surfaced as an error.
func (e *Enricher) toUSD(ctx context.Context, amount float64, currency model.Currency, event *model.EnrichedEvent) float64 {
	if currency == model.CurrencyUSD {
		return amount
	}

	if e.live != nil {
		rate, err := resilience.DoVal(ctx, e.retry, func(ctx context.Context) (float64, error) {
			return e.live.Rate(ctx, currency)
		})
		if err == nil {
			return amount * rate
		}
		event.Notes = append(event.Notes,
			fmt.Sprintf("live rate lookup for %s failed, using static table", currency))
		zap.L().Debug("enrich: live rate lookup failed",
			zap.String("post_id", event.PostID),
			zap.String("currency", string(currency)),
			zap.Error(err),
		)
	}

	rate, err := e.static.Rate(ctx, currency)
	if err != nil {
		// Unknown currency: keep the native amount rather than invent a rate.
		event.Notes = append(event.Notes,
			fmt.Sprintf("no conversion rate for %s, keeping native amount", currency))
		return amount
	}
	return amount * rate
}
