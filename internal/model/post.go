package model

import (
	"strings"
	"time"
)

// Author holds the subset of account data the pipeline needs.
type Author struct {
	ScreenName     string `json:"screen_name"`
	FollowersCount int64  `json:"followers_count"`
}

// Engagement holds optional interaction counts from the source platform.
type Engagement struct {
	Likes   int64 `json:"likes,omitempty"`
	Reposts int64 `json:"reposts,omitempty"`
	Replies int64 `json:"replies,omitempty"`
}

// RawPost is an immutable post record handed over by the ingestion side.
// The pipeline only reads it; missing follower counts decode as zero.
type RawPost struct {
	ID         string      `json:"id"`
	Text       string      `json:"text"`
	Author     Author      `json:"user"`
	CreatedAt  time.Time   `json:"created_at"`
	Engagement *Engagement `json:"engagement,omitempty"`
	SourceURL  string      `json:"expanded_url"`
}

// ScoredPost is the relevance-scoring result for a single raw post.
// Score is a deterministic function of the post, the catalog, and the
// follower thresholds; recomputing with identical inputs yields an
// identical value.
type ScoredPost struct {
	PostID           string   `json:"post_id"`
	Score            float64  `json:"score"`
	AccountFollowers int64    `json:"account_followers"`
	FollowerFit      int      `json:"follower_fit"`
	KeywordMatches   []string `json:"keyword_matches"`
	TopicConfidence  float64  `json:"topic_confidence"`
}

// Currency identifies the currency detected during prize extraction.
type Currency string

const (
	CurrencyUSD     Currency = "USD"
	CurrencyEUR     Currency = "EUR"
	CurrencyETH     Currency = "ETH"
	CurrencyBTC     Currency = "BTC"
	CurrencyUnknown Currency = "UNKNOWN"
)

// EnrichedEvent holds the prize/duration/ROI estimate for a scored post.
// Absent extractions stay nil; ROIScore is set only when both operands
// are present, never defaulted.
type EnrichedEvent struct {
	PostID        string     `json:"post_id"`
	PrizeUSD      *float64   `json:"prize_usd"`
	DurationHours *float64   `json:"duration_hours"`
	ROIScore      *float64   `json:"roi_score"`
	Currency      Currency   `json:"currency_detected"`
	Deadline      *time.Time `json:"deadline,omitempty"`

	// Notes carries non-fatal diagnostics, e.g. a live rate lookup that
	// fell back to the static table.
	Notes []string `json:"notes,omitempty"`
}

// ChannelClass is the routing outcome for a processed post.
type ChannelClass string

const (
	ChannelImmediate ChannelClass = "IMMEDIATE"
	ChannelDigest    ChannelClass = "DIGEST"
	ChannelDrop      ChannelClass = "DROP"
)

// AlertDecision is the routing decision for one post. DROP decisions are
// retained for audit only and never delivered.
type AlertDecision struct {
	PostID    string       `json:"post_id"`
	Channel   ChannelClass `json:"channel_class"`
	Message   string       `json:"message"`
	CreatedAt time.Time    `json:"created_at"`
}

// ProcessedRecord is the per-post output exposed to downstream consumers
// (API, dashboard). Field names follow the external contract.
type ProcessedRecord struct {
	PostID           string     `json:"tweet_id"`
	Score            float64    `json:"score"`
	AccountFollowers int64      `json:"account_followers"`
	KeywordMatches   []string   `json:"keyword_matches"`
	FollowerFit      int        `json:"follower_fit"`
	PrizeValue       *float64   `json:"prize_value"`
	DurationHours    *float64   `json:"duration_hours"`
	ROIScore         *float64   `json:"roi_score"`
	Currency         Currency   `json:"currency_detected"`
	Deadline         *time.Time `json:"registration_deadline"`
	SourceURL        string     `json:"expanded_url"`
}

// NewProcessedRecord combines scoring and enrichment results into the
// external record shape.
func NewProcessedRecord(post RawPost, scored ScoredPost, enriched EnrichedEvent) ProcessedRecord {
	return ProcessedRecord{
		PostID:           post.ID,
		Score:            scored.Score,
		AccountFollowers: scored.AccountFollowers,
		KeywordMatches:   scored.KeywordMatches,
		FollowerFit:      scored.FollowerFit,
		PrizeValue:       enriched.PrizeUSD,
		DurationHours:    enriched.DurationHours,
		ROIScore:         enriched.ROIScore,
		Currency:         enriched.Currency,
		Deadline:         enriched.Deadline,
		SourceURL:        post.SourceURL,
	}
}

// HackathonCard is the dashboard-facing projection of a processed record.
type HackathonCard struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Organizer       string     `json:"organizer"`
	PrizeUSD        *float64   `json:"prize_usd"`
	DurationHours   *float64   `json:"duration_hours"`
	RelevanceScore  int        `json:"relevance_score"`
	Tags            []string   `json:"tags"`
	Description     string     `json:"description"`
	Deadline        *time.Time `json:"deadline,omitempty"`
	RegistrationURL string     `json:"registration_url"`
	IndieFit        bool       `json:"indie_fit"`
	LastUpdated     time.Time  `json:"last_updated"`
}

// ParseCurrency maps a stored currency string back to the enum,
// defaulting to UNKNOWN.
func ParseCurrency(s string) Currency {
	switch Currency(strings.ToUpper(s)) {
	case CurrencyUSD, CurrencyEUR, CurrencyETH, CurrencyBTC:
		return Currency(strings.ToUpper(s))
	default:
		return CurrencyUnknown
	}
}
