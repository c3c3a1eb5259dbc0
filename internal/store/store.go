// Package store persists pipeline runs, processed records, alert
// decisions, and queued digest entries. Two backends exist: SQLite for
// single-node deployments and PostgreSQL for shared ones.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/hacksignal/hacksignal/internal/config"
	"github.com/hacksignal/hacksignal/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = eris.New("store: not found")

// Run is one pipeline invocation.
type Run struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Summary    RunSummary `json:"summary"`
}

// RunSummary is the per-run outcome tally.
type RunSummary struct {
	Posts     int `json:"posts"`
	Immediate int `json:"immediate"`
	Digest    int `json:"digest"`
	Dropped   int `json:"dropped"`
	Failed    int `json:"failed"`
}

// DigestEntry is one queued digest item, keyed by calendar day.
type DigestEntry struct {
	Day      string    `json:"day"`
	PostID   string    `json:"post_id"`
	Message  string    `json:"message"`
	QueuedAt time.Time `json:"queued_at"`
}

// RecordFilter specifies criteria for listing processed records.
type RecordFilter struct {
	MinScore float64 `json:"min_score,omitempty"`
	Limit    int     `json:"limit,omitempty"`
	Offset   int     `json:"offset,omitempty"`
}

// Store defines the persistence interface for the scoring pipeline.
// DROP decisions are stored like the rest so routing stays auditable.
type Store interface {
	// Runs
	CreateRun(ctx context.Context) (*Run, error)
	CompleteRun(ctx context.Context, runID string, summary RunSummary) error
	GetRun(ctx context.Context, runID string) (*Run, error)

	// Raw posts
	SavePost(ctx context.Context, runID string, post model.RawPost) error
	GetPost(ctx context.Context, postID string) (*model.RawPost, error)

	// Processed records. Saving is an upsert on post ID: reprocessing a
	// post replaces its record.
	SaveRecords(ctx context.Context, runID string, records []model.ProcessedRecord) error
	GetRecord(ctx context.Context, postID string) (*model.ProcessedRecord, error)
	ListRecords(ctx context.Context, filter RecordFilter) ([]model.ProcessedRecord, error)
	TopRecords(ctx context.Context, limit int) ([]model.ProcessedRecord, error)

	// Alert decisions
	SaveDecision(ctx context.Context, runID string, decision model.AlertDecision) error
	ListDecisions(ctx context.Context, runID string) ([]model.AlertDecision, error)

	// Digest queue. Adding is idempotent per (day, post); it reports
	// whether the entry was new.
	AddDigestEntry(ctx context.Context, day, postID, message string) (bool, error)
	ListDigestEntries(ctx context.Context, day string) ([]DigestEntry, error)
	ClearDigestEntries(ctx context.Context, day string) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open constructs the backend named by cfg and runs migrations.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		st  Store
		err error
	)
	switch cfg.Driver {
	case "sqlite", "":
		st, err = NewSQLite(cfg.DatabaseURL)
	case "postgres":
		st, err = NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}
