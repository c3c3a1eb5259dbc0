package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/hacksignal/hacksignal/internal/db"
	"github.com/hacksignal/hacksignal/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool; tests pass a mock here.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ,
	summary     JSONB
);

CREATE TABLE IF NOT EXISTS posts (
	id          TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL REFERENCES runs(id),
	payload     JSONB NOT NULL,
	received_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS records (
	post_id           TEXT PRIMARY KEY,
	run_id            TEXT NOT NULL REFERENCES runs(id),
	score             DOUBLE PRECISION NOT NULL,
	account_followers BIGINT NOT NULL,
	follower_fit      INT NOT NULL,
	keyword_matches   JSONB NOT NULL,
	prize_value       DOUBLE PRECISION,
	duration_hours    DOUBLE PRECISION,
	roi_score         DOUBLE PRECISION,
	currency          TEXT NOT NULL,
	deadline          TIMESTAMPTZ,
	source_url        TEXT NOT NULL DEFAULT '',
	updated_at        TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS decisions (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	post_id    TEXT NOT NULL,
	channel    TEXT NOT NULL,
	message    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS digest_entries (
	day       TEXT NOT NULL,
	post_id   TEXT NOT NULL,
	message   TEXT NOT NULL,
	queued_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (day, post_id)
);

CREATE INDEX IF NOT EXISTS idx_records_score ON records(score DESC);
CREATE INDEX IF NOT EXISTS idx_records_run_id ON records(run_id);
CREATE INDEX IF NOT EXISTS idx_decisions_run_id ON decisions(run_id);
CREATE INDEX IF NOT EXISTS idx_posts_run_id ON posts(run_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context) (*Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, started_at) VALUES ($1, $2)`, id, now)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return &Run{ID: id, StartedAt: now}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, summary RunSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal summary")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET finished_at = $1, summary = $2 WHERE id = $3`,
		time.Now().UTC(), summaryJSON, runID)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	var (
		run         Run
		finishedAt  *time.Time
		summaryJSON []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, started_at, finished_at, summary FROM runs WHERE id = $1`, runID,
	).Scan(&run.ID, &run.StartedAt, &finishedAt, &summaryJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	run.FinishedAt = finishedAt
	if len(summaryJSON) > 0 {
		if err := json.Unmarshal(summaryJSON, &run.Summary); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal summary for run %s", runID)
		}
	}
	return &run, nil
}

func (s *PostgresStore) SavePost(ctx context.Context, runID string, post model.RawPost) error {
	payload, err := json.Marshal(post)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal post")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO posts (id, run_id, payload) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET run_id = EXCLUDED.run_id, payload = EXCLUDED.payload`,
		post.ID, runID, payload)
	return eris.Wrapf(err, "postgres: save post %s", post.ID)
}

func (s *PostgresStore) GetPost(ctx context.Context, postID string) (*model.RawPost, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM posts WHERE id = $1`, postID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get post %s", postID)
	}

	var post model.RawPost
	if err := json.Unmarshal(payload, &post); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal post %s", postID)
	}
	return &post, nil
}

var recordUpsert = db.UpsertConfig{
	Table: "records",
	Columns: []string{
		"post_id", "run_id", "score", "account_followers", "follower_fit", "keyword_matches",
		"prize_value", "duration_hours", "roi_score", "currency", "deadline", "source_url", "updated_at",
	},
	ConflictCols: []string{"post_id"},
	UpdateCols: []string{
		"run_id", "score", "account_followers", "follower_fit", "keyword_matches",
		"prize_value", "duration_hours", "roi_score", "currency", "deadline", "source_url", "updated_at",
	},
}

func (s *PostgresStore) SaveRecords(ctx context.Context, runID string, records []model.ProcessedRecord) error {
	if len(records) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(records))
	for _, rec := range records {
		matches, err := json.Marshal(rec.KeywordMatches)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal matches for %s", rec.PostID)
		}
		rows = append(rows, []any{
			rec.PostID, runID, rec.Score, rec.AccountFollowers, rec.FollowerFit, matches,
			rec.PrizeValue, rec.DurationHours, rec.ROIScore, string(rec.Currency), rec.Deadline,
			rec.SourceURL, now,
		})
	}

	_, err := db.BulkUpsert(ctx, s.pool, recordUpsert, rows)
	return err
}

const pgRecordColumns = `post_id, score, account_followers, follower_fit, keyword_matches,
	prize_value, duration_hours, roi_score, currency, deadline, source_url`

func (s *PostgresStore) GetRecord(ctx context.Context, postID string) (*model.ProcessedRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgRecordColumns+` FROM records WHERE post_id = $1`, postID)

	rec, err := scanPgRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get record %s", postID)
	}
	return rec, nil
}

func (s *PostgresStore) ListRecords(ctx context.Context, filter RecordFilter) ([]model.ProcessedRecord, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+pgRecordColumns+` FROM records WHERE score >= $1
		 ORDER BY score DESC, post_id LIMIT $2 OFFSET $3`,
		filter.MinScore, limit, filter.Offset)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list records")
	}
	defer rows.Close()

	var records []model.ProcessedRecord
	for rows.Next() {
		rec, err := scanPgRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		records = append(records, *rec)
	}
	return records, eris.Wrap(rows.Err(), "postgres: list records iterate")
}

func (s *PostgresStore) TopRecords(ctx context.Context, limit int) ([]model.ProcessedRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.ListRecords(ctx, RecordFilter{Limit: limit})
}

func (s *PostgresStore) SaveDecision(ctx context.Context, runID string, decision model.AlertDecision) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO decisions (id, run_id, post_id, channel, message, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New().String(), runID, decision.PostID, string(decision.Channel),
		decision.Message, decision.CreatedAt.UTC())
	return eris.Wrapf(err, "postgres: save decision for %s", decision.PostID)
}

func (s *PostgresStore) ListDecisions(ctx context.Context, runID string) ([]model.AlertDecision, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT post_id, channel, message, created_at FROM decisions
		 WHERE run_id = $1 ORDER BY created_at, post_id`, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list decisions for run %s", runID)
	}
	defer rows.Close()

	var decisions []model.AlertDecision
	for rows.Next() {
		var (
			d       model.AlertDecision
			channel string
		)
		if err := rows.Scan(&d.PostID, &channel, &d.Message, &d.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan decision")
		}
		d.Channel = model.ChannelClass(channel)
		decisions = append(decisions, d)
	}
	return decisions, eris.Wrap(rows.Err(), "postgres: list decisions iterate")
}

func (s *PostgresStore) AddDigestEntry(ctx context.Context, day, postID, message string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO digest_entries (day, post_id, message, queued_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (day, post_id) DO NOTHING`,
		day, postID, message, time.Now().UTC())
	if err != nil {
		return false, eris.Wrapf(err, "postgres: add digest entry %s/%s", day, postID)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) ListDigestEntries(ctx context.Context, day string) ([]DigestEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT day, post_id, message, queued_at FROM digest_entries
		 WHERE day = $1 ORDER BY queued_at, post_id`, day)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list digest entries for %s", day)
	}
	defer rows.Close()

	var entries []DigestEntry
	for rows.Next() {
		var e DigestEntry
		if err := rows.Scan(&e.Day, &e.PostID, &e.Message, &e.QueuedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan digest entry")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: list digest entries iterate")
}

func (s *PostgresStore) ClearDigestEntries(ctx context.Context, day string) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM digest_entries WHERE day = $1`, day)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: clear digest entries for %s", day)
	}
	return int(tag.RowsAffected()), nil
}

func scanPgRecord(row pgx.Row) (*model.ProcessedRecord, error) {
	var (
		rec         model.ProcessedRecord
		matchesJSON []byte
		currency    string
	)
	err := row.Scan(&rec.PostID, &rec.Score, &rec.AccountFollowers, &rec.FollowerFit,
		&matchesJSON, &rec.PrizeValue, &rec.DurationHours, &rec.ROIScore,
		&currency, &rec.Deadline, &rec.SourceURL)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(matchesJSON, &rec.KeywordMatches); err != nil {
		return nil, eris.Wrapf(err, "store: unmarshal matches for %s", rec.PostID)
	}
	rec.Currency = model.ParseCurrency(currency)
	return &rec, nil
}
