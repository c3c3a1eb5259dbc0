package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/hacksignal/hacksignal/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME,
	summary     TEXT
);

CREATE TABLE IF NOT EXISTS posts (
	id          TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL REFERENCES runs(id),
	payload     TEXT NOT NULL,
	received_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS records (
	post_id           TEXT PRIMARY KEY,
	run_id            TEXT NOT NULL REFERENCES runs(id),
	score             REAL NOT NULL,
	account_followers INTEGER NOT NULL,
	follower_fit      INTEGER NOT NULL,
	keyword_matches   TEXT NOT NULL,
	prize_value       REAL,
	duration_hours    REAL,
	roi_score         REAL,
	currency          TEXT NOT NULL,
	deadline          DATETIME,
	source_url        TEXT NOT NULL DEFAULT '',
	updated_at        DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS decisions (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	post_id    TEXT NOT NULL,
	channel    TEXT NOT NULL,
	message    TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS digest_entries (
	day       TEXT NOT NULL,
	post_id   TEXT NOT NULL,
	message   TEXT NOT NULL,
	queued_at DATETIME NOT NULL,
	PRIMARY KEY (day, post_id)
);

CREATE INDEX IF NOT EXISTS idx_records_score ON records(score DESC);
CREATE INDEX IF NOT EXISTS idx_records_run_id ON records(run_id);
CREATE INDEX IF NOT EXISTS idx_decisions_run_id ON decisions(run_id);
CREATE INDEX IF NOT EXISTS idx_posts_run_id ON posts(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context) (*Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at) VALUES (?, ?)`,
		id, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return &Run{ID: id, StartedAt: now}, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, summary RunSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal summary")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, summary = ? WHERE id = ?`,
		time.Now().UTC(), string(summaryJSON), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	var (
		run         Run
		finishedAt  sql.NullTime
		summaryJSON sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, summary FROM runs WHERE id = ?`,
		runID,
	).Scan(&run.ID, &run.StartedAt, &finishedAt, &summaryJSON)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}

	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}
	if summaryJSON.Valid && summaryJSON.String != "" {
		if err := json.Unmarshal([]byte(summaryJSON.String), &run.Summary); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal summary for run %s", runID)
		}
	}
	return &run, nil
}

func (s *SQLiteStore) SavePost(ctx context.Context, runID string, post model.RawPost) error {
	payload, err := json.Marshal(post)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal post")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO posts (id, run_id, payload) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET run_id = excluded.run_id, payload = excluded.payload`,
		post.ID, runID, string(payload),
	)
	return eris.Wrapf(err, "sqlite: save post %s", post.ID)
}

func (s *SQLiteStore) GetPost(ctx context.Context, postID string) (*model.RawPost, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM posts WHERE id = ?`, postID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get post %s", postID)
	}

	var post model.RawPost
	if err := json.Unmarshal([]byte(payload), &post); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal post %s", postID)
	}
	return &post, nil
}

func (s *SQLiteStore) SaveRecords(ctx context.Context, runID string, records []model.ProcessedRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save records")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records
			(post_id, run_id, score, account_followers, follower_fit, keyword_matches,
			 prize_value, duration_hours, roi_score, currency, deadline, source_url, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (post_id) DO UPDATE SET
			run_id = excluded.run_id,
			score = excluded.score,
			account_followers = excluded.account_followers,
			follower_fit = excluded.follower_fit,
			keyword_matches = excluded.keyword_matches,
			prize_value = excluded.prize_value,
			duration_hours = excluded.duration_hours,
			roi_score = excluded.roi_score,
			currency = excluded.currency,
			deadline = excluded.deadline,
			source_url = excluded.source_url,
			updated_at = excluded.updated_at`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare save records")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, rec := range records {
		matches, err := json.Marshal(rec.KeywordMatches)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal matches for %s", rec.PostID)
		}
		_, err = stmt.ExecContext(ctx,
			rec.PostID, runID, rec.Score, rec.AccountFollowers, rec.FollowerFit, string(matches),
			rec.PrizeValue, rec.DurationHours, rec.ROIScore, string(rec.Currency), rec.Deadline,
			rec.SourceURL, now,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: save record %s", rec.PostID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit save records")
}

const recordColumns = `post_id, score, account_followers, follower_fit, keyword_matches,
	prize_value, duration_hours, roi_score, currency, deadline, source_url`

func (s *SQLiteStore) GetRecord(ctx context.Context, postID string) (*model.ProcessedRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE post_id = ?`, postID)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get record %s", postID)
	}
	return rec, nil
}

func (s *SQLiteStore) ListRecords(ctx context.Context, filter RecordFilter) ([]model.ProcessedRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE score >= ? ORDER BY score DESC, post_id`
	args := []any{filter.MinScore}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list records")
	}
	defer rows.Close()

	var records []model.ProcessedRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		records = append(records, *rec)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: list records iterate")
}

func (s *SQLiteStore) TopRecords(ctx context.Context, limit int) ([]model.ProcessedRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.ListRecords(ctx, RecordFilter{Limit: limit})
}

func (s *SQLiteStore) SaveDecision(ctx context.Context, runID string, decision model.AlertDecision) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO decisions (id, run_id, post_id, channel, message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), runID, decision.PostID, string(decision.Channel),
		decision.Message, decision.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: save decision for %s", decision.PostID)
}

func (s *SQLiteStore) ListDecisions(ctx context.Context, runID string) ([]model.AlertDecision, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT post_id, channel, message, created_at FROM decisions
		 WHERE run_id = ? ORDER BY created_at, post_id`, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list decisions for run %s", runID)
	}
	defer rows.Close()

	var decisions []model.AlertDecision
	for rows.Next() {
		var (
			d       model.AlertDecision
			channel string
		)
		if err := rows.Scan(&d.PostID, &channel, &d.Message, &d.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan decision")
		}
		d.Channel = model.ChannelClass(channel)
		decisions = append(decisions, d)
	}
	return decisions, eris.Wrap(rows.Err(), "sqlite: list decisions iterate")
}

func (s *SQLiteStore) AddDigestEntry(ctx context.Context, day, postID, message string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO digest_entries (day, post_id, message, queued_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (day, post_id) DO NOTHING`,
		day, postID, message, time.Now().UTC(),
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: add digest entry %s/%s", day, postID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: digest rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) ListDigestEntries(ctx context.Context, day string) ([]DigestEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT day, post_id, message, queued_at FROM digest_entries
		 WHERE day = ? ORDER BY queued_at, post_id`, day)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list digest entries for %s", day)
	}
	defer rows.Close()

	var entries []DigestEntry
	for rows.Next() {
		var e DigestEntry
		if err := rows.Scan(&e.Day, &e.PostID, &e.Message, &e.QueuedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan digest entry")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list digest entries iterate")
}

func (s *SQLiteStore) ClearDigestEntries(ctx context.Context, day string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM digest_entries WHERE day = ?`, day)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: clear digest entries for %s", day)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: clear digest rows affected")
	}
	return int(n), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*model.ProcessedRecord, error) {
	var (
		rec         model.ProcessedRecord
		matchesJSON string
		currency    string
		prize       sql.NullFloat64
		duration    sql.NullFloat64
		roi         sql.NullFloat64
		deadline    sql.NullTime
	)
	err := row.Scan(&rec.PostID, &rec.Score, &rec.AccountFollowers, &rec.FollowerFit,
		&matchesJSON, &prize, &duration, &roi, &currency, &deadline, &rec.SourceURL)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(matchesJSON), &rec.KeywordMatches); err != nil {
		return nil, eris.Wrapf(err, "store: unmarshal matches for %s", rec.PostID)
	}
	rec.Currency = model.ParseCurrency(currency)
	if prize.Valid {
		v := prize.Float64
		rec.PrizeValue = &v
	}
	if duration.Valid {
		v := duration.Float64
		rec.DurationHours = &v
	}
	if roi.Valid {
		v := roi.Float64
		rec.ROIScore = &v
	}
	if deadline.Valid {
		t := deadline.Time
		rec.Deadline = &t
	}
	return &rec, nil
}

func checkRowsAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: rows affected for %s %s", kind, id)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
