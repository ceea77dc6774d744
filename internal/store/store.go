// Package store persists the enriched review dataset to SQLite. Writes are
// upserts keyed by natural key (review ID, book title, user ID) so the
// pipeline can re-run against the same database without duplicating rows.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/joelkehle/review-refinery/internal/review"
)

type Store struct {
	db *sqlx.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS reviews (
	review_id       TEXT PRIMARY KEY,
	title           TEXT NOT NULL,
	canonical_title TEXT NOT NULL,
	user_id         TEXT NOT NULL DEFAULT '',
	text            TEXT NOT NULL DEFAULT '',
	normalized_text TEXT NOT NULL DEFAULT '',
	label           TEXT NOT NULL DEFAULT '',
	compound        REAL NOT NULL DEFAULT 0,
	flagged         INTEGER NOT NULL DEFAULT 0,
	severity        TEXT NOT NULL DEFAULT '',
	discrepancy     REAL NOT NULL DEFAULT 0,
	group_id        TEXT NOT NULL DEFAULT '',
	created_at      TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_reviews_canonical_title ON reviews (canonical_title);
CREATE INDEX IF NOT EXISTS idx_reviews_flagged ON reviews (flagged);

CREATE TABLE IF NOT EXISTS books (
	title             TEXT PRIMARY KEY,
	display_title     TEXT NOT NULL DEFAULT '',
	authors           TEXT NOT NULL DEFAULT '[]',
	publisher         TEXT NOT NULL DEFAULT '',
	categories        TEXT NOT NULL DEFAULT '[]',
	published_year    INTEGER NOT NULL DEFAULT 0,
	enrichment        TEXT NOT NULL DEFAULT 'pending',
	enrichment_reason TEXT NOT NULL DEFAULT '',
	matched_title     TEXT NOT NULL DEFAULT '',
	match_similarity  REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS book_aggregates (
	title          TEXT PRIMARY KEY,
	review_count   INTEGER NOT NULL DEFAULT 0,
	positive_count INTEGER NOT NULL DEFAULT 0,
	negative_count INTEGER NOT NULL DEFAULT 0,
	neutral_count  INTEGER NOT NULL DEFAULT 0,
	negative_pct   REAL NOT NULL DEFAULT 0,
	mean_compound  REAL NOT NULL DEFAULT 0,
	problem_score  REAL NOT NULL DEFAULT 0,
	risk           TEXT NOT NULL DEFAULT '',
	roi_estimate   REAL NOT NULL DEFAULT 0,
	recommendation TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS user_aggregates (
	user_id             TEXT PRIMARY KEY,
	review_count        INTEGER NOT NULL DEFAULT 0,
	distinct_labels     INTEGER NOT NULL DEFAULT 0,
	distinct_categories INTEGER NOT NULL DEFAULT 0,
	positive_count      INTEGER NOT NULL DEFAULT 0,
	negative_count      INTEGER NOT NULL DEFAULT 0,
	neutral_count       INTEGER NOT NULL DEFAULT 0,
	mean_compound       REAL NOT NULL DEFAULT 0,
	diversity_score     REAL NOT NULL DEFAULT 0,
	segment             TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS runs (
	run_id            TEXT PRIMARY KEY,
	started_at        TEXT NOT NULL,
	completed_at      TEXT NOT NULL DEFAULT '',
	reviews_ingested  INTEGER NOT NULL DEFAULT 0,
	reviews_skipped   INTEGER NOT NULL DEFAULT 0,
	reviews_processed INTEGER NOT NULL DEFAULT 0,
	duplicate_groups  INTEGER NOT NULL DEFAULT 0,
	duplicates_found  INTEGER NOT NULL DEFAULT 0,
	books_total       INTEGER NOT NULL DEFAULT 0,
	books_enriched    INTEGER NOT NULL DEFAULT 0,
	books_unenriched  INTEGER NOT NULL DEFAULT 0,
	reviews_flagged   INTEGER NOT NULL DEFAULT 0,
	users_aggregated  INTEGER NOT NULL DEFAULT 0
);
`

// Open opens (and creates if missing) the SQLite database at dbPath.
// Use ":memory:" for an ephemeral store.
func Open(dbPath string) (*Store, error) {
	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func timeToString(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func marshalJSON(v any) string {
	if v == nil {
		return "[]"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// UpsertReviews writes the batch inside one transaction. Existing rows with
// the same review ID are fully replaced.
func (s *Store) UpsertReviews(ctx context.Context, reviews []review.Review) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, r := range reviews {
		_, err := tx.ExecContext(ctx, `INSERT INTO reviews
			(review_id, title, canonical_title, user_id, text, normalized_text,
			 label, compound, flagged, severity, discrepancy, group_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(review_id) DO UPDATE SET
				title = excluded.title,
				canonical_title = excluded.canonical_title,
				user_id = excluded.user_id,
				text = excluded.text,
				normalized_text = excluded.normalized_text,
				label = excluded.label,
				compound = excluded.compound,
				flagged = excluded.flagged,
				severity = excluded.severity,
				discrepancy = excluded.discrepancy,
				group_id = excluded.group_id,
				created_at = excluded.created_at`,
			r.ID, r.Title, r.CanonicalTitle, r.UserID, r.Text, r.NormalizedText,
			string(r.Label), r.Compound, boolToInt(r.Flagged), string(r.Severity),
			r.Discrepancy, r.GroupID, timeToString(r.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("upsert review %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

// UpsertBooks writes book records keyed by canonical title.
func (s *Store) UpsertBooks(ctx context.Context, books map[string]*review.BookRecord) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, b := range books {
		_, err := tx.ExecContext(ctx, `INSERT INTO books
			(title, display_title, authors, publisher, categories, published_year,
			 enrichment, enrichment_reason, matched_title, match_similarity)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(title) DO UPDATE SET
				display_title = excluded.display_title,
				authors = excluded.authors,
				publisher = excluded.publisher,
				categories = excluded.categories,
				published_year = excluded.published_year,
				enrichment = excluded.enrichment,
				enrichment_reason = excluded.enrichment_reason,
				matched_title = excluded.matched_title,
				match_similarity = excluded.match_similarity`,
			b.Title, b.DisplayTitle, marshalJSON(b.Authors), b.Publisher,
			marshalJSON(b.Categories), b.PublishedYear, string(b.Enrichment),
			b.EnrichmentReason, b.MatchedTitle, b.MatchSimilarity,
		)
		if err != nil {
			return fmt.Errorf("upsert book %s: %w", b.Title, err)
		}
	}
	return tx.Commit()
}

// UpsertBookAggregates replaces per-book rollups by title.
func (s *Store) UpsertBookAggregates(ctx context.Context, aggs map[string]*review.BookAggregate) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, a := range aggs {
		_, err := tx.ExecContext(ctx, `INSERT INTO book_aggregates
			(title, review_count, positive_count, negative_count, neutral_count,
			 negative_pct, mean_compound, problem_score, risk, roi_estimate, recommendation)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(title) DO UPDATE SET
				review_count = excluded.review_count,
				positive_count = excluded.positive_count,
				negative_count = excluded.negative_count,
				neutral_count = excluded.neutral_count,
				negative_pct = excluded.negative_pct,
				mean_compound = excluded.mean_compound,
				problem_score = excluded.problem_score,
				risk = excluded.risk,
				roi_estimate = excluded.roi_estimate,
				recommendation = excluded.recommendation`,
			a.Title, a.ReviewCount, a.PositiveCount, a.NegativeCount, a.NeutralCount,
			a.NegativePct, a.MeanCompound, a.ProblemScore, a.Risk, a.ROIEstimate, a.Recommendation,
		)
		if err != nil {
			return fmt.Errorf("upsert book aggregate %s: %w", a.Title, err)
		}
	}
	return tx.Commit()
}

// UpsertUserAggregates replaces per-user rollups by user ID.
func (s *Store) UpsertUserAggregates(ctx context.Context, aggs map[string]*review.UserAggregate) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, a := range aggs {
		_, err := tx.ExecContext(ctx, `INSERT INTO user_aggregates
			(user_id, review_count, distinct_labels, distinct_categories,
			 positive_count, negative_count, neutral_count, mean_compound,
			 diversity_score, segment)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET
				review_count = excluded.review_count,
				distinct_labels = excluded.distinct_labels,
				distinct_categories = excluded.distinct_categories,
				positive_count = excluded.positive_count,
				negative_count = excluded.negative_count,
				neutral_count = excluded.neutral_count,
				mean_compound = excluded.mean_compound,
				diversity_score = excluded.diversity_score,
				segment = excluded.segment`,
			a.UserID, a.ReviewCount, a.DistinctLabels, a.DistinctCategories,
			a.PositiveCount, a.NegativeCount, a.NeutralCount, a.MeanCompound,
			a.DiversityScore, a.Segment,
		)
		if err != nil {
			return fmt.Errorf("upsert user aggregate %s: %w", a.UserID, err)
		}
	}
	return tx.Commit()
}

// SaveRun records a pipeline run report.
func (s *Store) SaveRun(ctx context.Context, rep review.RunReport) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO runs
		(run_id, started_at, completed_at, reviews_ingested, reviews_skipped,
		 reviews_processed, duplicate_groups, duplicates_found, books_total,
		 books_enriched, books_unenriched, reviews_flagged, users_aggregated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rep.RunID, timeToString(rep.StartedAt), timeToString(rep.CompletedAt),
		rep.ReviewsIngested, rep.ReviewsSkipped, rep.ReviewsProcessed,
		rep.DuplicateGroups, rep.DuplicatesFound, rep.BooksTotal,
		rep.BooksEnriched, rep.BooksUnenriched, rep.ReviewsFlagged, rep.UsersAggregated,
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", rep.RunID, err)
	}
	return nil
}

func unmarshalList(s string) []string {
	if s == "" || s == "[]" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

func scanBook(row *sqlx.Rows) (review.BookRecord, error) {
	var b review.BookRecord
	var authors, categories, enrichment string
	err := row.Scan(&b.Title, &b.DisplayTitle, &authors, &b.Publisher, &categories,
		&b.PublishedYear, &enrichment, &b.EnrichmentReason, &b.MatchedTitle, &b.MatchSimilarity)
	if err != nil {
		return b, err
	}
	b.Authors = unmarshalList(authors)
	b.Categories = unmarshalList(categories)
	b.Enrichment = review.EnrichmentStatus(enrichment)
	return b, nil
}

// GetBook fetches one book record; sql.ErrNoRows when absent.
func (s *Store) GetBook(ctx context.Context, title string) (review.BookRecord, error) {
	rows, err := s.db.QueryxContext(ctx, `SELECT title, display_title, authors, publisher,
		categories, published_year, enrichment, enrichment_reason, matched_title, match_similarity
		FROM books WHERE title = ?`, title)
	if err != nil {
		return review.BookRecord{}, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return review.BookRecord{}, err
		}
		return review.BookRecord{}, sql.ErrNoRows
	}
	return scanBook(rows)
}
