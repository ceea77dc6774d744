package store

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/joelkehle/review-refinery/internal/review"
)

// The reporting layer reads through these queries only. Reads never trigger
// recomputation; they see whatever the last completed run persisted.

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// ProblematicBooks returns book aggregates ranked by problem score, highest
// first, capped at limit. minScore filters out the noise floor.
func (s *Store) ProblematicBooks(ctx context.Context, minScore float64, limit int) ([]review.BookAggregate, error) {
	if limit <= 0 {
		limit = 20
	}
	query, args, err := qb.
		Select("title", "review_count", "positive_count", "negative_count", "neutral_count",
			"negative_pct", "mean_compound", "problem_score", "risk", "roi_estimate", "recommendation").
		From("book_aggregates").
		Where(sq.GtOrEq{"problem_score": minScore}).
		OrderBy("problem_score DESC", "title ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []review.BookAggregate
	for rows.Next() {
		var a review.BookAggregate
		if err := rows.Scan(&a.Title, &a.ReviewCount, &a.PositiveCount, &a.NegativeCount,
			&a.NeutralCount, &a.NegativePct, &a.MeanCompound, &a.ProblemScore,
			&a.Risk, &a.ROIEstimate, &a.Recommendation); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// TopROIBooks returns book aggregates ranked by ROI estimate, highest first.
func (s *Store) TopROIBooks(ctx context.Context, limit int) ([]review.BookAggregate, error) {
	if limit <= 0 {
		limit = 20
	}
	query, args, err := qb.
		Select("title", "review_count", "positive_count", "negative_count", "neutral_count",
			"negative_pct", "mean_compound", "problem_score", "risk", "roi_estimate", "recommendation").
		From("book_aggregates").
		OrderBy("roi_estimate DESC", "title ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []review.BookAggregate
	for rows.Next() {
		var a review.BookAggregate
		if err := rows.Scan(&a.Title, &a.ReviewCount, &a.PositiveCount, &a.NegativeCount,
			&a.NeutralCount, &a.NegativePct, &a.MeanCompound, &a.ProblemScore,
			&a.Risk, &a.ROIEstimate, &a.Recommendation); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// DiverseUsers returns user aggregates ranked by diversity score.
func (s *Store) DiverseUsers(ctx context.Context, limit int) ([]review.UserAggregate, error) {
	if limit <= 0 {
		limit = 20
	}
	query, args, err := qb.
		Select("user_id", "review_count", "distinct_labels", "distinct_categories",
			"positive_count", "negative_count", "neutral_count", "mean_compound",
			"diversity_score", "segment").
		From("user_aggregates").
		OrderBy("diversity_score DESC", "user_id ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []review.UserAggregate
	for rows.Next() {
		var a review.UserAggregate
		if err := rows.Scan(&a.UserID, &a.ReviewCount, &a.DistinctLabels, &a.DistinctCategories,
			&a.PositiveCount, &a.NegativeCount, &a.NeutralCount, &a.MeanCompound,
			&a.DiversityScore, &a.Segment); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// FlaggedReviews returns reviews whose label disagrees with their compound
// score. severity narrows the result when non-empty.
func (s *Store) FlaggedReviews(ctx context.Context, severity review.Severity, limit int) ([]review.Review, error) {
	if limit <= 0 {
		limit = 100
	}
	b := qb.
		Select("review_id", "title", "canonical_title", "user_id", "text", "normalized_text",
			"label", "compound", "flagged", "severity", "discrepancy", "group_id", "created_at").
		From("reviews").
		Where(sq.Eq{"flagged": 1}).
		OrderBy("discrepancy DESC", "review_id ASC").
		Limit(uint64(limit))
	if severity != review.SeverityNone {
		b = b.Where(sq.Eq{"severity": string(severity)})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []review.Review
	for rows.Next() {
		var r review.Review
		var label, severity, createdAt string
		var flagged int
		if err := rows.Scan(&r.ID, &r.Title, &r.CanonicalTitle, &r.UserID, &r.Text,
			&r.NormalizedText, &label, &r.Compound, &flagged, &severity,
			&r.Discrepancy, &r.GroupID, &createdAt); err != nil {
			return nil, err
		}
		r.Label = review.Label(label)
		r.Severity = review.Severity(severity)
		r.Flagged = flagged != 0
		r.CreatedAt = parseTime(createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ReviewsByTitle returns every stored review for a canonical title.
func (s *Store) ReviewsByTitle(ctx context.Context, canonicalTitle string) ([]review.Review, error) {
	query, args, err := qb.
		Select("review_id", "title", "canonical_title", "user_id", "text", "normalized_text",
			"label", "compound", "flagged", "severity", "discrepancy", "group_id", "created_at").
		From("reviews").
		Where(sq.Eq{"canonical_title": canonicalTitle}).
		OrderBy("review_id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []review.Review
	for rows.Next() {
		var r review.Review
		var label, severity, createdAt string
		var flagged int
		if err := rows.Scan(&r.ID, &r.Title, &r.CanonicalTitle, &r.UserID, &r.Text,
			&r.NormalizedText, &label, &r.Compound, &flagged, &severity,
			&r.Discrepancy, &r.GroupID, &createdAt); err != nil {
			return nil, err
		}
		r.Label = review.Label(label)
		r.Severity = review.Severity(severity)
		r.Flagged = flagged != 0
		r.CreatedAt = parseTime(createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// BookAggregate fetches a single book's rollup; nil when absent.
func (s *Store) BookAggregate(ctx context.Context, title string) (*review.BookAggregate, error) {
	query, args, err := qb.
		Select("title", "review_count", "positive_count", "negative_count", "neutral_count",
			"negative_pct", "mean_compound", "problem_score", "risk", "roi_estimate", "recommendation").
		From("book_aggregates").
		Where(sq.Eq{"title": title}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	var a review.BookAggregate
	if err := rows.Scan(&a.Title, &a.ReviewCount, &a.PositiveCount, &a.NegativeCount,
		&a.NeutralCount, &a.NegativePct, &a.MeanCompound, &a.ProblemScore,
		&a.Risk, &a.ROIEstimate, &a.Recommendation); err != nil {
		return nil, err
	}
	return &a, nil
}

// Runs returns run reports, most recent first.
func (s *Store) Runs(ctx context.Context, limit int) ([]review.RunReport, error) {
	if limit <= 0 {
		limit = 20
	}
	query, args, err := qb.
		Select("run_id", "started_at", "completed_at", "reviews_ingested", "reviews_skipped",
			"reviews_processed", "duplicate_groups", "duplicates_found", "books_total",
			"books_enriched", "books_unenriched", "reviews_flagged", "users_aggregated").
		From("runs").
		OrderBy("started_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []review.RunReport
	for rows.Next() {
		var rep review.RunReport
		var startedAt, completedAt string
		if err := rows.Scan(&rep.RunID, &startedAt, &completedAt, &rep.ReviewsIngested,
			&rep.ReviewsSkipped, &rep.ReviewsProcessed, &rep.DuplicateGroups,
			&rep.DuplicatesFound, &rep.BooksTotal, &rep.BooksEnriched,
			&rep.BooksUnenriched, &rep.ReviewsFlagged, &rep.UsersAggregated); err != nil {
			return nil, err
		}
		rep.StartedAt = parseTime(startedAt)
		rep.CompletedAt = parseTime(completedAt)
		out = append(out, rep)
	}
	return out, rows.Err()
}
