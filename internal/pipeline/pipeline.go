// Package pipeline runs the full refinement pass over a review corpus:
// normalize, deduplicate, enrich, classify sentiment, aggregate, score,
// persist. Each stage consumes the previous stage's output; no stage reaches
// back into shared mutable state.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joelkehle/review-refinery/internal/config"
	"github.com/joelkehle/review-refinery/internal/dedup"
	"github.com/joelkehle/review-refinery/internal/enrich"
	"github.com/joelkehle/review-refinery/internal/normalize"
	"github.com/joelkehle/review-refinery/internal/review"
	"github.com/joelkehle/review-refinery/internal/scoring"
	"github.com/joelkehle/review-refinery/internal/sentiment"
	"github.com/joelkehle/review-refinery/internal/store"
)

type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func StageNameFromError(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return "pipeline"
}

type StageProgressFn func(stage, message string)

type Pipeline struct {
	cfg    config.Config
	source enrich.Source
	store  *store.Store
	log    *slog.Logger
}

// New assembles a pipeline. source may be nil to skip enrichment (books stay
// pending); st may be nil to skip persistence.
func New(cfg config.Config, source enrich.Source, st *store.Store, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{cfg: cfg, source: source, store: st, log: log}
}

// Result is everything one run produced, returned alongside persistence so
// callers can render reports without a read-back.
type Result struct {
	Report         review.RunReport
	Reviews        []review.Review
	Groups         []review.DuplicateGroup
	Books          map[string]*review.BookRecord
	BookAggregates map[string]*review.BookAggregate
	UserAggregates map[string]*review.UserAggregate
}

func (p *Pipeline) Run(ctx context.Context, reviews []review.Review) (Result, error) {
	return p.runWithProgress(ctx, reviews, nil)
}

func (p *Pipeline) RunWithProgress(ctx context.Context, reviews []review.Review, progress StageProgressFn) (Result, error) {
	return p.runWithProgress(ctx, reviews, progress)
}

func (p *Pipeline) runWithProgress(ctx context.Context, reviews []review.Review, progress StageProgressFn) (Result, error) {
	res := Result{}
	res.Report.RunID = uuid.NewString()
	res.Report.StartedAt = time.Now().UTC()
	res.Report.ReviewsIngested = len(reviews)

	if err := p.cfg.Validate(); err != nil {
		return res, &StageError{Stage: "config", Err: err}
	}

	emit(progress, "normalize", fmt.Sprintf("Normalizing %d reviews...", len(reviews)))
	res.Reviews = p.normalizeStage(reviews, &res.Report)

	emit(progress, "dedup", "Partitioning duplicate groups...")
	engine := dedup.NewEngine(dedup.Config{
		Threshold:      p.cfg.Dedup.Threshold,
		MaxFeatures:    p.cfg.Dedup.MaxFeatures,
		SampleFraction: p.cfg.Dedup.SampleFraction,
	})
	res.Groups = engine.Partition(res.Reviews)
	groupOf := map[string]string{}
	for _, g := range res.Groups {
		for _, id := range g.Members {
			groupOf[id] = g.ID
		}
	}
	for i := range res.Reviews {
		res.Reviews[i].GroupID = groupOf[res.Reviews[i].ID]
	}
	res.Report.DuplicateGroups = len(res.Groups)
	res.Report.DuplicatesFound = res.Report.ReviewsProcessed - len(res.Groups)
	emit(progress, "dedup", fmt.Sprintf("%d groups, %d duplicates collapsed", len(res.Groups), res.Report.DuplicatesFound))

	res.Books = p.buildBooks(res.Reviews)
	res.Report.BooksTotal = len(res.Books)

	if p.source != nil {
		emit(progress, "enrich", fmt.Sprintf("Enriching %d titles...", len(res.Books)))
		dispatcher := enrich.NewDispatcher(p.source, enrich.Config{
			Workers:        p.cfg.Enrich.Workers,
			MaxRetries:     p.cfg.Enrich.MaxRetries,
			RequestTimeout: p.cfg.Enrich.RequestTimeout(),
			GlobalDeadline: p.cfg.Enrich.GlobalDeadline(),
		}, p.log)
		rep := dispatcher.Run(ctx, res.Books)
		res.Report.BooksEnriched = rep.Enriched
		res.Report.BooksUnenriched = rep.Unenriched
		emit(progress, "enrich", fmt.Sprintf("%d enriched, %d unenriched", rep.Enriched, rep.Unenriched))
	}

	emit(progress, "sentiment", "Classifying sentiment...")
	scorer := sentiment.NewScorer(sentiment.Config{
		PositiveThreshold: p.cfg.Sentiment.PositiveThreshold,
		NegativeThreshold: p.cfg.Sentiment.NegativeThreshold,
		HighBand:          p.cfg.Sentiment.HighBand,
		MediumBand:        p.cfg.Sentiment.MediumBand,
	})
	for i := range res.Reviews {
		r := &res.Reviews[i]
		if r.Label == "" {
			r.Label, r.Compound = scorer.Classify(r.NormalizedText)
		}
		d := scorer.Validate(r.Label, r.Compound)
		r.Flagged = d.Flagged
		r.Severity = d.Severity
		r.Discrepancy = d.Score
		if d.Flagged {
			res.Report.ReviewsFlagged++
		}
	}

	emit(progress, "score", "Computing aggregates and scores...")
	p.scoreStage(&res)
	res.Report.UsersAggregated = len(res.UserAggregates)

	res.Report.CompletedAt = time.Now().UTC()
	if p.store != nil {
		emit(progress, "persist", "Persisting dataset...")
		if err := p.persist(ctx, &res); err != nil {
			return res, &StageError{Stage: "persist", Err: err}
		}
	}
	return res, nil
}

func emit(progress StageProgressFn, stage, message string) {
	if progress != nil {
		progress(stage, message)
	}
}

func (p *Pipeline) normalizeStage(reviews []review.Review, rep *review.RunReport) []review.Review {
	out := make([]review.Review, 0, len(reviews))
	for _, r := range reviews {
		norm, _ := normalize.Normalize(r.Text)
		r.NormalizedText = norm
		if title, ok := normalize.Normalize(r.Title); ok {
			r.CanonicalTitle = title
		}
		if r.CanonicalTitle == "" && r.NormalizedText == "" {
			rep.ReviewsSkipped++
			continue
		}
		out = append(out, r)
	}
	rep.ReviewsProcessed = len(out)
	return out
}

func (p *Pipeline) buildBooks(reviews []review.Review) map[string]*review.BookRecord {
	titles := make([]string, 0, len(reviews))
	for _, r := range reviews {
		if r.CanonicalTitle != "" {
			titles = append(titles, r.Title)
		}
	}
	display := normalize.CanonicalMapping(titles)

	books := map[string]*review.BookRecord{}
	for _, r := range reviews {
		if r.CanonicalTitle == "" {
			continue
		}
		if _, ok := books[r.CanonicalTitle]; ok {
			continue
		}
		books[r.CanonicalTitle] = &review.BookRecord{
			Title:        r.CanonicalTitle,
			DisplayTitle: display[r.CanonicalTitle],
			Enrichment:   review.EnrichmentPending,
		}
	}
	return books
}

func (p *Pipeline) scoreStage(res *Result) {
	res.BookAggregates = review.BuildBookAggregates(res.Reviews, res.Groups, res.Books)
	res.UserAggregates = review.BuildUserAggregates(res.Reviews, res.Groups, res.Books)

	buckets := scoring.RiskBuckets{High: p.cfg.Scoring.RiskHigh, Medium: p.cfg.Scoring.RiskMedium}
	totalBooks := len(res.BookAggregates)
	for _, a := range res.BookAggregates {
		a.ProblemScore = scoring.ProblemScore(*a)
		a.Risk = string(buckets.Classify(a.ProblemScore))
		a.ROIEstimate = scoring.ROIEstimate(*a, totalBooks)
		a.Recommendation = string(scoring.Recommend(*a))
	}
	for _, u := range res.UserAggregates {
		u.DiversityScore = scoring.DiversityScore(*u)
		u.Segment = string(scoring.ClassifySegment(*u))
	}
}

func (p *Pipeline) persist(ctx context.Context, res *Result) error {
	if err := p.store.UpsertReviews(ctx, res.Reviews); err != nil {
		return err
	}
	if err := p.store.UpsertBooks(ctx, res.Books); err != nil {
		return err
	}
	if err := p.store.UpsertBookAggregates(ctx, res.BookAggregates); err != nil {
		return err
	}
	if err := p.store.UpsertUserAggregates(ctx, res.UserAggregates); err != nil {
		return err
	}
	return p.store.SaveRun(ctx, res.Report)
}
