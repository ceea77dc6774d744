package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/joelkehle/review-refinery/internal/catalog"
	"github.com/joelkehle/review-refinery/internal/config"
	"github.com/joelkehle/review-refinery/internal/normalize"
	"github.com/joelkehle/review-refinery/internal/review"
	"github.com/joelkehle/review-refinery/internal/sentiment"
	"github.com/joelkehle/review-refinery/internal/store"
)

type stubSource struct {
	md  catalog.Metadata
	err error
}

func (s *stubSource) Lookup(ctx context.Context, title, author string) (catalog.Metadata, error) {
	if s.err != nil {
		return catalog.Metadata{}, s.err
	}
	md := s.md
	md.Title = title
	return md, nil
}

func corpus() []review.Review {
	return []review.Review{
		{ID: "r1", Title: "The Hobbit", UserID: "u1", Text: "An absolutely wonderful adventure, loved every page"},
		{ID: "r2", Title: "The Hobbit!", UserID: "u2", Text: "An absolutely wonderful adventure, loved every page"},
		{ID: "r3", Title: "The Hobbit", UserID: "u3", Text: "Terrible pacing, awful ending, hated it"},
		{ID: "r4", Title: "Emma", UserID: "u1", Text: "A quietly brilliant comedy of manners"},
		{ID: "r5", Title: "", UserID: "u4", Text: ""},
	}
}

func TestRunFullPass(t *testing.T) {
	src := &stubSource{md: catalog.Metadata{
		Authors: []string{"some author"}, Categories: []string{"fiction"}, PublishedYear: 1937, Similarity: 0.9,
	}}
	cfg := config.Default()
	cfg.Enrich.Workers = 2
	p := New(cfg, src, nil, nil)

	res, err := p.Run(context.Background(), corpus())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	rep := res.Report

	if rep.ReviewsIngested != 5 || rep.ReviewsSkipped != 1 || rep.ReviewsProcessed != 4 {
		t.Fatalf("counters = %+v", rep)
	}
	// r1 and r2 are identical text under the same normalized title.
	if rep.DuplicatesFound != 1 || rep.DuplicateGroups != 3 {
		t.Errorf("dedup counters = %d found, %d groups", rep.DuplicatesFound, rep.DuplicateGroups)
	}
	if rep.BooksTotal != 2 || rep.BooksEnriched != 2 {
		t.Errorf("book counters = %d total, %d enriched", rep.BooksTotal, rep.BooksEnriched)
	}
	if rep.RunID == "" || rep.CompletedAt.Before(rep.StartedAt) {
		t.Errorf("run identity = %+v", rep)
	}

	for _, r := range res.Reviews {
		if r.GroupID == "" {
			t.Errorf("review %s has no group", r.ID)
		}
		if r.Label == "" {
			t.Errorf("review %s has no label", r.ID)
		}
	}

	hobbit := res.BookAggregates["the hobbit"]
	if hobbit == nil {
		t.Fatal("missing aggregate for the hobbit")
	}
	// Two canonical reviews: one positive, one negative.
	if hobbit.ReviewCount != 2 || hobbit.NegativeCount != 1 {
		t.Errorf("hobbit aggregate = %+v", hobbit)
	}
	if hobbit.Risk == "" || hobbit.Recommendation == "" {
		t.Errorf("hobbit scores missing: %+v", hobbit)
	}

	u1 := res.UserAggregates["u1"]
	if u1 == nil || u1.ReviewCount != 2 {
		t.Fatalf("u1 aggregate = %+v", u1)
	}
	if u1.Segment == "" || u1.DiversityScore == 0 {
		t.Errorf("u1 scores = %+v", u1)
	}

	book := res.Books["the hobbit"]
	if book.Enrichment != review.EnrichmentEnriched || book.PublishedYear != 1937 {
		t.Errorf("book = %+v", book)
	}
	if book.DisplayTitle != "The Hobbit" {
		t.Errorf("display title = %q, want most frequent original", book.DisplayTitle)
	}
}

func TestRunEnrichmentFailureDoesNotAbort(t *testing.T) {
	src := &stubSource{err: catalog.ErrNotFound}
	p := New(config.Default(), src, nil, nil)

	res, err := p.Run(context.Background(), corpus())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Report.BooksEnriched != 0 || res.Report.BooksUnenriched != 2 {
		t.Fatalf("report = %+v", res.Report)
	}
	for title, b := range res.Books {
		if b.Enrichment != review.EnrichmentFailed {
			t.Errorf("%q enrichment = %q", title, b.Enrichment)
		}
	}
}

func TestRunWithoutSourceSkipsEnrichment(t *testing.T) {
	p := New(config.Default(), nil, nil, nil)

	res, err := p.Run(context.Background(), corpus())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for title, b := range res.Books {
		if b.Enrichment != review.EnrichmentPending {
			t.Errorf("%q enrichment = %q, want pending", title, b.Enrichment)
		}
	}
}

func TestRunInvalidConfigIsFatal(t *testing.T) {
	cfg := config.Default()
	cfg.Dedup.Threshold = 2

	_, err := New(cfg, nil, nil, nil).Run(context.Background(), corpus())
	if err == nil {
		t.Fatal("expected config error")
	}
	if StageNameFromError(err) != "config" {
		t.Fatalf("stage = %q, want config", StageNameFromError(err))
	}
}

func TestRunPersistsAndIsIdempotent(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "refinery.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	p := New(config.Default(), nil, st, nil)
	ctx := context.Background()

	if _, err := p.Run(ctx, corpus()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := p.Run(ctx, corpus()); err != nil {
		t.Fatalf("second run: %v", err)
	}

	reviews, err := st.ReviewsByTitle(ctx, "the hobbit")
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(reviews) != 3 {
		t.Fatalf("got %d hobbit reviews after two runs, want 3", len(reviews))
	}

	runs, err := st.Runs(ctx, 10)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d run reports, want 2", len(runs))
	}
}

func TestRunClassifiesNormalizedText(t *testing.T) {
	p := New(config.Default(), nil, nil, nil)

	in := []review.Review{
		{ID: "r1", Title: "Dune", UserID: "u1", Text: "LOVED it!!! Absolutely WONDERFUL."},
	}
	res, err := p.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	scorer := sentiment.NewScorer(sentiment.DefaultConfig())
	norm, _ := normalize.Normalize(in[0].Text)
	wantLabel, wantCompound := scorer.Classify(norm)
	got := res.Reviews[0]
	if got.Label != wantLabel || got.Compound != wantCompound {
		t.Fatalf("classified (%q, %f), want the normalized-text score (%q, %f)",
			got.Label, got.Compound, wantLabel, wantCompound)
	}
}

func TestRunOrderIndependentScores(t *testing.T) {
	p := New(config.Default(), nil, nil, nil)
	ctx := context.Background()

	forward, err := p.Run(ctx, corpus())
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	in := corpus()
	for i, j := 0, len(in)-1; i < j; i, j = i+1, j-1 {
		in[i], in[j] = in[j], in[i]
	}
	reversed, err := p.Run(ctx, in)
	if err != nil {
		t.Fatalf("reversed: %v", err)
	}

	for title, a := range forward.BookAggregates {
		b := reversed.BookAggregates[title]
		if b == nil {
			t.Fatalf("missing %q in reversed run", title)
		}
		if a.ProblemScore != b.ProblemScore || a.ROIEstimate != b.ROIEstimate || a.ReviewCount != b.ReviewCount {
			t.Errorf("%q scores differ: %+v vs %+v", title, a, b)
		}
	}
}
