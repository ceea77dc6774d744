// Package enrich fetches catalog metadata for every distinct book title
// through a bounded worker pool. One title failing, timing out or missing
// from the catalog never blocks or fails the others.
package enrich

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"

	"github.com/joelkehle/review-refinery/internal/catalog"
	"github.com/joelkehle/review-refinery/internal/normalize"
	"github.com/joelkehle/review-refinery/internal/review"
)

const (
	DefaultWorkers        = 40
	DefaultMaxRetries     = 2
	DefaultRequestTimeout = 10 * time.Second
)

// Source is the metadata lookup the dispatcher fans out over. Lookup returns
// catalog.ErrNotFound for the terminal no-match outcome; any error for which
// catalog.Transient reports true is retried.
type Source interface {
	Lookup(ctx context.Context, title, author string) (catalog.Metadata, error)
}

type Config struct {
	// Workers bounds concurrent outstanding lookups.
	Workers int
	// MaxRetries is the retry ceiling for transient failures, on top of the
	// initial attempt.
	MaxRetries int
	// RequestTimeout applies per lookup attempt.
	RequestTimeout time.Duration
	// GlobalDeadline, when positive, bounds the whole enrichment stage;
	// titles still pending at the deadline are marked unenriched.
	GlobalDeadline time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	return c
}

type Dispatcher struct {
	src Source
	cfg Config
	log *slog.Logger
}

func NewDispatcher(src Source, cfg Config, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{src: src, cfg: cfg.withDefaults(), log: log}
}

// Report summarizes one enrichment pass.
type Report struct {
	Enriched   int
	Unenriched int
	Attempts   int
}

// Run enriches every book in books in place. Workers are keyed by title, so
// no two goroutines ever touch the same record. Completion order is
// irrelevant: each merge applies independently. Run only fails on context
// cancellation from outside; per-title failures degrade to the unenriched
// state instead.
func (d *Dispatcher) Run(ctx context.Context, books map[string]*review.BookRecord) Report {
	if d.cfg.GlobalDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.GlobalDeadline)
		defer cancel()
	}

	titles := make([]string, 0, len(books))
	for t := range books {
		titles = append(titles, t)
	}
	sort.Strings(titles)

	results := make([]int, len(titles)) // attempts per title, for the report
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Workers)
	for i, title := range titles {
		g.Go(func() error {
			rec := books[title]
			if gctx.Err() != nil {
				markUnenriched(rec, "deadline exceeded before lookup")
				return nil
			}
			attempts, err := d.enrichOne(gctx, rec)
			results[i] = attempts
			if err != nil {
				markUnenriched(rec, err.Error())
			}
			return nil
		})
	}
	g.Wait()

	rep := Report{}
	for i := range titles {
		rep.Attempts += results[i]
		switch books[titles[i]].Enrichment {
		case review.EnrichmentEnriched:
			rep.Enriched++
		default:
			rep.Unenriched++
		}
	}
	return rep
}

func (d *Dispatcher) enrichOne(ctx context.Context, rec *review.BookRecord) (int, error) {
	author := ""
	if len(rec.Authors) > 0 {
		author = rec.Authors[0]
	}
	title := rec.DisplayTitle
	if title == "" {
		title = rec.Title
	}

	attempts := 0
	op := func() (catalog.Metadata, error) {
		attempts++
		reqCtx, cancel := context.WithTimeout(ctx, d.cfg.RequestTimeout)
		defer cancel()
		md, err := d.src.Lookup(reqCtx, title, author)
		if err == nil {
			return md, nil
		}
		if errors.Is(err, catalog.ErrNotFound) || !catalog.Transient(err) {
			return catalog.Metadata{}, backoff.Permanent(err)
		}
		return catalog.Metadata{}, err
	}

	md, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(d.cfg.MaxRetries+1)),
	)
	if err != nil {
		d.log.Debug("enrichment failed", "title", rec.Title, "attempts", attempts, "err", err)
		return attempts, err
	}
	Merge(rec, md)
	return attempts, nil
}

func markUnenriched(rec *review.BookRecord, reason string) {
	rec.Enrichment = review.EnrichmentFailed
	rec.EnrichmentReason = reason
}

// Merge applies fetched metadata onto a book record. Only fields the
// response actually provides are written; an empty response field leaves the
// prior value untouched, so re-running enrichment is safe.
func Merge(rec *review.BookRecord, md catalog.Metadata) {
	if len(md.Authors) > 0 {
		var authors []string
		for _, a := range md.Authors {
			authors = append(authors, normalize.ParseList(a)...)
		}
		if len(authors) > 0 {
			rec.Authors = dedupSorted(authors)
		}
	}
	if md.Publisher != "" {
		rec.Publisher = md.Publisher
	}
	if len(md.Categories) > 0 {
		var cats []string
		for _, c := range md.Categories {
			cats = append(cats, normalize.ParseList(c)...)
		}
		if len(cats) > 0 {
			rec.Categories = dedupSorted(cats)
		}
	}
	if md.PublishedYear > 0 {
		rec.PublishedYear = md.PublishedYear
	}
	rec.Enrichment = review.EnrichmentEnriched
	rec.EnrichmentReason = ""
	rec.MatchedTitle = md.Title
	rec.MatchSimilarity = md.Similarity
}

func dedupSorted(in []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, v := range in {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
