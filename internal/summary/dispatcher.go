// Package summary turns a book's reviews into an executive summary. Reviews
// are partitioned by polarity label, capped to a bounded sample per bucket,
// and each non-empty bucket is handed to a summarization collaborator. A
// failed bucket degrades to an absent summary; it never blocks the book's
// other buckets or any other book.
package summary

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/joelkehle/review-refinery/internal/review"
	"github.com/joelkehle/review-refinery/internal/scoring"
)

const (
	DefaultMaxSamples     = 8
	DefaultMaxSampleChars = 200
	DefaultWorkers        = 4
	DefaultRequestTimeout = 60 * time.Second
)

type Config struct {
	// MaxSamples caps how many review excerpts one bucket sends out.
	MaxSamples int
	// MaxSampleChars truncates each excerpt to bound request size.
	MaxSampleChars int
	// Workers bounds concurrent summarization requests across books.
	Workers int
	// RequestTimeout applies per bucket request.
	RequestTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxSamples <= 0 {
		c.MaxSamples = DefaultMaxSamples
	}
	if c.MaxSampleChars <= 0 {
		c.MaxSampleChars = DefaultMaxSampleChars
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	return c
}

// Bucket is one polarity slice of a book's reviews, already capped.
type Bucket struct {
	Label       review.Label
	Samples     []string
	ReviewCount int
}

// BucketSummary is the outcome for one bucket. Absent is true when the
// collaborator failed for this bucket; Reason records why.
type BucketSummary struct {
	Label       review.Label
	Text        string
	ReviewCount int
	SampleCount int
	Absent      bool
	Reason      string
}

// ExecutiveSummary aggregates the per-bucket summaries for one book.
type ExecutiveSummary struct {
	Title       string
	Buckets     []BucketSummary
	Insights    []string
	GeneratedAt time.Time
}

// bucketOrder fixes the presentation order of polarity buckets.
var bucketOrder = []review.Label{review.LabelPositive, review.LabelNegative, review.LabelNeutral}

// BuildBuckets partitions reviews by label and caps each bucket. Only
// canonical reviews count; duplicates would skew the sample toward whatever
// got copy-pasted most. Empty buckets are omitted entirely.
func BuildBuckets(reviews []review.Review, cfg Config) []Bucket {
	cfg = cfg.withDefaults()
	byLabel := map[review.Label][]string{}
	counts := map[review.Label]int{}
	for _, r := range reviews {
		if r.Label == "" || (r.GroupID != "" && r.GroupID != r.ID) {
			continue
		}
		counts[r.Label]++
		if len(byLabel[r.Label]) >= cfg.MaxSamples {
			continue
		}
		text := truncateRunes(r.Text, cfg.MaxSampleChars)
		if text == "" {
			continue
		}
		byLabel[r.Label] = append(byLabel[r.Label], text)
	}

	var out []Bucket
	for _, label := range bucketOrder {
		if len(byLabel[label]) == 0 {
			continue
		}
		out = append(out, Bucket{Label: label, Samples: byLabel[label], ReviewCount: counts[label]})
	}
	return out
}

// truncateRunes cuts s to at most max bytes without splitting a rune.
func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

type Dispatcher struct {
	sum Summarizer
	cfg Config
	log *slog.Logger
}

func NewDispatcher(sum Summarizer, cfg Config, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{sum: sum, cfg: cfg.withDefaults(), log: log}
}

// SummarizeBook builds and dispatches the buckets for a single book. Buckets
// run sequentially within one book; cross-book parallelism comes from
// SummarizeAll.
func (d *Dispatcher) SummarizeBook(ctx context.Context, agg *review.BookAggregate, reviews []review.Review) ExecutiveSummary {
	es := ExecutiveSummary{Title: agg.Title, GeneratedAt: time.Now().UTC()}
	for _, b := range BuildBuckets(reviews, d.cfg) {
		bs := BucketSummary{Label: b.Label, ReviewCount: b.ReviewCount, SampleCount: len(b.Samples)}
		reqCtx, cancel := context.WithTimeout(ctx, d.cfg.RequestTimeout)
		text, err := d.sum.Summarize(reqCtx, b.Label, b.Samples)
		cancel()
		if err != nil {
			d.log.Warn("bucket summarization failed", "title", agg.Title, "label", b.Label, "err", err)
			bs.Absent = true
			bs.Reason = err.Error()
		} else {
			bs.Text = text
		}
		es.Buckets = append(es.Buckets, bs)
	}
	es.Insights = Insights(agg)
	return es
}

// SummarizeAll summarizes every book in aggs over a bounded pool. One book's
// result never blocks another's; results come back keyed by title.
func (d *Dispatcher) SummarizeAll(ctx context.Context, aggs map[string]*review.BookAggregate, reviewsByTitle map[string][]review.Review) map[string]ExecutiveSummary {
	titles := make([]string, 0, len(aggs))
	for t := range aggs {
		titles = append(titles, t)
	}
	sort.Strings(titles)

	results := make([]ExecutiveSummary, len(titles))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Workers)
	for i, title := range titles {
		g.Go(func() error {
			results[i] = d.SummarizeBook(gctx, aggs[title], reviewsByTitle[title])
			return nil
		})
	}
	g.Wait()

	out := make(map[string]ExecutiveSummary, len(titles))
	for i, title := range titles {
		out[title] = results[i]
	}
	return out
}

// Insights derives the one-line observations the summary leads with. Pure
// function of the aggregate, so it survives a summarization outage.
func Insights(agg *review.BookAggregate) []string {
	if agg == nil || agg.ReviewCount == 0 {
		return nil
	}
	var out []string
	out = append(out, fmt.Sprintf("%d reviews, mean compound %.2f", agg.ReviewCount, agg.MeanCompound))
	if agg.NegativePct >= 50 {
		out = append(out, fmt.Sprintf("negative reviews dominate at %.0f%%", agg.NegativePct))
	} else if agg.PositiveCount > 0 {
		pct := 100 * float64(agg.PositiveCount) / float64(agg.ReviewCount)
		out = append(out, fmt.Sprintf("%.0f%% of reviews are positive", pct))
	}
	if agg.Risk == string(scoring.RiskHigh) {
		out = append(out, fmt.Sprintf("high problem risk (score %.1f)", agg.ProblemScore))
	}
	if agg.Recommendation != "" {
		out = append(out, "recommended action: "+agg.Recommendation)
	}
	return out
}
