// Package scoring holds the composite decision metrics computed from
// per-book and per-user aggregates. Every function here is pure and
// deterministic: it reads the aggregate and returns a number.
//
// The formulas are only meaningful for well-formed inputs; on degenerate
// inputs (zero reviews, zero or one book in the corpus) every function
// returns 0 rather than NaN or an error.
package scoring

import (
	"fmt"
	"math"

	"github.com/joelkehle/review-refinery/internal/review"
)

const (
	problemNegativeWeight = 0.6
	problemCompoundWeight = 0.4

	diversityReviewWeight    = 0.3
	diversityLabelWeight     = 10.0
	diversityCategoryWeight  = 5.0
	roiDampener              = 10.0
	defaultRiskHighThreshold = 60.0
	defaultRiskMediumBound   = 30.0
)

// ProblemScore weighs a book's negative-review percentage against the
// magnitude of its mean compound when that mean is negative. Higher is more
// problematic. Zero reviews score 0.
func ProblemScore(a review.BookAggregate) float64 {
	if a.ReviewCount == 0 {
		return 0
	}
	negPct := float64(a.NegativeCount) * 100.0 / float64(a.ReviewCount)
	meanNegative := 0.0
	if a.MeanCompound < 0 {
		meanNegative = math.Abs(a.MeanCompound)
	}
	return problemNegativeWeight*negPct + problemCompoundWeight*100.0*meanNegative
}

// DiversityScore ranks a user by review volume and the breadth of sentiment
// labels and categories they touch. Zero reviews score 0.
func DiversityScore(u review.UserAggregate) float64 {
	if u.ReviewCount == 0 {
		return 0
	}
	return diversityReviewWeight*float64(u.ReviewCount) +
		diversityLabelWeight*float64(u.DistinctLabels) +
		diversityCategoryWeight*float64(u.DistinctCategories)
}

// ROIEstimate combines per-book engagement, normalized sentiment quality and
// a log-dampened corpus volume term. Natural log throughout. Returns 0 when
// totalBooks <= 1 (the log term would be <= 0) or the book has no reviews.
func ROIEstimate(a review.BookAggregate, totalBooks int) float64 {
	if totalBooks <= 1 || a.ReviewCount == 0 {
		return 0
	}
	return float64(a.ReviewCount) * (a.MeanCompound + 1) * math.Log(float64(totalBooks)) / roiDampener
}

type Risk string

const (
	RiskHigh   Risk = "high"
	RiskMedium Risk = "medium"
	RiskLow    Risk = "low"
)

// RiskBuckets maps a ProblemScore onto ordinal risk buckets. The mapping is
// total and monotonic: every score lands in exactly one bucket and a higher
// score never yields a lower bucket.
type RiskBuckets struct {
	High   float64 `yaml:"high"`
	Medium float64 `yaml:"medium"`
}

func DefaultRiskBuckets() RiskBuckets {
	return RiskBuckets{High: defaultRiskHighThreshold, Medium: defaultRiskMediumBound}
}

func (b RiskBuckets) Validate() error {
	if b.High <= b.Medium {
		return fmt.Errorf("risk buckets not monotonic: high threshold %.1f <= medium threshold %.1f", b.High, b.Medium)
	}
	if b.Medium < 0 {
		return fmt.Errorf("risk medium threshold must be non-negative, got %.1f", b.Medium)
	}
	return nil
}

func (b RiskBuckets) Classify(problemScore float64) Risk {
	switch {
	case problemScore >= b.High:
		return RiskHigh
	case problemScore >= b.Medium:
		return RiskMedium
	default:
		return RiskLow
	}
}
