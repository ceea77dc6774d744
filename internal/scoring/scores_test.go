package scoring

import (
	"math"
	"testing"

	"github.com/joelkehle/review-refinery/internal/review"
)

func TestProblemScoreZeroReviews(t *testing.T) {
	if got := ProblemScore(review.BookAggregate{}); got != 0 {
		t.Fatalf("expected 0 for zero reviews, got %f", got)
	}
}

func TestProblemScoreExactValue(t *testing.T) {
	a := review.BookAggregate{ReviewCount: 10, NegativeCount: 4, MeanCompound: -0.25}
	// 0.6*40 + 0.4*100*0.25 = 24 + 10 = 34
	if got := ProblemScore(a); math.Abs(got-34.0) > 1e-9 {
		t.Fatalf("unexpected problem score: got=%f want=34", got)
	}
}

func TestProblemScoreIgnoresPositiveMeanCompound(t *testing.T) {
	a := review.BookAggregate{ReviewCount: 10, NegativeCount: 4, MeanCompound: 0.5}
	// Compound term contributes only when the mean is negative.
	if got := ProblemScore(a); math.Abs(got-24.0) > 1e-9 {
		t.Fatalf("unexpected problem score: got=%f want=24", got)
	}
}

func TestProblemScoreMonotonicInNegativePct(t *testing.T) {
	prev := -1.0
	for neg := 0; neg <= 10; neg++ {
		a := review.BookAggregate{ReviewCount: 10, NegativeCount: neg, MeanCompound: -0.2}
		got := ProblemScore(a)
		if got < prev {
			t.Fatalf("problem score decreased as negative count rose: %f after %f", got, prev)
		}
		prev = got
	}
}

func TestDiversityScoreZeroReviews(t *testing.T) {
	if got := DiversityScore(review.UserAggregate{}); got != 0 {
		t.Fatalf("expected 0 for zero reviews, got %f", got)
	}
}

func TestDiversityScoreExactValue(t *testing.T) {
	u := review.UserAggregate{ReviewCount: 10, DistinctLabels: 3, DistinctCategories: 4}
	// 0.3*10 + 10*3 + 5*4 = 53
	if got := DiversityScore(u); math.Abs(got-53.0) > 1e-9 {
		t.Fatalf("unexpected diversity score: got=%f want=53", got)
	}
}

func TestDiversityScoreIncreasesWithCategories(t *testing.T) {
	base := review.UserAggregate{ReviewCount: 5, DistinctLabels: 2, DistinctCategories: 1}
	more := base
	more.DistinctCategories = 2
	if DiversityScore(more) <= DiversityScore(base) {
		t.Fatal("expected diversity score to increase with distinct categories")
	}
}

func TestROIEstimateGuards(t *testing.T) {
	a := review.BookAggregate{ReviewCount: 10, MeanCompound: 0.5}
	for _, total := range []int{0, 1} {
		got := ROIEstimate(a, total)
		if got != 0 || math.IsNaN(got) {
			t.Fatalf("expected 0 for totalBooks=%d, got %f", total, got)
		}
	}
	if got := ROIEstimate(review.BookAggregate{}, 100); got != 0 {
		t.Fatalf("expected 0 for zero reviews, got %f", got)
	}
}

func TestROIEstimateExactValue(t *testing.T) {
	a := review.BookAggregate{ReviewCount: 20, MeanCompound: 0.5}
	// 20 * 1.5 * ln(100) / 10 = 3 * 4.60517 = 13.81551
	want := 13.81551
	if got := ROIEstimate(a, 100); math.Abs(got-want) > 0.001 {
		t.Fatalf("unexpected ROI: got=%f want=%f", got, want)
	}
}

func TestRiskBucketsTotalAndMonotonic(t *testing.T) {
	b := DefaultRiskBuckets()
	if err := b.Validate(); err != nil {
		t.Fatal(err)
	}
	order := map[Risk]int{RiskLow: 0, RiskMedium: 1, RiskHigh: 2}
	prev := -1
	for score := 0.0; score <= 100.0; score += 0.5 {
		r := b.Classify(score)
		rank, ok := order[r]
		if !ok {
			t.Fatalf("score %f mapped to unknown bucket %q", score, r)
		}
		if rank < prev {
			t.Fatalf("risk rank decreased at score %f", score)
		}
		prev = rank
	}
}

func TestRiskBucketsValidateRejectsInverted(t *testing.T) {
	b := RiskBuckets{High: 10, Medium: 50}
	if err := b.Validate(); err == nil {
		t.Fatal("expected inverted thresholds to be rejected")
	}
}

func TestClassifySegment(t *testing.T) {
	cases := []struct {
		u    review.UserAggregate
		want Segment
	}{
		{review.UserAggregate{ReviewCount: 5, MeanCompound: 0.6}, SegmentOptimist},
		{review.UserAggregate{ReviewCount: 5, MeanCompound: -0.4}, SegmentCritic},
		{review.UserAggregate{ReviewCount: 5, DistinctLabels: 3}, SegmentBalanced},
		{review.UserAggregate{ReviewCount: 30, DistinctLabels: 1}, SegmentActive},
		{review.UserAggregate{ReviewCount: 5, DistinctLabels: 1}, SegmentRegular},
		{review.UserAggregate{}, SegmentRegular},
	}
	for _, c := range cases {
		if got := ClassifySegment(c.u); got != c.want {
			t.Fatalf("ClassifySegment(%+v) = %s, want %s", c.u, got, c.want)
		}
	}
}

func TestRecommend(t *testing.T) {
	cases := []struct {
		a    review.BookAggregate
		want Recommendation
	}{
		{review.BookAggregate{ReviewCount: 10, PositiveCount: 8, MeanCompound: 0.5}, RecommendPromote},
		{review.BookAggregate{ReviewCount: 10, PositiveCount: 7, MeanCompound: 0.2}, RecommendMaintain},
		{review.BookAggregate{ReviewCount: 10, PositiveCount: 2, MeanCompound: -0.3}, RecommendReview},
		{review.BookAggregate{ReviewCount: 10, PositiveCount: 5, MeanCompound: 0.0}, RecommendMonitor},
		{review.BookAggregate{}, RecommendMonitor},
	}
	for _, c := range cases {
		if got := Recommend(c.a); got != c.want {
			t.Fatalf("Recommend(%+v) = %s, want %s", c.a, got, c.want)
		}
	}
}
