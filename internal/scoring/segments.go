package scoring

import "github.com/joelkehle/review-refinery/internal/review"

type Segment string

const (
	SegmentOptimist Segment = "optimist"
	SegmentCritic   Segment = "critic"
	SegmentBalanced Segment = "balanced"
	SegmentActive   Segment = "active"
	SegmentRegular  Segment = "regular"
)

// ClassifySegment buckets a user for reporting: strong mean sentiment wins,
// then breadth of labels, then sheer volume.
func ClassifySegment(u review.UserAggregate) Segment {
	switch {
	case u.ReviewCount == 0:
		return SegmentRegular
	case u.MeanCompound > 0.3:
		return SegmentOptimist
	case u.MeanCompound < -0.1:
		return SegmentCritic
	case u.DistinctLabels >= 3:
		return SegmentBalanced
	case u.ReviewCount > 20:
		return SegmentActive
	default:
		return SegmentRegular
	}
}

type Recommendation string

const (
	RecommendPromote  Recommendation = "promote"
	RecommendMaintain Recommendation = "maintain"
	RecommendReview   Recommendation = "review"
	RecommendMonitor  Recommendation = "monitor"
)

// Recommend turns a book aggregate into a business recommendation: promote
// well-received books, flag quality problems for review, monitor the rest.
func Recommend(a review.BookAggregate) Recommendation {
	if a.ReviewCount == 0 {
		return RecommendMonitor
	}
	positivePct := float64(a.PositiveCount) * 100.0 / float64(a.ReviewCount)
	switch {
	case a.MeanCompound > 0.3 && positivePct > 70:
		return RecommendPromote
	case a.MeanCompound > 0.1 && positivePct > 60:
		return RecommendMaintain
	case a.MeanCompound < -0.1 || positivePct < 40:
		return RecommendReview
	default:
		return RecommendMonitor
	}
}
