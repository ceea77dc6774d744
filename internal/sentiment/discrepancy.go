package sentiment

import (
	"math"

	"github.com/joelkehle/review-refinery/internal/review"
)

// Label expectations used for the numeric discrepancy magnitude: a positive
// label implies a compound near +0.5, negative near -0.5, neutral near 0.
const (
	positiveExpectation = 0.5
	negativeExpectation = -0.5
)

// Discrepancy is a flagged disagreement between a review's label and its
// compound score. Flagging is advisory; the label is never rewritten.
type Discrepancy struct {
	Flagged  bool
	Severity review.Severity
	// Score is |compound - label expectation|, used to rank flagged reviews
	// within a severity band.
	Score float64
	// Expected is the label the compound alone would have produced.
	Expected review.Label
}

// Validate checks label against compound under the configured bands.
// High: strong opposite signal (positive label with compound <= -HighBand or
// the mirror case). Medium: moderate opposite signal, or a neutral label
// carrying a strong score either way. Low: a neutral label with a score past
// the labeling threshold. Anything else is unflagged.
func (s *Scorer) Validate(label review.Label, compound float64) Discrepancy {
	d := Discrepancy{Expected: s.Label(compound)}
	switch label {
	case review.LabelPositive:
		d.Score = math.Abs(compound - positiveExpectation)
		switch {
		case compound <= -s.cfg.HighBand:
			d.Flagged, d.Severity = true, review.SeverityHigh
		case compound <= -s.cfg.MediumBand:
			d.Flagged, d.Severity = true, review.SeverityMedium
		}
	case review.LabelNegative:
		d.Score = math.Abs(compound - negativeExpectation)
		switch {
		case compound >= s.cfg.HighBand:
			d.Flagged, d.Severity = true, review.SeverityHigh
		case compound >= s.cfg.MediumBand:
			d.Flagged, d.Severity = true, review.SeverityMedium
		}
	case review.LabelNeutral:
		d.Score = math.Abs(compound)
		switch {
		case math.Abs(compound) >= s.cfg.HighBand:
			d.Flagged, d.Severity = true, review.SeverityMedium
		case compound >= s.cfg.PositiveThreshold || compound <= s.cfg.NegativeThreshold:
			d.Flagged, d.Severity = true, review.SeverityLow
		}
	}
	if !d.Flagged {
		d.Severity = review.SeverityNone
	}
	return d
}
