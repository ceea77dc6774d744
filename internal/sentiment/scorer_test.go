package sentiment

import (
	"testing"

	"github.com/joelkehle/review-refinery/internal/review"
)

func TestScoreDeterministic(t *testing.T) {
	s := NewScorer(DefaultConfig())
	text := "Great read, loved it! Truly wonderful characters."
	l1, c1 := s.Classify(text)
	l2, c2 := s.Classify(text)
	if l1 != l2 || c1 != c2 {
		t.Fatalf("scorer not deterministic: (%s,%f) vs (%s,%f)", l1, c1, l2, c2)
	}
}

func TestScorePolarity(t *testing.T) {
	s := NewScorer(DefaultConfig())
	cases := []struct {
		text string
		want review.Label
	}{
		{"Great read, loved it!", review.LabelPositive},
		{"An absolute masterpiece, wonderful and moving.", review.LabelPositive},
		{"Terrible book, boring and a complete waste.", review.LabelNegative},
		{"The worst thing I have ever read, awful.", review.LabelNegative},
		{"The book arrived on Tuesday.", review.LabelNeutral},
		{"", review.LabelNeutral},
	}
	for _, c := range cases {
		got, compound := s.Classify(c.text)
		if got != c.want {
			t.Fatalf("Classify(%q) = %s (%.3f), want %s", c.text, got, compound, c.want)
		}
	}
}

func TestScoreRange(t *testing.T) {
	s := NewScorer(DefaultConfig())
	texts := []string{
		"love love love love love love love love love love",
		"worst worst worst worst worst worst worst worst",
		"",
	}
	for _, text := range texts {
		c := s.Score(text)
		if c < -1 || c > 1 {
			t.Fatalf("compound out of range for %q: %f", text, c)
		}
	}
}

func TestScoreNegationFlips(t *testing.T) {
	s := NewScorer(DefaultConfig())
	pos := s.Score("I loved this book")
	neg := s.Score("I did not love this book")
	if pos <= 0 {
		t.Fatalf("expected positive score, got %f", pos)
	}
	if neg >= 0 {
		t.Fatalf("expected negation to flip polarity, got %f", neg)
	}
}

func TestScoreBoosterAmplifies(t *testing.T) {
	s := NewScorer(DefaultConfig())
	plain := s.Score("a good book")
	boosted := s.Score("a very good book")
	if boosted <= plain {
		t.Fatalf("expected booster to raise score: plain=%f boosted=%f", plain, boosted)
	}
}

func TestValidateDiscrepancy(t *testing.T) {
	s := NewScorer(DefaultConfig())
	cases := []struct {
		label    review.Label
		compound float64
		flagged  bool
		severity review.Severity
	}{
		{review.LabelPositive, -0.8, true, review.SeverityHigh},
		{review.LabelPositive, 0.8, false, review.SeverityNone},
		{review.LabelPositive, -0.15, true, review.SeverityMedium},
		{review.LabelNegative, 0.4, true, review.SeverityHigh},
		{review.LabelNegative, 0.15, true, review.SeverityMedium},
		{review.LabelNegative, -0.6, false, review.SeverityNone},
		{review.LabelNeutral, 0.5, true, review.SeverityMedium},
		{review.LabelNeutral, 0.07, true, review.SeverityLow},
		{review.LabelNeutral, 0.01, false, review.SeverityNone},
	}
	for _, c := range cases {
		d := s.Validate(c.label, c.compound)
		if d.Flagged != c.flagged || d.Severity != c.severity {
			t.Fatalf("Validate(%s, %.2f) = {flagged:%v severity:%q}, want {%v %q}",
				c.label, c.compound, d.Flagged, d.Severity, c.flagged, c.severity)
		}
	}
}

func TestValidateDiscrepancyScoreMagnitude(t *testing.T) {
	s := NewScorer(DefaultConfig())
	mild := s.Validate(review.LabelPositive, -0.15)
	severe := s.Validate(review.LabelPositive, -0.9)
	if severe.Score <= mild.Score {
		t.Fatalf("expected larger disagreement to score higher: %f vs %f", severe.Score, mild.Score)
	}
}

func TestValidateNeverMutatesExpectedLabel(t *testing.T) {
	s := NewScorer(DefaultConfig())
	d := s.Validate(review.LabelPositive, -0.8)
	if d.Expected != review.LabelNegative {
		t.Fatalf("expected label from compound should be negative, got %s", d.Expected)
	}
}
