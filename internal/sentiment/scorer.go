// Package sentiment assigns polarity labels and compound scores to review
// text with an embedded lexicon/rule scorer. Scoring is fully offline and
// deterministic: the same text always yields the same label and score.
package sentiment

import (
	_ "embed"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/joelkehle/review-refinery/internal/review"
)

//go:embed lexicon.txt
var lexiconData string

// Normalization constant for the compound score; keeps the score in (-1, 1)
// while letting longer texts saturate gradually.
const normalizationAlpha = 15.0

const (
	negationDampener = 0.74
	boosterIncrement = 0.293
	negationScope    = 3
)

var negations = map[string]struct{}{
	"not": {}, "no": {}, "never": {}, "neither": {}, "nor": {}, "nothing": {},
	"nobody": {}, "hardly": {}, "barely": {}, "scarcely": {}, "without": {},
	"isnt": {}, "wasnt": {}, "arent": {}, "werent": {}, "dont": {}, "didnt": {},
	"doesnt": {}, "cant": {}, "couldnt": {}, "wont": {}, "wouldnt": {}, "shouldnt": {},
}

var boosters = map[string]float64{
	"absolutely": boosterIncrement, "amazingly": boosterIncrement,
	"completely": boosterIncrement, "deeply": boosterIncrement,
	"especially": boosterIncrement, "extremely": boosterIncrement,
	"highly": boosterIncrement, "incredibly": boosterIncrement,
	"really": boosterIncrement, "remarkably": boosterIncrement,
	"so": boosterIncrement, "thoroughly": boosterIncrement,
	"totally": boosterIncrement, "truly": boosterIncrement,
	"utterly": boosterIncrement, "very": boosterIncrement,
	"almost": -boosterIncrement, "fairly": -boosterIncrement,
	"kind": -boosterIncrement, "kinda": -boosterIncrement,
	"marginally": -boosterIncrement, "moderately": -boosterIncrement,
	"rather": -boosterIncrement, "slightly": -boosterIncrement,
	"somewhat": -boosterIncrement, "sort": -boosterIncrement,
}

var (
	lexiconOnce sync.Once
	lexicon     map[string]float64
)

func loadLexicon() map[string]float64 {
	lexiconOnce.Do(func() {
		lexicon = map[string]float64{}
		for _, line := range strings.Split(lexiconData, "\n") {
			parts := strings.SplitN(strings.TrimSpace(line), "\t", 2)
			if len(parts) != 2 {
				continue
			}
			v, err := strconv.ParseFloat(parts[1], 64)
			if err != nil {
				continue
			}
			lexicon[parts[0]] = v
		}
	})
	return lexicon
}

type Config struct {
	// PositiveThreshold and NegativeThreshold split the compound range into
	// labels: >= positive is positive, <= negative is negative, else neutral.
	PositiveThreshold float64
	NegativeThreshold float64
	// HighBand and MediumBand bound discrepancy severity classification.
	HighBand   float64
	MediumBand float64
}

func DefaultConfig() Config {
	return Config{
		PositiveThreshold: 0.05,
		NegativeThreshold: -0.05,
		HighBand:          0.3,
		MediumBand:        0.1,
	}
}

type Scorer struct {
	cfg     Config
	lexicon map[string]float64
}

func NewScorer(cfg Config) *Scorer {
	if cfg.PositiveThreshold == 0 && cfg.NegativeThreshold == 0 {
		cfg = DefaultConfig()
	}
	return &Scorer{cfg: cfg, lexicon: loadLexicon()}
}

// Score returns the compound polarity of text in [-1, 1]. Valences come from
// the lexicon; a negation within the preceding three tokens flips and
// dampens a hit, and booster words scale the following hit up or down.
func (s *Scorer) Score(text string) float64 {
	tokens := strings.Fields(strings.ToLower(text))
	var sum float64
	for i, tok := range tokens {
		tok = strings.Trim(tok, `.,!?;:"'()[]`)
		tok = strings.ReplaceAll(tok, "'", "")
		valence, ok := s.lexicon[tok]
		if !ok {
			continue
		}
		boost := 0.0
		negated := false
		for back := 1; back <= negationScope && i-back >= 0; back++ {
			prev := strings.Trim(tokens[i-back], `.,!?;:"'()[]`)
			prev = strings.ReplaceAll(prev, "'", "")
			if _, neg := negations[prev]; neg {
				negated = true
			}
			if b, ok := boosters[prev]; ok && back == 1 {
				boost = b
			}
		}
		if valence > 0 {
			valence += boost
		} else {
			valence -= boost
		}
		if negated {
			valence *= -negationDampener
		}
		sum += valence
	}
	if sum == 0 {
		return 0
	}
	compound := sum / math.Sqrt(sum*sum+normalizationAlpha)
	if compound > 1 {
		compound = 1
	} else if compound < -1 {
		compound = -1
	}
	return compound
}

// Label maps a compound score onto the three polarity labels.
func (s *Scorer) Label(compound float64) review.Label {
	switch {
	case compound >= s.cfg.PositiveThreshold:
		return review.LabelPositive
	case compound <= s.cfg.NegativeThreshold:
		return review.LabelNegative
	default:
		return review.LabelNeutral
	}
}

// Classify scores text and returns its label and compound in one pass.
func (s *Scorer) Classify(text string) (review.Label, float64) {
	c := s.Score(text)
	return s.Label(c), c
}
