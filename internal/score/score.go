// Package score combines the independent detection signals into the one
// confidence that persists to the registry. The pattern stage supplies a
// base; associations, the n-gram classifier, cross-turn frequency, and a
// local coherence heuristic each add or withhold their own evidence.
package score

import (
	"github.com/veilmark/chronicle/internal/detect"
)

// Ensemble weights. Signals without data drop out and the remaining
// weights renormalize.
const (
	weightPattern   = 0.4
	weightNgram     = 0.2
	weightAssoc     = 0.2
	weightFrequency = 0.1
	weightCoherence = 0.1
)

// assocNorm maps the raw association boost (0..0.2) onto 0..1.
const assocNorm = 0.2

// Signals carries one detection's evidence into the ensemble. Pattern and
// Coherence are always present; the Has flags mark which of the optional
// producers had anything to say.
type Signals struct {
	// Pattern is the detection-stage confidence after adjustments.
	Pattern float64

	// NgramType and NgramConfidence hold the classifier's verdict when
	// HasNgram is set.
	NgramType       detect.Type
	NgramConfidence float64
	HasNgram        bool

	// AssocBoost is the raw boost in [0, 0.2] when HasAssoc is set. An
	// entity with no stored associations contributes nothing here.
	AssocBoost float64
	HasAssoc   bool

	// Frequency is the share of recent turns mentioning the entity when
	// HasFrequency is set. The first turn ever has no history and no
	// frequency signal.
	Frequency    float64
	HasFrequency bool

	// Coherence is the local context heuristic, always in [0, 1].
	Coherence float64
}

// Ensemble produces the final confidence for a detection of the given type:
// a weighted mean of the applicable signals, clamped to [0, 1]. The n-gram
// signal counts as agreement only when the classifier named the same type;
// a confident disagreement scores zero and drags the mean down.
func Ensemble(typ detect.Type, s Signals) float64 {
	sum := weightPattern * clamp01(s.Pattern)
	weights := weightPattern

	if s.HasNgram {
		agreement := 0.0
		if s.NgramType == typ {
			agreement = clamp01(s.NgramConfidence)
		}
		sum += weightNgram * agreement
		weights += weightNgram
	}

	if s.HasAssoc {
		sum += weightAssoc * clamp01(s.AssocBoost/assocNorm)
		weights += weightAssoc
	}

	if s.HasFrequency {
		sum += weightFrequency * clamp01(s.Frequency)
		weights += weightFrequency
	}

	sum += weightCoherence * clamp01(s.Coherence)
	weights += weightCoherence

	return clamp01(sum / weights)
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
