// Package scorer combines structural/visual/content/context signals into a total
// score and a confidence, then applies the mandatory ordered adjustments (C4 Element
// Scorer).
package scorer

import (
	"math"

	"github.com/assistedscrape/engine/internal/classifier"
	"github.com/assistedscrape/engine/internal/config"
	"github.com/assistedscrape/engine/internal/models"
	"github.com/assistedscrape/engine/internal/probe"
)

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func bound100(v float64) float64 { return clamp(v, 0, 100) }

func structuralSubscore(c probe.Candidate) float64 {
	s := 0.0
	if c.Structural.SemanticTag {
		s += 30
	}
	if c.Structural.ProductDataAttr {
		s += 35
	}
	if c.Structural.SchemaOrgProduct {
		s += 35
	}
	if c.Structural.NestingDepth > 0 && c.Structural.NestingDepth < 20 {
		s += 10
	}
	return bound100(s)
}

func visualSubscore(c probe.Candidate) float64 {
	s := 0.0
	if c.Visual.ParentIsGrid {
		s += 35
	}
	if c.Visual.SimilarSibling {
		s += 35
	}
	if c.Visual.AspectRatio > 0.4 && c.Visual.AspectRatio < 2.5 {
		s += 20
	}
	if c.Visual.WidthRatio > 0.6 {
		s -= 30 // penalize container-like width
	}
	return bound100(s)
}

func contentSubscore(c probe.Candidate) float64 {
	s := 0.0
	if c.Content.PriceCount >= 1 {
		s += 30
	}
	if c.Content.ImageCount >= 1 {
		s += 25
	}
	if c.Content.HasTitleHeading {
		s += 25
	}
	if c.Content.HasProductLink {
		s += 20
	}
	return bound100(s)
}

func contextSubscore(c probe.Candidate) float64 {
	return bound100(c.Context.StructuralSimilarity * 100)
}

// confidenceFromScore maps a total score to a confidence in [0,1] with a logistic
// curve saturating at 1. The exact shape is an open question in the source
// specification; this one is monotone, gives 0.5 at a score of 55 and places
// minConfidence=0.6 at a score of roughly 61, which keeps the default threshold
// operator-meaningful.
func confidenceFromScore(total float64) float64 {
	x := (total - 55) / 15
	return clamp(1/(1+math.Exp(-x)), 0, 1)
}

// Score computes the weighted total and initial confidence for one candidate, before
// the mandatory adjustments in Adjust are applied.
func Score(c probe.Candidate, weights config.ScorerWeights) (total float64, breakdown models.ScoreBreakdown) {
	breakdown = models.ScoreBreakdown{
		Structural: structuralSubscore(c),
		Visual:     visualSubscore(c),
		Content:    contentSubscore(c),
		Context:    contextSubscore(c),
	}
	total = weights.Structural*breakdown.Structural +
		weights.Visual*breakdown.Visual +
		weights.Content*breakdown.Content +
		weights.Context*breakdown.Context
	if total < 0 {
		total = 0
	}
	return total, breakdown
}

// Adjust applies the five mandatory adjustments in order, clamping confidence to
// [0,1] after each step, and returns the adjusted total score and confidence.
func Adjust(c probe.Candidate, total float64, class models.Classification, patternGroupSize int, cfg config.DetectionConfig) (adjustedTotal float64, confidence float64) {
	adjustedTotal = total
	confidence = confidenceFromScore(adjustedTotal)

	// 1. classification adjustment
	if class.Class == models.ClassProduct {
		adjustedTotal += 15 * class.Confidence
	} else if class.Class != models.ClassUnknown {
		adjustedTotal -= 20 * class.Confidence
	}
	confidence = clamp(confidenceFromScore(adjustedTotal), 0, 1)

	// 2. banner heuristic
	if classifier.HasBannerHeuristic(c) {
		adjustedTotal -= 25
	}
	confidence = clamp(confidenceFromScore(adjustedTotal), 0, 1)

	// 3. fixed/sticky/absolute token
	if classifier.HasFixedPositionToken(c.Selector) {
		adjustedTotal -= 50
	}
	confidence = clamp(confidenceFromScore(adjustedTotal), 0, 1)

	// 4. carousel/slider token
	if classifier.HasCarouselToken(c.Selector) {
		adjustedTotal -= 15
	}
	confidence = clamp(confidenceFromScore(adjustedTotal), 0, 1)

	// 5. pattern boost
	if patternGroupSize >= cfg.MinPatternSize {
		adjustedTotal += cfg.PatternBoost
	}
	confidence = clamp(confidenceFromScore(adjustedTotal), 0, 1)

	if adjustedTotal < 0 {
		adjustedTotal = 0
	}
	return adjustedTotal, confidence
}
