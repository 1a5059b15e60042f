package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assistedscrape/engine/internal/config"
	"github.com/assistedscrape/engine/internal/models"
	"github.com/assistedscrape/engine/internal/probe"
)

func defaultWeights() config.ScorerWeights {
	return config.ScorerWeights{Structural: 0.30, Visual: 0.25, Content: 0.30, Context: 0.15}
}

func defaultDetectionConfig() config.DetectionConfig {
	return config.DetectionConfig{
		Weights:        defaultWeights(),
		MinPatternSize: 3,
		PatternBoost:   0.15,
		MinConfidence:  0.55,
		MaxCandidates:  500,
	}
}

func strongCandidate() probe.Candidate {
	return probe.Candidate{
		Selector: ".product-card",
		Tag:      "div",
		Structural: models.StructuralSignals{
			SemanticTag: true, ProductDataAttr: true, SchemaOrgProduct: true, NestingDepth: 4,
		},
		Visual: models.VisualSignals{
			ParentIsGrid: true, SimilarSibling: true, AspectRatio: 1.2, WidthRatio: 0.2,
		},
		Content: models.ContentSignals{
			PriceCount: 1, ImageCount: 1, HasTitleHeading: true, HasProductLink: true,
		},
		Context: models.ContextSignals{StructuralSimilarity: 0.9},
	}
}

func weakCandidate() probe.Candidate {
	return probe.Candidate{
		Selector: ".footer-nav",
		Tag:      "nav",
	}
}

// TestScore_ConfidenceInRange asserts the invariant every candidate's confidence
// must satisfy regardless of signal strength: confidence always lands in [0,1].
func TestScore_ConfidenceInRange(t *testing.T) {
	weights := defaultWeights()
	cfg := defaultDetectionConfig()

	for _, c := range []probe.Candidate{strongCandidate(), weakCandidate()} {
		total, _ := Score(c, weights)
		_, confidence := Adjust(c, total, models.Classification{Class: models.ClassUnknown}, 0, cfg)
		assert.GreaterOrEqual(t, confidence, 0.0)
		assert.LessOrEqual(t, confidence, 1.0)
	}
}

// TestScore_StrongCandidateOutscoresWeak checks the subscores move in the expected
// direction rather than pinning exact numbers, since the weighting is tunable.
func TestScore_StrongCandidateOutscoresWeak(t *testing.T) {
	weights := defaultWeights()
	strongTotal, strongBreakdown := Score(strongCandidate(), weights)
	weakTotal, weakBreakdown := Score(weakCandidate(), weights)

	assert.Greater(t, strongTotal, weakTotal)
	assert.Greater(t, strongBreakdown.Structural, weakBreakdown.Structural)
	assert.Greater(t, strongBreakdown.Content, weakBreakdown.Content)
}

// TestAdjust_ClassificationPenalty verifies a confidently-non-product classification
// pulls the score down relative to an unknown classification, per the first
// mandatory adjustment.
func TestAdjust_ClassificationPenalty(t *testing.T) {
	cfg := defaultDetectionConfig()
	c := strongCandidate()
	total, _ := Score(c, cfg.Weights)

	unknownTotal, _ := Adjust(c, total, models.Classification{Class: models.ClassUnknown}, 0, cfg)
	adTotal, _ := Adjust(c, total, models.Classification{Class: models.ClassAd, Confidence: 1.0}, 0, cfg)

	require.Less(t, adTotal, unknownTotal)
}

// TestAdjust_PatternBoostRequiresMinimumGroupSize ensures the pattern-group bonus
// only applies once the group reaches MinPatternSize, not below it.
func TestAdjust_PatternBoostRequiresMinimumGroupSize(t *testing.T) {
	cfg := defaultDetectionConfig()
	c := strongCandidate()
	total, _ := Score(c, cfg.Weights)

	belowThreshold, _ := Adjust(c, total, models.Classification{Class: models.ClassUnknown}, cfg.MinPatternSize-1, cfg)
	atThreshold, _ := Adjust(c, total, models.Classification{Class: models.ClassUnknown}, cfg.MinPatternSize, cfg)

	assert.Greater(t, atThreshold, belowThreshold)
}

// TestAdjust_NeverNegative guards the "clamp to zero" floor the spec requires even
// after several stacked penalties.
func TestAdjust_NeverNegative(t *testing.T) {
	cfg := defaultDetectionConfig()
	c := probe.Candidate{Selector: ".carousel.fixed.slider", Tag: "div"}
	total, _ := Score(c, cfg.Weights)
	adjustedTotal, confidence := Adjust(c, total, models.Classification{Class: models.ClassBanner, Confidence: 1.0}, 0, cfg)

	assert.GreaterOrEqual(t, adjustedTotal, 0.0)
	assert.GreaterOrEqual(t, confidence, 0.0)
}
