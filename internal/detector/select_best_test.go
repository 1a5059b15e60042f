package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/assistedscrape/engine/internal/models"
	"github.com/assistedscrape/engine/internal/probe"
)

func scoredOf(tag string, classes []string, total float64) scored {
	return scored{
		candidate:    probe.Candidate{Tag: tag, Classes: classes},
		elementScore: models.ElementScore{TotalScore: total},
	}
}

func TestSelectBest_HighestScoreWinsOutright(t *testing.T) {
	div := scoredOf("div", nil, 80)
	anchor := scoredOf("a", []string{"product-card"}, 45) // gap = 35: outside both tie-break windows
	best := SelectBest([]scored{div, anchor})
	assert.Equal(t, "div", best.candidate.Tag)
}

func TestSelectBest_AnchorWithProductClassWinsInThe25To30Gap(t *testing.T) {
	div := scoredOf("div", nil, 80)
	anchor := scoredOf("a", []string{"product-card"}, 53) // gap = 27: only the 30pt branch can fire here
	best := SelectBest([]scored{div, anchor})
	assert.Equal(t, "a", best.candidate.Tag, "a product-classed anchor within 30 points should win over a div")
}

func TestSelectBest_AnchorWithoutProductClassDoesNotWinInThe25To30Gap(t *testing.T) {
	div := scoredOf("div", nil, 80)
	anchor := scoredOf("a", []string{"read-more"}, 53) // gap = 27, no product token: neither branch fires
	best := SelectBest([]scored{div, anchor})
	assert.Equal(t, "div", best.candidate.Tag, "the 30pt branch requires a product-like class token, not just any class")
}

func TestSelectBest_AnchorWithNoClassesNeverWinsOnGapAlone(t *testing.T) {
	div := scoredOf("div", nil, 80)
	anchor := scoredOf("a", nil, 60) // gap = 20, but no classes at all
	best := SelectBest([]scored{div, anchor})
	assert.Equal(t, "div", best.candidate.Tag, "an anchor with zero classes (e.g. bare 'read more' link) must not beat the div")
}

func TestSelectBest_AnchorNeverBeatsNonDivCurrentBest(t *testing.T) {
	span := scoredOf("span", nil, 80)
	anchor := scoredOf("a", []string{"product-card"}, 70) // gap = 10, would win vs a div
	best := SelectBest([]scored{span, anchor})
	assert.Equal(t, "span", best.candidate.Tag, "the anchor tie-break only applies when the leading candidate is a div")
}

func TestHasProductClassToken(t *testing.T) {
	assert.True(t, hasProductClassToken([]string{"product-card"}))
	assert.True(t, hasProductClassToken([]string{"tile-item"}))
	assert.False(t, hasProductClassToken([]string{"read-more"}))
	assert.False(t, hasProductClassToken(nil))
}
