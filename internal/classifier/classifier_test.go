package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/assistedscrape/engine/internal/models"
	"github.com/assistedscrape/engine/internal/probe"
)

func TestClassify_ProductCandidate(t *testing.T) {
	c := probe.Candidate{
		Selector: ".product-tile",
		Content: models.ContentSignals{
			PriceCount: 1, ImageCount: 1, HasTitleHeading: true, HasProductLink: true,
		},
		Structural: models.StructuralSignals{SchemaOrgProduct: true},
	}
	result := Classify(c)
	assert.Equal(t, models.ClassProduct, result.Class)
	assert.Greater(t, result.Confidence, 0.4)
}

func TestClassify_NavigationIsUI(t *testing.T) {
	c := probe.Candidate{Selector: "#main-navigation"}
	result := Classify(c)
	assert.Equal(t, models.ClassUI, result.Class)
}

func TestClassify_BannerBySelectorToken(t *testing.T) {
	c := probe.Candidate{Selector: ".hero-banner"}
	result := Classify(c)
	assert.Equal(t, models.ClassBanner, result.Class)
}

func TestClassify_BannerByVisualHeuristic(t *testing.T) {
	c := probe.Candidate{
		Selector: ".widget-xyz",
		Visual:   models.VisualSignals{WidthRatio: 0.9, SiblingCount: 0},
		Content:  models.ContentSignals{ImageCount: 1, LinkCount: 0},
	}
	result := Classify(c)
	assert.Equal(t, models.ClassBanner, result.Class)
}

func TestClassify_AdToken(t *testing.T) {
	c := probe.Candidate{Selector: ".sponsored-slot"}
	result := Classify(c)
	assert.Equal(t, models.ClassAd, result.Class)
}

func TestClassify_UnknownWhenNoSignal(t *testing.T) {
	c := probe.Candidate{Selector: ".mystery-block"}
	result := Classify(c)
	assert.Equal(t, models.ClassUnknown, result.Class)
}

func TestHasFixedPositionToken(t *testing.T) {
	assert.True(t, HasFixedPositionToken(".sticky-header"))
	assert.True(t, HasFixedPositionToken(".position-fixed"))
	assert.False(t, HasFixedPositionToken(".product-card"))
}

func TestHasCarouselToken(t *testing.T) {
	assert.True(t, HasCarouselToken(".swiper-slide"))
	assert.True(t, HasCarouselToken(".carousel-item"))
	assert.False(t, HasCarouselToken(".product-card"))
}

func TestHasBannerHeuristic(t *testing.T) {
	wide := probe.Candidate{
		Visual:  models.VisualSignals{WidthRatio: 0.8, SiblingCount: 0},
		Content: models.ContentSignals{ImageCount: 1, LinkCount: 1},
	}
	assert.True(t, HasBannerHeuristic(wide))

	narrow := probe.Candidate{
		Visual: models.VisualSignals{WidthRatio: 0.2, SiblingCount: 5},
	}
	assert.False(t, HasBannerHeuristic(narrow))
}
