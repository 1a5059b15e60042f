// Package classifier labels a candidate as product/banner/ad/category/ui/unknown with
// a confidence (C3 Content Classifier). Output is a score delta for the element
// scorer, never a hard filter.
package classifier

import (
	"strings"

	"github.com/assistedscrape/engine/internal/models"
	"github.com/assistedscrape/engine/internal/probe"
)

var bannerTokens = []string{"banner", "hero", "promo", "ad", "navigation", "footer", "header", "menu"}

var positionTokens = []string{"fixed", "sticky", "absolute"}

func selectorContainsAny(selector string, tokens []string) bool {
	lower := strings.ToLower(selector)
	for _, t := range tokens {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

// isBannerLike applies the banner visual heuristic: very wide, few children, a
// single large image dominating the element.
func isBannerLike(c probe.Candidate) bool {
	wide := c.Visual.WidthRatio > 0.6
	fewChildren := c.Visual.SiblingCount <= 1
	singleLargeImage := c.Content.ImageCount == 1 && c.Content.LinkCount <= 1
	return wide && (fewChildren || singleLargeImage)
}

// Classify applies the content classifier's rule-based heuristics to one candidate.
func Classify(c probe.Candidate) models.Classification {
	selector := c.Selector
	classes := strings.Join(c.Classes, " ")
	haystack := strings.ToLower(selector + " " + classes)

	switch {
	case selectorContainsAny(haystack, []string{"navigation", "header", "footer", "menu"}):
		return models.Classification{Class: models.ClassUI, Confidence: 0.8}
	case selectorContainsAny(haystack, []string{"banner", "hero", "promo"}) || isBannerLike(c):
		return models.Classification{Class: models.ClassBanner, Confidence: 0.75}
	case selectorContainsAny(haystack, []string{"ad", "sponsored", "advert"}):
		return models.Classification{Class: models.ClassAd, Confidence: 0.7}
	case selectorContainsAny(haystack, []string{"category", "collection-tile"}) && c.Content.PriceCount == 0:
		return models.Classification{Class: models.ClassCategory, Confidence: 0.6}
	}

	score := 0.0
	if c.Content.PriceCount > 0 {
		score += 0.4
	}
	if c.Content.ImageCount > 0 {
		score += 0.2
	}
	if c.Content.HasTitleHeading {
		score += 0.2
	}
	if c.Content.HasProductLink {
		score += 0.3
	}
	if c.Structural.SchemaOrgProduct {
		score += 0.3
	}
	if c.Structural.ProductDataAttr {
		score += 0.2
	}
	if score > 1 {
		score = 1
	}

	if score >= 0.4 {
		return models.Classification{Class: models.ClassProduct, Confidence: score}
	}
	return models.Classification{Class: models.ClassUnknown, Confidence: 1 - score}
}

// HasBannerHeuristic reports whether the banner visual heuristic trips, used directly
// by the element scorer's adjustment #2.
func HasBannerHeuristic(c probe.Candidate) bool { return isBannerLike(c) }

// HasFixedPositionToken reports whether the selector contains a fixed/sticky/absolute
// token, used by the element scorer's adjustment #3.
func HasFixedPositionToken(selector string) bool {
	return selectorContainsAny(selector, positionTokens)
}

// HasCarouselToken reports whether the selector contains a carousel/slider token,
// used by the element scorer's adjustment #4.
func HasCarouselToken(selector string) bool {
	return selectorContainsAny(selector, []string{"carousel", "slider", "swiper", "slick"})
}
