package detector

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assistedscrape/engine/internal/probe"
)

// fakeTester reports a fixed match count for each selector it's told about, letting
// tests drive SynthesizeGenericSelector without a live DOM.
type fakeTester struct {
	counts map[string]int
}

func (f *fakeTester) TestSelector(ctx context.Context, css string) (bool, int, error) {
	count, ok := f.counts[css]
	if !ok {
		return true, 0, nil
	}
	return true, count, nil
}

func TestIsTailwindUtility(t *testing.T) {
	assert.True(t, isTailwindUtility("flex"))
	assert.True(t, isTailwindUtility("bg-blue-500"))
	assert.True(t, isTailwindUtility("hover:bg-red-500"))
	assert.False(t, isTailwindUtility("product-card"))
	assert.False(t, isTailwindUtility("w-[120px]")) // bracketed value exception
}

func TestIntersectClasses(t *testing.T) {
	group := []probe.Candidate{
		{Classes: []string{"product-card", "grid-item", "flex"}},
		{Classes: []string{"product-card", "grid-item", "block"}},
		{Classes: []string{"product-card", "grid-item"}},
	}
	common := intersectClasses(group)
	assert.ElementsMatch(t, []string{"product-card", "grid-item"}, common)
}

func TestBuildCandidateSelectors_PrefersPatternGroupIntersection(t *testing.T) {
	group := make([]probe.Candidate, 3)
	for i := range group {
		group[i] = probe.Candidate{Tag: "div", Classes: []string{"product-card", "grid-item"}}
	}
	best := probe.Candidate{Tag: "div", Classes: []string{"product-card", "grid-item"}}

	candidates := buildCandidateSelectors(best, group)
	require.NotEmpty(t, candidates)
	assert.Contains(t, candidates[0], "product-card")
}

func TestBuildCandidateSelectors_EndsWithBareTagFallback(t *testing.T) {
	best := probe.Candidate{Tag: "div", Classes: []string{"flex", "p-4"}}
	candidates := buildCandidateSelectors(best, nil)
	assert.Equal(t, "div", candidates[len(candidates)-1])
}

func TestBuildCandidateSelectors_Deduplicates(t *testing.T) {
	best := probe.Candidate{Tag: "article", Classes: []string{"product", "product"}}
	candidates := buildCandidateSelectors(best, nil)
	seen := map[string]bool{}
	for _, c := range candidates {
		assert.False(t, seen[c], "duplicate candidate selector %q", c)
		seen[c] = true
	}
}

func TestSynthesizeGenericSelector_PicksFirstWithinRange(t *testing.T) {
	best := probe.Candidate{Tag: "div", Classes: []string{"product-tile", "bg-white"}}
	tester := &fakeTester{counts: map[string]int{
		"div.product-tile": 24,
	}}

	selector, err := SynthesizeGenericSelector(context.Background(), tester, best, nil)
	require.NoError(t, err)
	assert.True(t, strings.Contains(selector, "product-tile"))
}

func TestSynthesizeGenericSelector_RejectsOutOfRangeCounts(t *testing.T) {
	best := probe.Candidate{Tag: "div", Classes: []string{"product-tile"}}
	// every candidate either matches 1 (too few) or 500 (too many); only the bare
	// tag remains, which trySynthesize reports as "bare" and the caller retries.
	tester := &fakeTester{counts: map[string]int{
		"div.product-tile": 1,
		"div":              500,
	}}

	selector, err := SynthesizeGenericSelector(context.Background(), tester, best, nil)
	require.NoError(t, err)
	assert.Equal(t, "div", selector)
}
