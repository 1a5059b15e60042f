package pagination

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assistedscrape/engine/internal/browserdrv"
	"github.com/assistedscrape/engine/internal/config"
	"github.com/assistedscrape/engine/internal/models"
	"github.com/assistedscrape/engine/internal/probe"
)

func TestOffsetKeyAndValue(t *testing.T) {
	cases := []struct {
		url       string
		wantKey   string
		wantValue int
		wantOK    bool
	}{
		{"https://example.com/search?page=3", "page", 3, true},
		{"https://example.com/search?offset=40", "offset", 40, true},
		{"https://example.com/search?from=20", "from", 20, true},
		{"https://example.com/search", "", 0, false},
		{"https://example.com/search?sort=price", "", 0, false},
	}
	for _, tc := range cases {
		key, value, ok := offsetKeyAndValue(tc.url)
		assert.Equal(t, tc.wantOK, ok, tc.url)
		if tc.wantOK {
			assert.Equal(t, tc.wantKey, key, tc.url)
			assert.Equal(t, tc.wantValue, value, tc.url)
		}
	}
}

func TestInferOffsetStyle(t *testing.T) {
	assert.Equal(t, models.OffsetStyleOffset, inferOffsetStyle("offset"))
	assert.Equal(t, models.OffsetStyleOffset, inferOffsetStyle("start"))
	assert.Equal(t, models.OffsetStyleOffset, inferOffsetStyle("from"))
	assert.Equal(t, models.OffsetStylePage, inferOffsetStyle("page"))
	assert.Equal(t, models.OffsetStylePage, inferOffsetStyle("p"))
}

func TestNewIdentifierCount(t *testing.T) {
	before := []string{"a", "b", "c"}
	after := []string{"a", "b", "c", "d", "e"}
	assert.Equal(t, 2, newIdentifierCount(before, after))
	assert.Equal(t, 0, newIdentifierCount(before, before))
}

func TestSameSite(t *testing.T) {
	assert.True(t, sameSite(
		"https://shop.example.com/page/1",
		"https://shop.example.com/page/2",
	))
	assert.True(t, sameSite(
		"https://www.example.com/a",
		"https://checkout.example.com/b",
	))
	assert.False(t, sameSite(
		"https://shop.example.com/page/1",
		"https://ads.doubleclick.net/click",
	))
}

// fakeDriver simulates a load-more button that appends 12 items on click, plus an
// infinite-scroll effect that appends one new item on each of the first two scroll
// steps, letting TestDecide_VerifiesLoadMoreCandidate drive the full Decide cycle
// without a live page.
type fakeDriver struct {
	candidates []models.PaginationCandidate
	itemCount  int
	clicked    []string
	wheelCalls int
	url        string
}

func (f *fakeDriver) Evaluate(ctx context.Context, script string, out any) error {
	switch script {
	case discoverScript:
		*out.(*[]models.PaginationCandidate) = f.candidates
	case identifierSampleScript:
		ids := make([]string, f.itemCount)
		for i := range ids {
			ids[i] = fmt.Sprintf("item-%d", i)
		}
		*out.(*[]string) = ids
	default:
		if ptr, ok := out.(*bool); ok {
			*ptr = true
		}
	}
	return nil
}
func (f *fakeDriver) Screenshot(ctx context.Context) ([]byte, error) { return nil, nil }
func (f *fakeDriver) Goto(ctx context.Context, url string) error     { return nil }
func (f *fakeDriver) Click(ctx context.Context, selector string) error {
	f.clicked = append(f.clicked, selector)
	f.itemCount = 24
	return nil
}
func (f *fakeDriver) MouseWheel(ctx context.Context, dx, dy float64) error {
	f.wheelCalls++
	if f.wheelCalls <= 2 {
		f.itemCount++
	}
	return nil
}
func (f *fakeDriver) WaitForTimeout(ctx context.Context, d time.Duration) error { return nil }
func (f *fakeDriver) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	return nil
}
func (f *fakeDriver) OnResponse(handler func(browserdrv.ResponseEvent)) func() { return func() {} }
func (f *fakeDriver) Route(handler browserdrv.RouteHandler) func()            { return func() {} }
func (f *fakeDriver) Viewport(ctx context.Context) (browserdrv.Viewport, error) {
	return browserdrv.Viewport{Width: 1280, Height: 720}, nil
}
func (f *fakeDriver) CurrentURL(ctx context.Context) (string, error) { return f.url, nil }
func (f *fakeDriver) Close() error                                   { return nil }

func TestDecide_VerifiesLoadMoreCandidateProducingHybrid(t *testing.T) {
	driver := &fakeDriver{
		itemCount: 12,
		url:       "https://example.com/listing",
		candidates: []models.PaginationCandidate{
			{Selector: "button.load-more", Kind: models.CandidateLoadMore, Confidence: 0.8},
		},
	}
	det := New(driver, probe.New(driver), config.PaginationConfig{})

	descriptor, err := det.Decide(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.PaginationHybrid, descriptor.Kind)
	require.NotNil(t, descriptor.HybridClick, "the load-more candidate must be click-tested, not skipped")
	assert.Equal(t, "button.load-more", descriptor.HybridClick.Selector)
	require.NotNil(t, descriptor.HybridScroll)
	assert.NotEmpty(t, descriptor.HybridScroll.ScrollPositions)
	assert.Equal(t, []string{"button.load-more"}, driver.clicked)
}
