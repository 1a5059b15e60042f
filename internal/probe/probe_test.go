package probe

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assistedscrape/engine/internal/browserdrv"
	"github.com/assistedscrape/engine/internal/models"
)

// fakeDriver answers each helper-namespace call with a canned value keyed off the
// script text, letting these tests drive Probe without a live page.
type fakeDriver struct {
	candidates []Candidate
	box        *models.BBox
	href       string
	html       string
}

func (f *fakeDriver) Evaluate(ctx context.Context, script string, out any) error {
	switch {
	case strings.Contains(script, "testSelector"):
		ptr := out.(*struct {
			Valid bool `json:"valid"`
			Count int  `json:"count"`
		})
		ptr.Valid = true
		ptr.Count = 7
	case strings.Contains(script, "gatherCandidates"):
		*out.(*[]Candidate) = f.candidates
	case strings.Contains(script, "getBoundingBox"):
		*out.(**models.BBox) = f.box
	case strings.Contains(script, "getLinkAtPoint"):
		*out.(*string) = f.href
	case strings.Contains(script, "extractContainerContent"):
		*out.(*string) = f.html
	case out != nil:
		if ptr, ok := out.(*bool); ok {
			*ptr = true
		}
	}
	return nil
}
func (f *fakeDriver) Screenshot(ctx context.Context) ([]byte, error) { return nil, nil }
func (f *fakeDriver) Goto(ctx context.Context, url string) error     { return nil }
func (f *fakeDriver) Click(ctx context.Context, selector string) error { return nil }
func (f *fakeDriver) MouseWheel(ctx context.Context, dx, dy float64) error { return nil }
func (f *fakeDriver) WaitForTimeout(ctx context.Context, d time.Duration) error { return nil }
func (f *fakeDriver) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	return nil
}
func (f *fakeDriver) OnResponse(handler func(browserdrv.ResponseEvent)) func() { return func() {} }
func (f *fakeDriver) Route(handler browserdrv.RouteHandler) func()            { return func() {} }
func (f *fakeDriver) Viewport(ctx context.Context) (browserdrv.Viewport, error) {
	return browserdrv.Viewport{Width: 1280, Height: 720}, nil
}
func (f *fakeDriver) CurrentURL(ctx context.Context) (string, error) { return "https://example.com", nil }
func (f *fakeDriver) Close() error                                   { return nil }

func TestTestSelector_ReturnsValidityAndCount(t *testing.T) {
	p := New(&fakeDriver{})
	valid, count, err := p.TestSelector(context.Background(), ".product-card")
	require.NoError(t, err)
	assert.True(t, valid)
	assert.Equal(t, 7, count)
}

func TestGatherCandidates_CapsAtMaxCandidates(t *testing.T) {
	driver := &fakeDriver{candidates: make([]Candidate, 10)}
	p := New(driver)

	candidates, err := p.GatherCandidates(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, candidates, 3)
}

func TestGetBoundingBox_ReturnsNilWhenNoMatch(t *testing.T) {
	p := New(&fakeDriver{box: nil})
	box, err := p.GetBoundingBox(context.Background(), ".missing")
	require.NoError(t, err)
	assert.Nil(t, box)
}

func TestGetBoundingBox_ReturnsMatchedBox(t *testing.T) {
	p := New(&fakeDriver{box: &models.BBox{X: 1, Y: 2, Width: 3, Height: 4}})
	box, err := p.GetBoundingBox(context.Background(), ".product-card")
	require.NoError(t, err)
	require.NotNil(t, box)
	assert.Equal(t, 3.0, box.Width)
}

func TestGetLinkAtPoint_ReturnsHref(t *testing.T) {
	p := New(&fakeDriver{href: "https://example.com/p/1"})
	href, err := p.GetLinkAtPoint(context.Background(), 10, 20)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/p/1", href)
}

func TestExtractContainerContent_ReturnsHTML(t *testing.T) {
	p := New(&fakeDriver{html: "<div>hi</div>"})
	html, err := p.ExtractContainerContent(context.Background(), ".product-card")
	require.NoError(t, err)
	assert.Equal(t, "<div>hi</div>", html)
}

func TestCandidate_SignalsFlattensIntoElementSignals(t *testing.T) {
	c := Candidate{
		Selector:   ".product-card",
		Tag:        "div",
		Structural: models.StructuralSignals{NestingDepth: 2},
	}
	signals := c.Signals()
	assert.Equal(t, ".product-card", signals.Selector)
	assert.Equal(t, "div", signals.Tag)
	assert.Equal(t, 2, signals.Structural.NestingDepth)
}
