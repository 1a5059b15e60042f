package extraction

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assistedscrape/engine/internal/browserdrv"
	"github.com/assistedscrape/engine/internal/models"
)

// fakeDriver is a minimal in-memory browserdrv.Driver stand-in. Evaluate ignores the
// script it's handed and serves a fixed set of containers, letting tests drive
// ExtractAll without a live DOM.
type fakeDriver struct {
	containers []rawContainer
}

func (f *fakeDriver) Evaluate(ctx context.Context, script string, out any) error {
	ptr, ok := out.(*[]rawContainer)
	if !ok {
		return nil
	}
	*ptr = f.containers
	return nil
}
func (f *fakeDriver) Screenshot(ctx context.Context) ([]byte, error) { return nil, nil }
func (f *fakeDriver) Goto(ctx context.Context, url string) error     { return nil }
func (f *fakeDriver) Click(ctx context.Context, selector string) error { return nil }
func (f *fakeDriver) MouseWheel(ctx context.Context, dx, dy float64) error { return nil }
func (f *fakeDriver) WaitForTimeout(ctx context.Context, d time.Duration) error {
	return nil
}
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

func fieldRules() []models.FieldRule {
	return []models.FieldRule{
		{Role: models.RoleTitle, Selector: ".title", Priority: 1},
		{Role: models.RolePrice, Selector: ".price", Priority: 1},
		{Role: models.RoleURL, Selector: ":parent-link", Priority: 1},
		{Role: models.RoleImage, Selector: "img", ExtractionType: models.ExtractSrc, Priority: 1},
	}
}

func TestExtractAll_MapsFieldsAndNormalizesPrice(t *testing.T) {
	driver := &fakeDriver{containers: []rawContainer{
		{Fields: map[string]string{
			"title": "Widget",
			"price": "$19.99",
			"url":   "/p/widget",
			"image": "/img/widget.jpg",
		}},
	}}
	engine := New(driver, nil)
	rs := &models.RuleSet{Fields: fieldRules(), ItemContainer: ".product-card"}

	records, err := engine.ExtractAll(context.Background(), rs, "https://example.com/category")
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, "Widget", r.Title)
	assert.Equal(t, "https://example.com/p/widget", r.URL)
	assert.Equal(t, "https://example.com/img/widget.jpg", r.ImageURL)
	assert.InDelta(t, 19.99, r.Price, 0.001)
	assert.Equal(t, "example.com", r.Domain)
	assert.Equal(t, "https://example.com/category", r.SourceURL)
}

func TestExtractAll_PrefersSalePriceOverListPrice(t *testing.T) {
	driver := &fakeDriver{containers: []rawContainer{
		{Fields: map[string]string{
			"title":     "Widget",
			"price":     "$29.99",
			"salePrice": "$19.99",
		}},
	}}
	engine := New(driver, nil)
	rs := &models.RuleSet{Fields: fieldRules(), ItemContainer: ".product-card"}

	records, err := engine.ExtractAll(context.Background(), rs, "https://example.com")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.InDelta(t, 19.99, records[0].Price, 0.001)
}

func TestExtractAll_DeduplicatesByIdentifier(t *testing.T) {
	driver := &fakeDriver{containers: []rawContainer{
		{Fields: map[string]string{"title": "Widget", "url": "/p/widget"}},
		{Fields: map[string]string{"title": "Widget (dup)", "url": "/p/widget"}},
	}}
	engine := New(driver, nil)
	rs := &models.RuleSet{Fields: fieldRules(), ItemContainer: ".product-card"}

	records, err := engine.ExtractAll(context.Background(), rs, "https://example.com")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestExtractAll_DeduplicatesURLsDifferingOnlyByQueryString(t *testing.T) {
	driver := &fakeDriver{containers: []rawContainer{
		{Fields: map[string]string{"title": "Widget", "url": "/p/widget?ref=homepage"}},
		{Fields: map[string]string{"title": "Widget", "url": "/p/widget?ref=search#reviews"}},
	}}
	engine := New(driver, nil)
	rs := &models.RuleSet{Fields: fieldRules(), ItemContainer: ".product-card"}

	records, err := engine.ExtractAll(context.Background(), rs, "https://example.com")
	require.NoError(t, err)
	require.Len(t, records, 1, "both containers resolve to the same URL once the query string and fragment are stripped")
	assert.Equal(t, "https://example.com/p/widget", records[0].ID)
}

func TestExtractAll_FallsBackToDataAttrsThenTitleThenHash(t *testing.T) {
	withSKU := rawContainer{Fields: map[string]string{"title": "A"}}
	withSKU.DataAttrs.SKU = "sku-1"
	titleOnly := rawContainer{Fields: map[string]string{"title": "B"}}
	hashOnly := rawContainer{InnerHTML: "<div>no identifying fields</div>"}

	driver := &fakeDriver{containers: []rawContainer{withSKU, titleOnly, hashOnly}}
	engine := New(driver, nil)
	rs := &models.RuleSet{Fields: fieldRules(), ItemContainer: ".product-card"}

	records, err := engine.ExtractAll(context.Background(), rs, "https://example.com")
	require.NoError(t, err)
	require.Len(t, records, 3)

	ids := map[string]bool{}
	for _, r := range records {
		assert.NotEmpty(t, r.ID)
		ids[r.ID] = true
	}
	assert.Len(t, ids, 3, "each container must yield a distinct identifier")
}

func TestExtractAll_SkipsContainersWithNoIdentifier(t *testing.T) {
	driver := &fakeDriver{containers: []rawContainer{
		{Fields: map[string]string{}, InnerHTML: ""},
	}}
	engine := New(driver, nil)
	rs := &models.RuleSet{Fields: fieldRules(), ItemContainer: ".product-card"}

	records, err := engine.ExtractAll(context.Background(), rs, "https://example.com")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestExtractAll_RequiresContainerSelectorOrDetector(t *testing.T) {
	engine := New(&fakeDriver{}, nil)
	rs := &models.RuleSet{Fields: fieldRules()}

	_, err := engine.ExtractAll(context.Background(), rs, "https://example.com")
	assert.Error(t, err)
}

func TestExtractAll_RunsDismissActionsBeforeExtracting(t *testing.T) {
	driver := &fakeDriver{containers: []rawContainer{
		{Fields: map[string]string{"title": "Widget"}},
	}}
	engine := New(driver, nil)
	rs := &models.RuleSet{
		Fields:        fieldRules(),
		ItemContainer: ".product-card",
		DismissActions: []models.PreAction{
			{Type: "click", Selector: "#cookie-accept"},
		},
	}

	_, err := engine.ExtractAll(context.Background(), rs, "https://example.com")
	require.NoError(t, err)
}
