// Package models holds the data types shared across the detection, pagination,
// lazy-load, extraction and control-channel packages.
package models

import "time"

// BBox is an axis-aligned bounding box in viewport pixels.
type BBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Area returns width*height, used by bbox-size filters across C1/C5/C6.
func (b BBox) Area() float64 { return b.Width * b.Height }

// StructuralSignals captures the structural bits of an Element Signal.
type StructuralSignals struct {
	SemanticTag      bool `json:"semanticTag"`
	ProductDataAttr  bool `json:"productDataAttr"`
	SchemaOrgProduct bool `json:"schemaOrgProduct"`
	NestingDepth     int  `json:"nestingDepth"`
}

// VisualSignals captures the visual bits of an Element Signal.
type VisualSignals struct {
	BBox           BBox    `json:"bbox"`
	AspectRatio    float64 `json:"aspectRatio"`
	WidthRatio     float64 `json:"widthRatio"`
	HeightRatio    float64 `json:"heightRatio"`
	ParentIsGrid   bool    `json:"parentIsGrid"`
	SiblingCount   int     `json:"siblingCount"`
	SimilarSibling bool    `json:"similarSibling"`
}

// ContentSignals captures the content bits of an Element Signal.
type ContentSignals struct {
	ImageCount      int  `json:"imageCount"`
	TextLength      int  `json:"textLength"`
	LinkCount       int  `json:"linkCount"`
	PriceCount      int  `json:"priceCount"`
	HasProductLink  bool `json:"hasProductLink"`
	HasTitleHeading bool `json:"hasTitleHeading"`
}

// ContextSignals captures the context bits of an Element Signal.
type ContextSignals struct {
	ParentTag            string  `json:"parentTag"`
	StructuralSimilarity float64 `json:"structuralSimilarity"`
}

// ElementSignals is the flat per-candidate record produced by the DOM probe.
type ElementSignals struct {
	Selector   string            `json:"selector"`
	Tag        string            `json:"tag"`
	Structural StructuralSignals `json:"structural"`
	Visual     VisualSignals     `json:"visual"`
	Content    ContentSignals    `json:"content"`
	Context    ContextSignals    `json:"context"`
}

// ScoreBreakdown is the four-category subscore breakdown behind a total score.
type ScoreBreakdown struct {
	Structural float64 `json:"structural"`
	Visual     float64 `json:"visual"`
	Content    float64 `json:"content"`
	Context    float64 `json:"context"`
}

// ElementScore is the scored candidate record produced by the element scorer.
type ElementScore struct {
	Selector         string         `json:"selector"`
	TagName          string         `json:"tagName"`
	TotalScore       float64        `json:"totalScore"`
	Confidence       float64        `json:"confidence"`
	Breakdown        ScoreBreakdown `json:"breakdown"`
	Signals          ElementSignals `json:"signals"`
	PatternGroup     string         `json:"patternGroup,omitempty"`
	PatternGroupSize int            `json:"patternGroupSize,omitempty"`
}

// Fingerprint is a hash of tag path, filtered class patterns and a child-structure
// summary, used to group candidates into repeating patterns.
type Fingerprint struct {
	TagPath         []string `json:"tagPath"`
	ClassPatterns   []string `json:"classPatterns"`
	NestingDepth    int      `json:"nestingDepth"`
	ChildStructHash string   `json:"childStructureHash"`
	Hash            string   `json:"hash"`
}

// SiblingAnalysis is the result of sibling-group analysis.
type SiblingAnalysis struct {
	Count           int     `json:"count"`
	SimilarityScore float64 `json:"similarityScore"`
	GridLikelihood  float64 `json:"gridLikelihood"`
}

// ContentClass enumerates the content classifier's output labels.
type ContentClass string

const (
	ClassProduct  ContentClass = "product"
	ClassBanner   ContentClass = "banner"
	ClassAd       ContentClass = "ad"
	ClassCategory ContentClass = "category"
	ClassUI       ContentClass = "ui"
	ClassUnknown  ContentClass = "unknown"
)

// Classification is a labeled candidate with a confidence.
type Classification struct {
	Class      ContentClass `json:"class"`
	Confidence float64      `json:"confidence"`
}

// DetectionResult is the terminal output of the product detector.
type DetectionResult struct {
	SelectedElement     *SelectedElement `json:"selectedElement,omitempty"`
	Confidence          float64          `json:"confidence"`
	FallbackRecommended bool             `json:"fallbackRecommended"`
	Reason              string           `json:"reason,omitempty"`
	AllCandidates       []ElementScore   `json:"allCandidates"`
	DominantPattern     *DominantPattern `json:"dominantPattern,omitempty"`
}

// SelectedElement names the chosen container in both specific and generic form.
type SelectedElement struct {
	SpecificSelector string `json:"specificSelector"`
	GenericSelector  string `json:"genericSelector"`
	BBox             BBox   `json:"bbox"`
}

// DominantPattern summarizes the largest fingerprint group observed in a detect cycle.
type DominantPattern struct {
	Hash           string `json:"hash"`
	Count          int    `json:"count"`
	SampleSelector string `json:"sampleSelector"`
}

// PaginationKind tags the variant carried by a PaginationDescriptor.
type PaginationKind string

const (
	PaginationNextClick      PaginationKind = "next_click"
	PaginationURLOffset      PaginationKind = "url_offset"
	PaginationInfiniteScroll PaginationKind = "infinite_scroll"
	PaginationHybrid         PaginationKind = "hybrid"
	PaginationNone           PaginationKind = "none"
)

// OffsetStyle distinguishes page-number style from raw-offset style pagination.
type OffsetStyle string

const (
	OffsetStylePage   OffsetStyle = "page"
	OffsetStyleOffset OffsetStyle = "offset"
)

// OffsetPattern describes a detected URL-offset pagination scheme.
type OffsetPattern struct {
	Key       string      `json:"key"`
	Start     int         `json:"start"`
	Increment int         `json:"increment"`
	Style     OffsetStyle `json:"style"`
}

// PaginationDescriptor is a tagged union; only the fields matching Kind are meaningful.
// Flat struct rather than an interface hierarchy, matching the teacher's preference for
// plain structs over type switches on unexported interfaces.
type PaginationDescriptor struct {
	Kind            PaginationKind        `json:"kind"`
	Selector        string                `json:"selector,omitempty"`
	Offset          *OffsetPattern        `json:"offset,omitempty"`
	ScrollPositions []float64             `json:"scrollPositions,omitempty"`
	HybridClick     *PaginationDescriptor `json:"click,omitempty"`
	HybridScroll    *PaginationDescriptor `json:"scroll,omitempty"`
}

// PaginationCandidateKind enumerates the discover-phase candidate kinds.
type PaginationCandidateKind string

const (
	CandidateNumbered   PaginationCandidateKind = "numbered"
	CandidateNextButton PaginationCandidateKind = "next_button"
	CandidateLoadMore   PaginationCandidateKind = "load_more"
)

// PaginationCandidate is one ranked candidate from the discover phase.
type PaginationCandidate struct {
	Selector   string                  `json:"selector"`
	Kind       PaginationCandidateKind `json:"kind"`
	Text       string                  `json:"text"`
	Confidence float64                 `json:"confidence"`
	BBox       BBox                    `json:"bbox"`
}

// ExtractionType enumerates how a field's raw value is pulled from the DOM.
type ExtractionType string

const (
	ExtractText      ExtractionType = "text"
	ExtractHref      ExtractionType = "href"
	ExtractSrc       ExtractionType = "src"
	ExtractAttribute ExtractionType = "attribute"
	ExtractInnerHTML ExtractionType = "innerHTML"
)

// FieldRole enumerates the semantic roles a selector can be grouped under.
type FieldRole string

const (
	RoleTitle         FieldRole = "title"
	RolePrice         FieldRole = "price"
	RoleOriginalPrice FieldRole = "originalPrice"
	RoleSalePrice     FieldRole = "salePrice"
	RoleURL           FieldRole = "url"
	RoleImage         FieldRole = "image"
)

// FieldRule is one prioritized selector for one field role.
type FieldRule struct {
	Role           FieldRole      `json:"role"`
	Selector       string         `json:"selector"`
	ExtractionType ExtractionType `json:"extractionType"`
	AttributeName  string         `json:"attributeName,omitempty"`
	Priority       int            `json:"priority"`
}

// PreAction is one scripted action in a dismiss/pre-action sequence.
type PreAction struct {
	Type      string `json:"type"`
	Selector  string `json:"selector"`
	Value     string `json:"value,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// LazyLoadConfig configures the lazy-load handler.
type LazyLoadConfig struct {
	ScrollStrategy      string   `json:"scrollStrategy"`
	ScrollDelayMS       int      `json:"scrollDelay"`
	MaxScrollIterations int      `json:"maxScrollIterations"`
	StabilityTimeoutMS  int      `json:"stabilityTimeout"`
	RapidScrollStep     int      `json:"rapidScrollStep"`
	RapidScrollDelayMS  int      `json:"rapidScrollDelay"`
	LoadingIndicators   []string `json:"loadingIndicators,omitempty"`
}

// RuleSet is the persisted extraction configuration an operator confirms and reuses.
type RuleSet struct {
	ID             string                `json:"id"`
	Name           string                `json:"name"`
	URL            string                `json:"url,omitempty"`
	Country        string                `json:"country,omitempty"`
	CompetitorType string                `json:"competitor_type,omitempty"`
	ItemContainer  string                `json:"itemContainer,omitempty"`
	Fields         []FieldRule           `json:"fields"`
	Pagination     *PaginationDescriptor `json:"pagination,omitempty"`
	DismissActions []PreAction           `json:"dismiss_actions,omitempty"`
	LazyLoad       *LazyLoadConfig       `json:"lazyLoad,omitempty"`
	TargetItems    int                   `json:"targetItems,omitempty"`
	MaxPages       int                   `json:"maxPages,omitempty"`
	CreatedAt      time.Time             `json:"created_at,omitempty"`
	UpdatedAt      time.Time             `json:"updated_at,omitempty"`
}

// ProductRecord is one extracted row. Raw is only populated when produced by the
// network interceptor.
type ProductRecord struct {
	ID        string         `json:"id"`
	Title     string         `json:"title,omitempty"`
	Price     float64        `json:"price,omitempty"`
	PriceRaw  string         `json:"priceRaw,omitempty"`
	Currency  string         `json:"currency,omitempty"`
	URL       string         `json:"url,omitempty"`
	ImageURL  string         `json:"imageUrl,omitempty"`
	SourceURL string         `json:"sourceUrl"`
	Domain    string         `json:"domain"`
	ScrapedAt time.Time      `json:"scrapedAt"`
	Raw       map[string]any `json:"raw,omitempty"`
}

// ActionResult is the per-action outcome returned by the popup/pre-action handler.
type ActionResult struct {
	Success bool   `json:"success"`
	Skipped bool   `json:"skipped"`
	Error   string `json:"error,omitempty"`
}

// NetworkFieldMappings maps semantic fields to dot-paths inside a captured JSON payload.
type NetworkFieldMappings struct {
	ID    string `json:"id,omitempty"`
	Title string `json:"title,omitempty"`
	Price string `json:"price,omitempty"`
	URL   string `json:"url,omitempty"`
	Image string `json:"image,omitempty"`
}

// NetworkCaptureConfig configures the network interceptor's configured mode.
type NetworkCaptureConfig struct {
	URLPatterns   []string              `json:"urlPatterns"`
	DataPath      string                `json:"dataPath,omitempty"`
	FieldMappings *NetworkFieldMappings `json:"fieldMappings,omitempty"`
}

// DetectedPattern is an auto-detected product-API URL pattern.
type DetectedPattern struct {
	URLPattern        string                `json:"urlPattern"`
	SampleData        map[string]any        `json:"sampleData,omitempty"`
	Confidence        float64               `json:"confidence"`
	SuggestedMappings *NetworkFieldMappings `json:"suggestedMappings,omitempty"`
}
