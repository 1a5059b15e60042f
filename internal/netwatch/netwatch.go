// Package netwatch implements the Network Interceptor (C8): it subscribes to the
// driver's response stream and either extracts records from a configured API shape
// (Configured mode) or scores candidate product-API URL patterns on the fly
// (Auto-detect mode). Grounded on the teacher's network-response listening and
// confidence-scoring pattern in internal/scraper/media.go.
package netwatch

import (
	"encoding/json"
	"regexp"
	"strings"
	"sync"

	"github.com/assistedscrape/engine/internal/browserdrv"
	"github.com/assistedscrape/engine/internal/models"
)

// autoDetectPatterns are the nine URL shapes the Glossary names as likely product-API
// endpoints.
var autoDetectPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)/tile/\d+`),
	regexp.MustCompile(`(?i)/api/products?/`),
	regexp.MustCompile(`(?i)/graphql`),
	regexp.MustCompile(`(?i)/v\d+/items?/`),
	regexp.MustCompile(`(?i)/catalog/`),
	regexp.MustCompile(`(?i)/_next/data.*\.json`),
	regexp.MustCompile(`(?i)/product[s]?/\d+`),
	regexp.MustCompile(`(?i)/sku/`),
	regexp.MustCompile(`(?i)/item[s]?/`),
}

var digitRun = regexp.MustCompile(`\d+`)

// genericizeURL replaces digit runs with "*", the pattern-key form used both to
// dedupe samples and as the stored urlPattern on a DetectedPattern.
func genericizeURL(u string) string {
	return digitRun.ReplaceAllString(u, "*")
}

// fieldDictionary maps semantic roles to the synonym tokens the Glossary's
// field-name dictionary lists, used to score an unknown JSON field name.
var fieldDictionary = map[string][]string{
	"id":    {"id", "productid", "sku", "itemid", "variationid", "articleid"},
	"title": {"title", "name", "productname", "displayname", "label", "headline"},
	"price": {"price", "currentprice", "saleprice", "finalprice", "displayprice", "pricevalue"},
	"url":   {"url", "href", "link", "producturl", "pdpurl", "detailurl", "canonicalurl"},
	"image": {"image", "imageurl", "img", "thumbnail", "mainimage", "primaryimage", "pictureurl"},
}

// scoreFieldName scores a JSON field name against one semantic role: +25 for an
// exact case-insensitive match, +15 for a substring match, 0 otherwise.
func scoreFieldName(fieldName, role string) int {
	lower := strings.ToLower(fieldName)
	for _, token := range fieldDictionary[role] {
		if lower == token {
			return 25
		}
	}
	for _, token := range fieldDictionary[role] {
		if strings.Contains(lower, token) {
			return 15
		}
	}
	return 0
}

// Watcher subscribes to the driver's network responses and accumulates either
// configured-mode records or auto-detected patterns, depending on how it is run.
type Watcher struct {
	driver browserdrv.Driver

	mu       sync.Mutex
	unsub    func()
	records  []models.ProductRecord
	seenIDs  map[string]bool
	detected map[string]models.DetectedPattern
}

// New builds a Watcher bound to a driver. It does not start listening until Start is
// called.
func New(driver browserdrv.Driver) *Watcher {
	return &Watcher{
		driver:   driver,
		seenIDs:  make(map[string]bool),
		detected: make(map[string]models.DetectedPattern),
	}
}

// StartConfigured subscribes in Configured mode, extracting ProductRecords from any
// response matching one of cfg.URLPatterns using cfg.DataPath/cfg.FieldMappings.
func (w *Watcher) StartConfigured(cfg models.NetworkCaptureConfig) {
	w.mu.Lock()
	w.unsub = w.driver.OnResponse(func(e browserdrv.ResponseEvent) {
		if !matchesAny(e.URL, cfg.URLPatterns) {
			return
		}
		if !isJSONSuccess(e) {
			return
		}
		body, err := e.Body()
		if err != nil {
			return
		}
		var payload any
		if err := json.Unmarshal(body, &payload); err != nil {
			return
		}
		items := navigateDotPath(payload, cfg.DataPath)
		w.ingestConfigured(items, cfg.FieldMappings)
	})
	w.mu.Unlock()
}

// StartAutoDetect subscribes in Auto-detect mode, scoring every JSON response whose
// URL matches one of the nine known shapes and keeping the highest-confidence sample
// per genericized URL pattern.
func (w *Watcher) StartAutoDetect() {
	w.mu.Lock()
	w.unsub = w.driver.OnResponse(func(e browserdrv.ResponseEvent) {
		if !matchesAutoDetectShape(e.URL) {
			return
		}
		if !isJSONSuccess(e) {
			return
		}
		body, err := e.Body()
		if err != nil {
			return
		}
		var payload any
		if err := json.Unmarshal(body, &payload); err != nil {
			return
		}
		w.scoreAndKeep(e.URL, payload)
	})
	w.mu.Unlock()
}

// Stop unsubscribes from the driver's response stream.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.unsub != nil {
		w.unsub()
		w.unsub = nil
	}
}

// Records returns the records captured so far in Configured mode.
func (w *Watcher) Records() []models.ProductRecord {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]models.ProductRecord, len(w.records))
	copy(out, w.records)
	return out
}

// DetectedPatterns returns the highest-confidence sample observed per URL pattern in
// Auto-detect mode.
func (w *Watcher) DetectedPatterns() []models.DetectedPattern {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]models.DetectedPattern, 0, len(w.detected))
	for _, p := range w.detected {
		out = append(out, p)
	}
	return out
}

func matchesAny(u string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(u, p) {
			return true
		}
	}
	return false
}

func matchesAutoDetectShape(u string) bool {
	for _, re := range autoDetectPatterns {
		if re.MatchString(u) {
			return true
		}
	}
	return false
}

func isJSONSuccess(e browserdrv.ResponseEvent) bool {
	return e.Status == 200 && strings.Contains(strings.ToLower(e.ContentType), "json")
}

// navigateDotPath walks a dot-separated path ("data.items") into a decoded JSON
// value and returns the slice found there, or a single-element slice of the root
// value if path is empty.
func navigateDotPath(payload any, path string) []any {
	cur := payload
	if path != "" {
		for _, segment := range strings.Split(path, ".") {
			m, ok := cur.(map[string]any)
			if !ok {
				return nil
			}
			cur, ok = m[segment]
			if !ok {
				return nil
			}
		}
	}
	if arr, ok := cur.([]any); ok {
		return arr
	}
	return []any{cur}
}

func (w *Watcher) ingestConfigured(items []any, mappings *models.NetworkFieldMappings) {
	if mappings == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		record := models.ProductRecord{
			ID:    stringField(m, mappings.ID),
			Title: stringField(m, mappings.Title),
			URL:   stringField(m, mappings.URL),
			Raw:   m,
		}
		record.ImageURL = stringField(m, mappings.Image)
		if priceStr := stringField(m, mappings.Price); priceStr != "" {
			record.PriceRaw = priceStr
		}
		if record.ID == "" {
			record.ID = record.URL
		}
		if record.ID == "" || w.seenIDs[record.ID] {
			continue
		}
		w.seenIDs[record.ID] = true
		w.records = append(w.records, record)
	}
}

func stringField(m map[string]any, dotPath string) string {
	if dotPath == "" {
		return ""
	}
	var cur any = m
	for _, segment := range strings.Split(dotPath, ".") {
		asMap, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur, ok = asMap[segment]
		if !ok {
			return ""
		}
	}
	switch v := cur.(type) {
	case string:
		return v
	case float64:
		return json.Number(trimFloat(v)).String()
	default:
		return ""
	}
}

func trimFloat(v float64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

// scoreAndKeep recursively scans payload (up to depth 3) for object fields matching
// the field-name dictionary, requiring at least a title or price match plus a total
// score of 30+ before recording a candidate pattern, per the Auto-detect mode rules.
func (w *Watcher) scoreAndKeep(rawURL string, payload any) {
	best := scoreObject(payload, 0)
	if best.score < 30 || !(best.hasTitle || best.hasPrice) {
		return
	}

	pattern := genericizeURL(rawURL)
	confidence := float64(best.score) / 100
	if confidence > 1 {
		confidence = 1
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	existing, ok := w.detected[pattern]
	if ok && existing.Confidence >= confidence {
		return
	}
	sample, _ := payload.(map[string]any)
	w.detected[pattern] = models.DetectedPattern{
		URLPattern:        pattern,
		SampleData:        sample,
		Confidence:        confidence,
		SuggestedMappings: best.mappings,
	}
}

type fieldScan struct {
	score    int
	hasTitle bool
	hasPrice bool
	mappings *models.NetworkFieldMappings
}

// scoreObject recurses into nested objects/arrays up to depth 3, scoring every field
// name it finds against the dictionary and keeping the richest mapping found.
func scoreObject(payload any, depth int) fieldScan {
	if depth > 3 {
		return fieldScan{}
	}

	switch v := payload.(type) {
	case []any:
		best := fieldScan{}
		for _, item := range v {
			s := scoreObject(item, depth+1)
			if s.score > best.score {
				best = s
			}
		}
		return best
	case map[string]any:
		mappings := &models.NetworkFieldMappings{}
		total := 0
		hasTitle, hasPrice := false, false
		for key := range v {
			rolesScored := map[string]*string{
				"id":    &mappings.ID,
				"title": &mappings.Title,
				"price": &mappings.Price,
				"url":   &mappings.URL,
				"image": &mappings.Image,
			}
			for role, target := range rolesScored {
				s := scoreFieldName(key, role)
				if s == 0 {
					continue
				}
				total += s
				if *target == "" {
					*target = key
				}
				if role == "title" {
					hasTitle = true
				}
				if role == "price" {
					hasPrice = true
				}
			}
		}
		nested := fieldScan{}
		for _, val := range v {
			switch val.(type) {
			case map[string]any, []any:
				if s := scoreObject(val, depth+1); s.score > nested.score {
					nested = s
				}
			}
		}
		if nested.score > total {
			return nested
		}
		return fieldScan{score: total, hasTitle: hasTitle, hasPrice: hasPrice, mappings: mappings}
	default:
		return fieldScan{}
	}
}
