// Package extraction implements the Extraction Engine (C9): given a Rule Set, it runs
// the pre-action sequence, prepares lazy-loaded content, locates item containers
// (explicitly configured or synthesized via the product detector), and pulls one
// ProductRecord per container using priority-ordered field rules.
package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/assistedscrape/engine/internal/browserdrv"
	"github.com/assistedscrape/engine/internal/config"
	"github.com/assistedscrape/engine/internal/detector"
	"github.com/assistedscrape/engine/internal/lazyload"
	"github.com/assistedscrape/engine/internal/models"
	"github.com/assistedscrape/engine/internal/popup"
	"github.com/assistedscrape/engine/internal/utils"
)

// Engine runs the extraction pipeline for one session's page.
type Engine struct {
	driver   browserdrv.Driver
	popup    *popup.Handler
	detector *detector.Detector // optional: used only when a RuleSet has no ItemContainer
}

// New builds an extraction Engine. det may be nil if the caller always supplies an
// explicit ItemContainer selector.
func New(driver browserdrv.Driver, det *detector.Detector) *Engine {
	return &Engine{driver: driver, popup: popup.New(driver), detector: det}
}

type rawContainer struct {
	Fields    map[string]string `json:"fields"`
	DataAttrs struct {
		ProductID string `json:"productId"`
		SKU       string `json:"sku"`
		ItemID    string `json:"itemId"`
		Channel   string `json:"channel"`
	} `json:"dataAttrs"`
	InnerHTML string `json:"innerHTML"`
}

// ExtractAll runs one full extraction pass against the current page and returns one
// ProductRecord per matched, non-duplicate container.
func (e *Engine) ExtractAll(ctx context.Context, rs *models.RuleSet, sourceURL string) ([]models.ProductRecord, error) {
	if len(rs.DismissActions) > 0 {
		e.popup.Run(ctx, rs.DismissActions)
	}

	if rs.LazyLoad != nil {
		lazyCfg := toLazyLoadConfig(*rs.LazyLoad)
		lazyCfg.TargetProducts = rs.TargetItems
		handler := lazyload.New(e.driver, lazyCfg)
		if err := handler.Run(ctx); err != nil {
			return nil, fmt.Errorf("lazy-load preparation: %w", err)
		}
	}

	containerSelector := rs.ItemContainer
	if containerSelector == "" {
		if e.detector == nil {
			return nil, fmt.Errorf("no item container selector and no detector configured")
		}
		result, err := e.detector.Detect(ctx)
		if err != nil {
			return nil, fmt.Errorf("synthesize item container: %w", err)
		}
		if result.SelectedElement == nil {
			return nil, fmt.Errorf("detector found no product container")
		}
		containerSelector = result.SelectedElement.GenericSelector
	}

	rulesJSON, err := json.Marshal(rs.Fields)
	if err != nil {
		return nil, fmt.Errorf("marshal field rules: %w", err)
	}
	script := fmt.Sprintf(extractContainersScriptTemplate, containerSelector, string(rulesJSON))

	var raw []rawContainer
	if err := e.driver.Evaluate(ctx, script, &raw); err != nil {
		return nil, fmt.Errorf("extract containers: %w", err)
	}

	domain := hostOf(sourceURL)
	seen := make(map[string]bool, len(raw))
	records := make([]models.ProductRecord, 0, len(raw))
	now := time.Now()

	for _, c := range raw {
		id := identifierOf(c, sourceURL)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		record := models.ProductRecord{
			ID:        id,
			Title:     c.Fields[string(models.RoleTitle)],
			URL:       resolveIfSet(sourceURL, c.Fields[string(models.RoleURL)]),
			ImageURL:  resolveIfSet(sourceURL, c.Fields[string(models.RoleImage)]),
			SourceURL: sourceURL,
			Domain:    domain,
			ScrapedAt: now,
		}

		if raw, cur, ok := normalizePrice(firstNonEmpty(c.Fields[string(models.RoleSalePrice)], c.Fields[string(models.RolePrice)])); ok {
			record.Price = raw
			record.Currency = cur
			record.PriceRaw = c.Fields[string(models.RolePrice)]
		}

		records = append(records, record)
	}

	return records, nil
}

func resolveIfSet(base, relative string) string {
	if relative == "" {
		return ""
	}
	return utils.ResolveURL(base, relative)
}

// stripQueryAndFragment drops the query string and fragment from a URL, so two
// links to the same product that differ only by a tracking query string (e.g.
// "?ref=homepage") resolve to the same dedupe identifier. Falls back to the raw
// string if it doesn't parse as a URL.
func stripQueryAndFragment(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// identifierOf canonicalizes a container's product identifier: the URL resolved
// against sourceURL (query string and fragment stripped) if present, else a data
// attribute, else the heading text, else a hash of the raw innerHTML. A container
// with none of these, not even innerHTML, yields "".
func identifierOf(c rawContainer, sourceURL string) string {
	if u := c.Fields[string(models.RoleURL)]; u != "" {
		return resolveIfSet(sourceURL, stripQueryAndFragment(u))
	}
	if c.DataAttrs.ProductID != "" {
		return c.DataAttrs.ProductID
	}
	if c.DataAttrs.SKU != "" {
		return c.DataAttrs.SKU
	}
	if c.DataAttrs.ItemID != "" {
		return c.DataAttrs.ItemID
	}
	if c.DataAttrs.Channel != "" {
		return c.DataAttrs.Channel
	}
	if title := c.Fields[string(models.RoleTitle)]; title != "" {
		return title
	}
	if c.InnerHTML == "" {
		return ""
	}
	return utils.GenerateHash(c.InnerHTML)
}

func toLazyLoadConfig(m models.LazyLoadConfig) config.LazyLoadConfig {
	cfg := config.LazyLoadConfig{
		DefaultStrategy: m.ScrollStrategy,
		RapidScrollStep: m.RapidScrollStep,
		MaxIterations:   m.MaxScrollIterations,
	}
	if m.ScrollDelayMS > 0 {
		cfg.AdaptiveScrollDelay = time.Duration(m.ScrollDelayMS) * time.Millisecond
	}
	if m.RapidScrollDelayMS > 0 {
		cfg.RapidScrollDelay = time.Duration(m.RapidScrollDelayMS) * time.Millisecond
	}
	if m.StabilityTimeoutMS > 0 {
		cfg.StabilityTimeout = time.Duration(m.StabilityTimeoutMS) * time.Millisecond
	}
	return cfg
}
