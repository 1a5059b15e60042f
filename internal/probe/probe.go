// Package probe is the sole owner of script injection into the live page (C1 DOM
// Probe): it installs the page-side helper namespace, runs the candidate sweeps, and
// offers selector-testing and bounding-box utilities on top of a browserdrv.Driver.
package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/assistedscrape/engine/internal/browserdrv"
	"github.com/assistedscrape/engine/internal/models"
)

// Candidate is one raw candidate returned by gatherCandidates, carrying both the
// spec's ElementSignals and the extra descriptors (classes, child summaries) the
// structural analyzer needs to build a Fingerprint.
type Candidate struct {
	Selector       string                `json:"selector"`
	Tag            string                `json:"tag"`
	Classes        []string              `json:"classes"`
	Structural     models.StructuralSignals `json:"structural"`
	Visual         models.VisualSignals     `json:"visual"`
	Content        models.ContentSignals    `json:"content"`
	Context        models.ContextSignals    `json:"context"`
	ChildSummaries []string              `json:"childSummaries"`
}

// Signals converts a Candidate into the spec's flat ElementSignals record.
func (c Candidate) Signals() models.ElementSignals {
	return models.ElementSignals{
		Selector:   c.Selector,
		Tag:        c.Tag,
		Structural: c.Structural,
		Visual:     c.Visual,
		Content:    c.Content,
		Context:    c.Context,
	}
}

// Probe drives a single session's page through the injected helper namespace.
type Probe struct {
	driver browserdrv.Driver
}

// New builds a Probe bound to driver.
func New(driver browserdrv.Driver) *Probe {
	return &Probe{driver: driver}
}

// Inject installs the page-side helpers. Idempotent: the page itself checks a
// sentinel, so calling Inject twice is safe and cheap.
func (p *Probe) Inject(ctx context.Context) error {
	var ok bool
	if err := p.driver.Evaluate(ctx, injectScript, &ok); err != nil {
		return fmt.Errorf("inject helpers: %w", err)
	}
	if !ok {
		return fmt.Errorf("inject helpers: page reported failure")
	}
	return nil
}

// WaitForPageStability waits for document "complete" readyState plus a brief render
// tick, matching the grace period the pagination/lazy-load trials rely on before
// sampling counts.
func (p *Probe) WaitForPageStability(ctx context.Context) error {
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		var ready bool
		if err := p.driver.Evaluate(ctx, waitForStabilityScript, &ready); err != nil {
			return fmt.Errorf("wait for stability: %w", err)
		}
		if ready {
			return p.driver.WaitForTimeout(ctx, 150*time.Millisecond)
		}
		if err := p.driver.WaitForTimeout(ctx, 200*time.Millisecond); err != nil {
			return err
		}
	}
	return nil
}

// GatherCandidates returns up to maxCandidates normalized candidate records using the
// six in-page sweeps, skipping any element an earlier sweep already returned.
func (p *Probe) GatherCandidates(ctx context.Context, maxCandidates int) ([]Candidate, error) {
	if err := p.Inject(ctx); err != nil {
		return nil, err
	}

	script := fmt.Sprintf(`window.__scraper.gatherCandidates(%d)`, maxCandidates)
	var candidates []Candidate
	if err := p.driver.Evaluate(ctx, script, &candidates); err != nil {
		return nil, fmt.Errorf("gather candidates: %w", err)
	}
	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}
	return candidates, nil
}

// TestSelector reports whether css is syntactically valid and how many elements it
// currently matches in the live document.
func (p *Probe) TestSelector(ctx context.Context, css string) (valid bool, count int, err error) {
	script := fmt.Sprintf(`window.__scraper.testSelector(%q)`, css)
	var result struct {
		Valid bool `json:"valid"`
		Count int  `json:"count"`
	}
	if err := p.driver.Evaluate(ctx, script, &result); err != nil {
		return false, 0, fmt.Errorf("test selector: %w", err)
	}
	return result.Valid, result.Count, nil
}

// GetBoundingBox returns the bounding box of the first element matching css, or nil
// if it does not match any element.
func (p *Probe) GetBoundingBox(ctx context.Context, css string) (*models.BBox, error) {
	script := fmt.Sprintf(`window.__scraper.getBoundingBox(%q)`, css)
	var box *models.BBox
	if err := p.driver.Evaluate(ctx, script, &box); err != nil {
		return nil, fmt.Errorf("get bounding box: %w", err)
	}
	return box, nil
}

// ExtractContainerContent returns the inner HTML of the first element matching css.
func (p *Probe) ExtractContainerContent(ctx context.Context, css string) (string, error) {
	script := fmt.Sprintf(`window.__scraper.extractContainerContent(%q)`, css)
	var html string
	if err := p.driver.Evaluate(ctx, script, &html); err != nil {
		return "", fmt.Errorf("extract container content: %w", err)
	}
	return html, nil
}

// GetLinkAtPoint returns the href of the nearest anchor ancestor of the element at
// viewport coordinates (x, y), or empty string if none.
func (p *Probe) GetLinkAtPoint(ctx context.Context, x, y float64) (string, error) {
	script := fmt.Sprintf(`window.__scraper.getLinkAtPoint(%f, %f)`, x, y)
	var href string
	if err := p.driver.Evaluate(ctx, script, &href); err != nil {
		return "", fmt.Errorf("get link at point: %w", err)
	}
	return href, nil
}
