// Package lazyload implements the Lazy-Load Handler (C7): pre-navigation attribute
// rewriting plus the Adaptive and Rapid scroll strategies used to force off-screen
// content to materialize before extraction runs.
package lazyload

import (
	"context"
	"fmt"
	"time"

	"github.com/assistedscrape/engine/internal/browserdrv"
	"github.com/assistedscrape/engine/internal/config"
)

// defaultLoadingIndicators are the selectors checked for "is something still
// spinning" before the adaptive strategy declares the page stable.
var defaultLoadingIndicators = []string{
	`[class*="spinner" i]`, `[class*="loading" i]`, `[class*="skeleton" i]`, `[aria-busy="true"]`,
}

// Handler drives lazy-load preparation and scrolling for one session's page.
type Handler struct {
	driver browserdrv.Driver
	cfg    config.LazyLoadConfig
}

// New builds a lazy-load Handler bound to a driver and tuning config.
func New(driver browserdrv.Driver, cfg config.LazyLoadConfig) *Handler {
	return &Handler{driver: driver, cfg: cfg}
}

// Prepare rewrites lazy-loading attributes to their eager equivalents and installs
// the IntersectionObserver stub, then dispatches synthetic scroll/resize events.
// Idempotent: the observer stub guards itself with a sentinel.
func (h *Handler) Prepare(ctx context.Context) error {
	var n int
	if err := h.driver.Evaluate(ctx, prepareScript, &n); err != nil {
		return fmt.Errorf("prepare lazy-load attributes: %w", err)
	}
	var ok bool
	return h.driver.Evaluate(ctx, mutationStabilityScript, &ok)
}

// Run executes the configured strategy (adaptive or rapid), then force-loads any
// still-lazy images and restores scroll position to the top.
func (h *Handler) Run(ctx context.Context) error {
	if err := h.Prepare(ctx); err != nil {
		return err
	}

	var err error
	switch h.cfg.DefaultStrategy {
	case "rapid":
		err = h.runRapid(ctx)
	default:
		err = h.runAdaptive(ctx)
	}
	if err != nil {
		return err
	}

	var ok bool
	if evalErr := h.driver.Evaluate(ctx, forceLoadAllScript, &ok); evalErr != nil {
		return fmt.Errorf("force-load remaining lazy images: %w", evalErr)
	}
	var result any
	return h.driver.Evaluate(ctx, `window.scrollTo(0, 0)`, &result)
}

func (h *Handler) scrollDelay() time.Duration {
	if h.cfg.AdaptiveScrollDelay > 0 {
		return h.cfg.AdaptiveScrollDelay
	}
	return 400 * time.Millisecond
}

func (h *Handler) stabilityTimeout() time.Duration {
	if h.cfg.StabilityTimeout > 0 {
		return h.cfg.StabilityTimeout
	}
	return 500 * time.Millisecond
}

func (h *Handler) maxIterations() int {
	if h.cfg.MaxIterations > 0 {
		return h.cfg.MaxIterations
	}
	return 100
}

func (h *Handler) loadingTimeout() time.Duration {
	if h.cfg.LoadingTimeout > 0 {
		return h.cfg.LoadingTimeout
	}
	return 3 * time.Second
}

// productCount queries the page for the current number of distinct link hrefs (or,
// with no links, distinct heading texts), used to bound the scroll strategies by
// cfg.TargetProducts.
func (h *Handler) productCount(ctx context.Context) (int, error) {
	var count int
	if err := h.driver.Evaluate(ctx, productCountScript, &count); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return count, nil
}

// targetReached reports whether cfg.TargetProducts is set and has been reached,
// used by the scroll strategies to exit early instead of running the full
// iteration/pass budget.
func (h *Handler) targetReached(ctx context.Context) (bool, error) {
	if h.cfg.TargetProducts <= 0 {
		return false, nil
	}
	count, err := h.productCount(ctx)
	if err != nil {
		return false, err
	}
	return count >= h.cfg.TargetProducts, nil
}

// runAdaptive steps down the page 400px at a time, waiting for DOM mutations to
// settle and loading indicators to vanish after each step, then makes a single
// upward retry pass in case an indicator appeared above the current scroll position.
func (h *Handler) runAdaptive(ctx context.Context) error {
	noProgress := 0
	var prevScrollY float64 = -1

	for i := 0; i < h.maxIterations(); i++ {
		if err := h.driver.MouseWheel(ctx, 0, 400); err != nil {
			return fmt.Errorf("adaptive scroll step: %w", err)
		}
		if err := h.driver.WaitForTimeout(ctx, h.scrollDelay()); err != nil {
			return err
		}
		if err := h.waitForQuiet(ctx); err != nil {
			return err
		}
		if err := h.waitForIndicatorsToVanish(ctx); err != nil {
			return err
		}

		reached, err := h.targetReached(ctx)
		if err != nil {
			return err
		}
		if reached {
			return nil
		}

		var scrollY float64
		if err := h.driver.Evaluate(ctx, scrollYScript, &scrollY); err != nil {
			return err
		}
		if scrollY == prevScrollY {
			noProgress++
		} else {
			noProgress = 0
		}
		prevScrollY = scrollY
		if noProgress >= 3 {
			break
		}
	}

	// upward retry pass: scroll back to top in two steps, giving above-the-fold
	// lazy content one more chance to materialize if it was skipped on the way down.
	var midResult any
	if err := h.driver.Evaluate(ctx, `window.scrollTo(0, document.body.scrollHeight/2)`, &midResult); err != nil {
		return err
	}
	if err := h.driver.WaitForTimeout(ctx, h.scrollDelay()); err != nil {
		return err
	}
	return h.waitForQuiet(ctx)
}

// runRapid dispatches larger, faster scroll steps across three down-then-up passes,
// trading precision for speed on pages whose lazy-load logic isn't picky about
// dwell time.
func (h *Handler) runRapid(ctx context.Context) error {
	step := h.cfg.RapidScrollStep
	if step <= 0 {
		step = 1200
	}
	delay := h.cfg.RapidScrollDelay
	if delay <= 0 {
		delay = 80 * time.Millisecond
	}

	const maxPasses = 3
	for pass := 0; pass < maxPasses; pass++ {
		for i := 0; i < 20; i++ {
			if err := h.driver.MouseWheel(ctx, 0, float64(step)); err != nil {
				return fmt.Errorf("rapid scroll down step: %w", err)
			}
			if err := h.driver.WaitForTimeout(ctx, delay); err != nil {
				return err
			}
			reached, err := h.targetReached(ctx)
			if err != nil {
				return err
			}
			if reached {
				return nil
			}
		}
		for i := 0; i < 20; i++ {
			if err := h.driver.MouseWheel(ctx, 0, float64(-step)); err != nil {
				return fmt.Errorf("rapid scroll up step: %w", err)
			}
			if err := h.driver.WaitForTimeout(ctx, delay); err != nil {
				return err
			}
		}
	}
	return nil
}

// waitForQuiet polls until no DOM mutation has been observed for the stability
// timeout, or gives up after roughly 3x that timeout.
func (h *Handler) waitForQuiet(ctx context.Context) error {
	deadline := time.Now().Add(3 * h.stabilityTimeout())
	for time.Now().Before(deadline) {
		var sinceMs float64
		if err := h.driver.Evaluate(ctx, msSinceLastMutationScript, &sinceMs); err != nil {
			return err
		}
		if time.Duration(sinceMs)*time.Millisecond >= h.stabilityTimeout() {
			return nil
		}
		if err := h.driver.WaitForTimeout(ctx, 100*time.Millisecond); err != nil {
			return err
		}
	}
	return nil
}

// waitForIndicatorsToVanish polls until none of the default loading-indicator
// selectors match a visible element, or the loading-timeout (default 3s) budget
// expires.
func (h *Handler) waitForIndicatorsToVanish(ctx context.Context) error {
	selectorsJSON := `["` + join(defaultLoadingIndicators, `","`) + `"]`
	script := fmt.Sprintf(loadingIndicatorVisibleScriptTemplate, selectorsJSON)

	deadline := time.Now().Add(h.loadingTimeout())
	for time.Now().Before(deadline) {
		var visible bool
		if err := h.driver.Evaluate(ctx, script, &visible); err != nil {
			return err
		}
		if !visible {
			return nil
		}
		if err := h.driver.WaitForTimeout(ctx, 150*time.Millisecond); err != nil {
			return err
		}
	}
	return nil
}

func join(items []string, sep string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += sep
		}
		out += s
	}
	return out
}
