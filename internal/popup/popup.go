// Package popup implements the Popup/Pre-Action Handler (C10): a bounded sequence of
// click/type/select/wait/scroll actions run before detection or extraction, e.g. to
// dismiss a cookie banner or newsletter modal. Never fails the caller's operation —
// every action reports success/skipped/error independently.
package popup

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/assistedscrape/engine/internal/browserdrv"
	"github.com/assistedscrape/engine/internal/models"
)

const (
	defaultActionTimeout     = 3 * time.Second
	defaultDelayBetweenSteps = 200 * time.Millisecond
)

// Handler runs pre-action sequences against one session's page.
type Handler struct {
	driver browserdrv.Driver
}

// New builds a pre-action Handler bound to a driver.
func New(driver browserdrv.Driver) *Handler {
	return &Handler{driver: driver}
}

// Run executes actions in order, scoping out navigation away from the starting page
// for the duration of the sequence via a Route rule (released on return) so a dismiss
// click can't trigger an unexpected page load mid-sequence. Navigation to the same
// URL, including a same-URL-with-hash change, is allowed through; anything else is
// aborted. Each action waits up to actionTimeout for its selector to become visible;
// on timeout the action is recorded as skipped rather than failing the whole
// sequence.
func (h *Handler) Run(ctx context.Context, actions []models.PreAction) []models.ActionResult {
	if len(actions) == 0 {
		return nil
	}

	startURL, _ := h.driver.CurrentURL(ctx)
	remove := h.driver.Route(func(target string) browserdrv.RouteDecision {
		if isSamePage(startURL, target) {
			return browserdrv.RouteContinue
		}
		return browserdrv.RouteAbort
	})
	defer remove()

	results := make([]models.ActionResult, 0, len(actions))
	for i, action := range actions {
		results = append(results, h.runOne(ctx, action))
		if i < len(actions)-1 {
			_ = h.driver.WaitForTimeout(ctx, defaultDelayBetweenSteps)
		}
	}
	return results
}

// isSamePage reports whether target is the starting URL, ignoring any fragment —
// i.e. the same page or a same-URL-with-hash navigation. An unparseable startURL
// (empty, or CurrentURL failed) is never treated as matching, so navigation is
// aborted by default.
func isSamePage(startURL, target string) bool {
	start, errA := url.Parse(startURL)
	dest, errB := url.Parse(target)
	if errA != nil || errB != nil || startURL == "" {
		return false
	}
	start.Fragment = ""
	dest.Fragment = ""
	return start.String() == dest.String()
}

func (h *Handler) runOne(ctx context.Context, action models.PreAction) models.ActionResult {
	if action.Selector != "" {
		if err := h.driver.WaitForSelector(ctx, action.Selector, defaultActionTimeout); err != nil {
			return models.ActionResult{Skipped: true, Error: fmt.Sprintf("selector not visible: %v", err)}
		}
	}

	var err error
	switch action.Type {
	case "click":
		err = h.driver.Click(ctx, action.Selector)
	case "type":
		err = h.typeInto(ctx, action.Selector, action.Value)
	case "select":
		err = h.selectOption(ctx, action.Selector, action.Value)
	case "wait":
		err = h.driver.WaitForTimeout(ctx, defaultActionTimeout)
	case "scroll":
		err = h.driver.Evaluate(ctx, fmt.Sprintf("document.querySelector(%q)?.scrollIntoView({block:'center'})", action.Selector), new(any))
	default:
		return models.ActionResult{Skipped: true, Error: fmt.Sprintf("unknown action type %q", action.Type)}
	}

	if err != nil {
		return models.ActionResult{Success: false, Error: err.Error()}
	}
	return models.ActionResult{Success: true}
}

func (h *Handler) typeInto(ctx context.Context, selector, value string) error {
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) return false;
		el.focus();
		el.value = %q;
		el.dispatchEvent(new Event('input', { bubbles: true }));
		el.dispatchEvent(new Event('change', { bubbles: true }));
		return true;
	})()`, selector, value)
	var ok bool
	return h.driver.Evaluate(ctx, script, &ok)
}

func (h *Handler) selectOption(ctx context.Context, selector, value string) error {
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) return false;
		el.value = %q;
		el.dispatchEvent(new Event('change', { bubbles: true }));
		return true;
	})()`, selector, value)
	var ok bool
	return h.driver.Evaluate(ctx, script, &ok)
}
