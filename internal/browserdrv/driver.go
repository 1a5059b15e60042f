// Package browserdrv defines the capability set every detection and extraction
// component drives the live page through, and a chromedp-backed implementation of it.
// C1-C10 never import chromedp directly; they hold a Driver.
package browserdrv

import (
	"context"
	"time"
)

// Viewport is the current browser viewport size in CSS pixels.
type Viewport struct {
	Width  int
	Height int
}

// ResponseEvent is the normalized shape of a single observed HTTP response, passed to
// every OnResponse subscriber (the network interceptor's only input).
type ResponseEvent struct {
	URL         string
	Status      int
	ContentType string
	Body        func() ([]byte, error) // lazy: most listeners filter on URL/content-type first
}

// RouteDecision tells the driver what to do with an intercepted navigation/request.
type RouteDecision int

const (
	RouteContinue RouteDecision = iota
	RouteAbort
)

// RouteHandler decides the fate of one intercepted request.
type RouteHandler func(url string) RouteDecision

// Driver is the narrow interface every C1-C10 component is written against, matching
// the capability set of "any remote driver exposing evaluate/goto/click/wheel/waitFor/
// response events/route interception". A chromedp-backed implementation lives in
// chromedp.go; tests use in-package fake drivers defined in their own _test.go files.
type Driver interface {
	// Evaluate runs script in the page and unmarshals its JSON result into out.
	Evaluate(ctx context.Context, script string, out any) error
	// Screenshot captures the current viewport as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)
	// Goto navigates the page and waits for load.
	Goto(ctx context.Context, url string) error
	// Click clicks the first element matching selector.
	Click(ctx context.Context, selector string) error
	// MouseWheel dispatches a real wheel event at the viewport center.
	MouseWheel(ctx context.Context, deltaX, deltaY float64) error
	// WaitForTimeout sleeps, honoring ctx cancellation.
	WaitForTimeout(ctx context.Context, d time.Duration) error
	// WaitForSelector blocks until selector is present and visible, or timeout elapses.
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error
	// OnResponse registers a listener for every HTTP response; returns an unsubscribe
	// func that MUST be safe to call multiple times.
	OnResponse(handler func(ResponseEvent)) (unsubscribe func())
	// Route installs a request gate; requests for which handler returns RouteAbort are
	// failed at the network layer. Returns a remove func that MUST be safe to call
	// multiple times and idempotently release the rule.
	Route(handler RouteHandler) (remove func())
	// Viewport reports the current viewport size.
	Viewport(ctx context.Context) (Viewport, error)
	// CurrentURL reports window.location.href.
	CurrentURL(ctx context.Context) (string, error)
	// Close releases the underlying page/browser resources. Safe to call more than
	// once; outstanding operations may return benign cancellation errors.
	Close() error
}
