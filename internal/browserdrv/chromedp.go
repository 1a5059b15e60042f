package browserdrv

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/assistedscrape/engine/internal/logging"
	"github.com/assistedscrape/engine/internal/utils"
)

// ChromeDriver is the chromedp-backed Driver implementation. One ChromeDriver owns
// exactly one browser page/tab, matching the one-session-one-page concurrency model:
// every method below runs a chromedp action sequence against the same browser context
// and none may be called concurrently from two goroutines on the same instance.
type ChromeDriver struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc

	mu           sync.Mutex
	responseSubs map[int]func(ResponseEvent)
	nextSubID    int
	routeHandler RouteHandler
	routeMu      sync.RWMutex
}

// New creates a browser context, preferring headless mode and falling back to
// non-headless if the headless launch's connectivity test fails.
func New(ctx context.Context, userAgent string) (*ChromeDriver, error) {
	logger := logging.GetLogger()

	d, err := attempt(ctx, userAgent, true)
	if err == nil {
		return d, nil
	}
	logger.Warn("headless browser launch failed, retrying non-headless", map[string]any{"error": err.Error()})

	d, err = attempt(ctx, userAgent, false)
	if err != nil {
		return nil, fmt.Errorf("browser launch failed in both headless and non-headless mode: %w", err)
	}
	return d, nil
}

func attempt(ctx context.Context, userAgent string, headless bool) (*ChromeDriver, error) {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.WindowSize(1920, 1080),
		chromedp.Flag("no-sandbox", true),
		chromedp.UserAgent(userAgent),
	}

	if headless {
		opts = append(opts, chromedp.Headless, chromedp.Flag("disable-blink-features", "AutomationControlled"))
	} else {
		opts = append(opts, chromedp.Flag("window-position", "0,0"), chromedp.Flag("window-size", "1,1"))
	}

	debugOutput := &bytes.Buffer{}
	opts = append(opts, chromedp.CombinedOutput(debugOutput))

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	var version string
	if err := chromedp.Run(browserCtx, chromedp.Evaluate(`navigator.userAgent`, &version)); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("connectivity test failed: %w (debug: %s)", err, debugOutput.String())
	}

	d := &ChromeDriver{
		allocCtx:     allocCtx,
		allocCancel:  allocCancel,
		ctx:          browserCtx,
		cancel:       browserCancel,
		responseSubs: make(map[int]func(ResponseEvent)),
	}
	d.installTargetListener()
	return d, nil
}

// FindChromePath locates a Chrome/Chromium binary across common OS install paths,
// falling back to PATH lookup.
func FindChromePath() string {
	var paths []string
	switch runtime.GOOS {
	case "windows":
		paths = []string{
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files\Microsoft\Edge\Application\msedge.exe`,
		}
	case "darwin":
		paths = []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
		}
	default:
		paths = []string{
			"/usr/bin/google-chrome",
			"/usr/bin/google-chrome-stable",
			"/usr/bin/chromium",
			"/usr/bin/chromium-browser",
			"/snap/bin/chromium",
		}
	}

	for _, p := range paths {
		if utils.FileExists(p) {
			return p
		}
	}
	for _, browser := range []string{"chrome", "google-chrome", "chromium", "chromium-browser"} {
		if path, err := exec.LookPath(browser); err == nil {
			return path
		}
	}
	return ""
}

func (d *ChromeDriver) installTargetListener() {
	chromedp.ListenTarget(d.ctx, func(ev any) {
		switch e := ev.(type) {
		case *network.EventResponseReceived:
			d.dispatchResponse(e)
		case *fetch.EventRequestPaused:
			d.handleRequestPaused(e)
		}
	})

	if err := chromedp.Run(d.ctx,
		network.Enable(),
		fetch.Enable().WithPatterns([]*fetch.RequestPattern{{RequestStage: fetch.RequestStageRequest}}),
	); err != nil {
		logging.GetLogger().Warn("failed to enable network/fetch domains", map[string]any{"error": err.Error()})
	}
}

func (d *ChromeDriver) dispatchResponse(e *network.EventResponseReceived) {
	contentType := ""
	if ct, ok := e.Response.Headers["content-type"]; ok {
		contentType = fmt.Sprintf("%v", ct)
	}

	ev := ResponseEvent{
		URL:         e.Response.URL,
		Status:      int(e.Response.Status),
		ContentType: contentType,
		Body: func() ([]byte, error) {
			var body []byte
			err := chromedp.Run(d.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
				data, err := network.GetResponseBody(e.RequestID).Do(ctx)
				if err != nil {
					return err
				}
				body = data
				return nil
			}))
			return body, err
		},
	}

	d.mu.Lock()
	subs := make([]func(ResponseEvent), 0, len(d.responseSubs))
	for _, s := range d.responseSubs {
		subs = append(subs, s)
	}
	d.mu.Unlock()

	for _, s := range subs {
		s(ev)
	}
}

func (d *ChromeDriver) handleRequestPaused(e *fetch.EventRequestPaused) {
	d.routeMu.RLock()
	handler := d.routeHandler
	d.routeMu.RUnlock()

	decision := RouteContinue
	if handler != nil {
		decision = handler(e.Request.URL)
	}

	go func() {
		if decision == RouteAbort {
			chromedp.Run(d.ctx, fetch.FailRequest(e.RequestID, network.ErrorReasonBlockedByClient))
			return
		}
		chromedp.Run(d.ctx, fetch.ContinueRequest(e.RequestID))
	}()
}

// Evaluate runs script in the page and unmarshals its JSON result into out.
func (d *ChromeDriver) Evaluate(ctx context.Context, script string, out any) error {
	return chromedp.Run(ctx, chromedp.Evaluate(script, out))
}

// Screenshot captures the current viewport as PNG bytes.
func (d *ChromeDriver) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := chromedp.Run(ctx, chromedp.CaptureScreenshot(&buf))
	return buf, err
}

// Goto navigates the page (chromedp.Navigate waits for the load event) and, if
// document.readyState is still not "complete" afterwards, waits one more second.
func (d *ChromeDriver) Goto(ctx context.Context, url string) error {
	return chromedp.Run(ctx,
		chromedp.Navigate(url),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return waitReadyState(ctx)
		}),
	)
}

func waitReadyState(ctx context.Context) error {
	var readyState string
	if err := chromedp.Evaluate(`document.readyState`, &readyState).Do(ctx); err != nil {
		return err
	}
	if readyState != "complete" {
		return chromedp.Sleep(1 * time.Second).Do(ctx)
	}
	return nil
}

// Click clicks the first element matching selector.
func (d *ChromeDriver) Click(ctx context.Context, selector string) error {
	return chromedp.Run(ctx, chromedp.Click(selector, chromedp.NodeVisible))
}

// MouseWheel dispatches a real wheel event, used by the lazy-load handler's rapid
// strategy and the pagination detector's scroll trial — JS window.scrollTo alone
// does not trigger every site's lazy loader.
func (d *ChromeDriver) MouseWheel(ctx context.Context, deltaX, deltaY float64) error {
	return chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var dims [2]float64
		if err := chromedp.Evaluate(`[window.innerWidth, window.innerHeight]`, &dims).Do(ctx); err != nil {
			return err
		}
		return input.DispatchMouseEvent(input.MouseWheel, dims[0]/2, dims[1]/2).
			WithDeltaX(deltaX).
			WithDeltaY(deltaY).
			Do(ctx)
	}))
}

// WaitForTimeout sleeps, honoring ctx cancellation.
func (d *ChromeDriver) WaitForTimeout(ctx context.Context, dur time.Duration) error {
	return chromedp.Run(ctx, chromedp.Sleep(dur))
}

// WaitForSelector blocks until selector is visible or timeout elapses.
func (d *ChromeDriver) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return chromedp.Run(waitCtx, chromedp.WaitVisible(selector))
}

// OnResponse registers a listener for every HTTP response.
func (d *ChromeDriver) OnResponse(handler func(ResponseEvent)) (unsubscribe func()) {
	d.mu.Lock()
	id := d.nextSubID
	d.nextSubID++
	d.responseSubs[id] = handler
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.responseSubs, id)
			d.mu.Unlock()
		})
	}
}

// Route installs a request gate via the fetch domain.
func (d *ChromeDriver) Route(handler RouteHandler) (remove func()) {
	d.routeMu.Lock()
	d.routeHandler = handler
	d.routeMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.routeMu.Lock()
			d.routeHandler = nil
			d.routeMu.Unlock()
		})
	}
}

// Viewport reports the current viewport size.
func (d *ChromeDriver) Viewport(ctx context.Context) (Viewport, error) {
	var dims [2]int
	err := chromedp.Run(ctx, chromedp.Evaluate(`[window.innerWidth, window.innerHeight]`, &dims))
	return Viewport{Width: dims[0], Height: dims[1]}, err
}

// CurrentURL reports window.location.href.
func (d *ChromeDriver) CurrentURL(ctx context.Context) (string, error) {
	var url string
	err := chromedp.Run(ctx, chromedp.Evaluate(`window.location.href`, &url))
	return url, err
}

// Close releases the browser and allocator contexts. Safe to call more than once.
func (d *ChromeDriver) Close() error {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.allocCancel != nil {
		d.allocCancel()
		d.allocCancel = nil
	}
	return nil
}

// Context returns the underlying chromedp-bound context, for callers (the
// pagination/lazy-load/popup components) that need to pass it into chromedp actions
// composed outside this package, e.g. navigation restoration after a click trial.
func (d *ChromeDriver) Context() context.Context { return d.ctx }

// NavigateHistoryBack triggers page.Navigate with history delta -1, used to restore
// the pre-click-trial URL without a full reload when possible.
func (d *ChromeDriver) NavigateHistoryBack(ctx context.Context) error {
	return chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		history, _, cur, err := page.GetNavigationHistory().Do(ctx)
		if err != nil {
			return err
		}
		if cur <= 0 || int(cur) >= len(history) {
			return nil
		}
		return page.NavigateToHistoryEntry(history[cur-1].ID).Do(ctx)
	}))
}
