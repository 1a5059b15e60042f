// Package session owns one browser page per operator session and serializes every
// operation against it (§5 Concurrency & Resource Model: single-threaded cooperative
// ownership, one in-flight operation at a time). It wires C1-C10 together and
// implements the control channel's Dispatcher.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/assistedscrape/engine/internal/analyzer"
	"github.com/assistedscrape/engine/internal/browserdrv"
	"github.com/assistedscrape/engine/internal/config"
	"github.com/assistedscrape/engine/internal/detector"
	"github.com/assistedscrape/engine/internal/extraction"
	"github.com/assistedscrape/engine/internal/lazyload"
	"github.com/assistedscrape/engine/internal/logging"
	"github.com/assistedscrape/engine/internal/models"
	"github.com/assistedscrape/engine/internal/netwatch"
	"github.com/assistedscrape/engine/internal/pagination"
	"github.com/assistedscrape/engine/internal/popup"
	"github.com/assistedscrape/engine/internal/probe"
)

// Session holds one operator's live page and every component bound to it.
type Session struct {
	ID     string
	driver browserdrv.Driver

	probe      *probe.Probe
	detector   *detector.Detector
	pagination *pagination.Detector
	popup      *popup.Handler
	extraction *extraction.Engine
	netwatch   *netwatch.Watcher

	cfg config.Config

	// mu is the per-session in-flight-operation exclusion guard: exactly one
	// detect/extract/pagination/popup call may run against the page at a time.
	mu sync.Mutex

	ruleSet *models.RuleSet

	// history is the list of URLs this session has navigated to, oldest first, used
	// to answer url:history and to walk back/forward since the driver exposes no
	// native history stack.
	history      []string
	historyIndex int

	scrollTest *scrollTestState
}

// New builds a Session around an already-launched driver.
func New(id string, driver browserdrv.Driver, cfg config.Config) *Session {
	p := probe.New(driver)
	det := detector.New(p, cfg.Detection)
	return &Session{
		ID:         id,
		driver:     driver,
		probe:      p,
		detector:   det,
		pagination: pagination.New(driver, p, cfg.Pagination),
		popup:      popup.New(driver),
		extraction: extraction.New(driver, det),
		netwatch:   netwatch.New(driver),
		cfg:        cfg,
	}
}

// lock acquires the in-flight-operation guard, returning a release func. Use with
// defer release().
func (s *Session) lock() func() {
	s.mu.Lock()
	return s.mu.Unlock
}

// Navigate loads url, waits for the page to settle, and records the visit in the
// session's history.
func (s *Session) Navigate(ctx context.Context, url string) error {
	defer s.lock()()
	if err := s.driver.Goto(ctx, url); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	s.history = append(s.history[:s.historyIndex], url)
	s.historyIndex = len(s.history)
	return s.probe.WaitForPageStability(ctx)
}

// History returns every URL this session has visited, oldest first.
func (s *Session) History() []string {
	defer s.lock()()
	out := make([]string, len(s.history))
	copy(out, s.history)
	return out
}

// NavigateBack re-navigates to the previous entry in this session's history, if any.
func (s *Session) NavigateBack(ctx context.Context) (string, error) {
	defer s.lock()()
	if s.historyIndex <= 1 {
		return "", fmt.Errorf("no earlier history entry")
	}
	s.historyIndex--
	url := s.history[s.historyIndex-1]
	if err := s.driver.Goto(ctx, url); err != nil {
		return "", fmt.Errorf("navigate back: %w", err)
	}
	return url, s.probe.WaitForPageStability(ctx)
}

// NavigateForward re-navigates to the next entry in this session's history, if any.
func (s *Session) NavigateForward(ctx context.Context) (string, error) {
	defer s.lock()()
	if s.historyIndex >= len(s.history) {
		return "", fmt.Errorf("no later history entry")
	}
	url := s.history[s.historyIndex]
	s.historyIndex++
	if err := s.driver.Goto(ctx, url); err != nil {
		return "", fmt.Errorf("navigate forward: %w", err)
	}
	return url, s.probe.WaitForPageStability(ctx)
}

// AutoDetect runs the full C1-C5 product-detection cycle.
func (s *Session) AutoDetect(ctx context.Context) (models.DetectionResult, error) {
	defer s.lock()()
	return s.detector.Detect(ctx)
}

// TestSelector reports whether a candidate selector is valid and how many elements
// it currently matches.
func (s *Session) TestSelector(ctx context.Context, css string) (bool, int, error) {
	defer s.lock()()
	return s.probe.TestSelector(ctx, css)
}

// FindPattern groups the current page's candidates by structural fingerprint and
// returns the dominant pattern's member selectors, for the operator-facing
// "find repeating pattern" action.
func (s *Session) FindPattern(ctx context.Context) ([]string, error) {
	defer s.lock()()
	candidates, err := s.probe.GatherCandidates(ctx, s.detectionMaxCandidates())
	if err != nil {
		return nil, err
	}
	_, members, ok := analyzer.DominantGroup(candidates)
	if !ok {
		return nil, fmt.Errorf("no repeating pattern found")
	}
	return members, nil
}

func (s *Session) detectionMaxCandidates() int {
	if s.cfg.Detection.MaxCandidates > 0 {
		return s.cfg.Detection.MaxCandidates
	}
	return 500
}

// DetectPagination runs the C6 discover/verify/decide cycle.
func (s *Session) DetectPagination(ctx context.Context) (models.PaginationDescriptor, error) {
	defer s.lock()()
	return s.pagination.Decide(ctx)
}

// RunPopupActions executes a bounded pre-action sequence (C10).
func (s *Session) RunPopupActions(ctx context.Context, actions []models.PreAction) []models.ActionResult {
	defer s.lock()()
	return s.popup.Run(ctx, actions)
}

// PrepareLazyLoad runs the configured lazy-load strategy (C7) using the session's
// default config, independent of any persisted rule set.
func (s *Session) PrepareLazyLoad(ctx context.Context) error {
	defer s.lock()()
	handler := lazyload.New(s.driver, s.cfg.LazyLoad)
	return handler.Run(ctx)
}

// StartNetworkCapture subscribes the network interceptor (C8) in auto-detect mode.
func (s *Session) StartNetworkCapture() {
	s.netwatch.StartAutoDetect()
}

// StopNetworkCapture unsubscribes the network interceptor.
func (s *Session) StopNetworkCapture() {
	s.netwatch.Stop()
}

// NetworkProducts returns the patterns detected so far by the network interceptor.
func (s *Session) NetworkProducts() []models.DetectedPattern {
	return s.netwatch.DetectedPatterns()
}

// SetRuleSet installs the rule set this session extracts with, used by
// scrape:configure.
func (s *Session) SetRuleSet(rs *models.RuleSet) {
	s.ruleSet = rs
}

// ExtractContainer runs one extraction pass against the currently configured rule
// set (C9).
func (s *Session) ExtractContainer(ctx context.Context, sourceURL string) ([]models.ProductRecord, error) {
	defer s.lock()()
	if s.ruleSet == nil {
		return nil, fmt.Errorf("no rule set configured for this session")
	}
	return s.extraction.ExtractAll(ctx, s.ruleSet, sourceURL)
}

// Close tears the session's page down: stops the network listeners, removes route
// handlers implicitly via driver.Close, and releases the underlying browser. Treats
// outstanding-evaluate cancellation as benign per §5.
func (s *Session) Close() {
	s.netwatch.Stop()
	if err := s.driver.Close(); err != nil {
		logging.GetLogger().Warn("session teardown: driver close reported an error", map[string]any{
			"sessionId": s.ID,
			"error":     err.Error(),
		})
	}
}
