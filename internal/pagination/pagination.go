// Package pagination implements the Pagination Detector (C6): it discovers candidate
// pagination controls, verifies them with live click/scroll trials, and decides the
// resulting PaginationDescriptor (next-click, url-offset, infinite-scroll, hybrid, or
// none).
package pagination

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/assistedscrape/engine/internal/browserdrv"
	"github.com/assistedscrape/engine/internal/config"
	"github.com/assistedscrape/engine/internal/models"
	"github.com/assistedscrape/engine/internal/probe"
)

// sameSite reports whether two URLs share a registrable domain (eTLD+1). A
// pagination control that navigates off-site on click is almost always an
// ad or outbound link misclassified as a "next" button, never real pagination.
func sameSite(rawA, rawB string) bool {
	a, errA := url.Parse(rawA)
	b, errB := url.Parse(rawB)
	if errA != nil || errB != nil {
		return false
	}
	domA, errA := publicsuffix.EffectiveTLDPlusOne(a.Hostname())
	domB, errB := publicsuffix.EffectiveTLDPlusOne(b.Hostname())
	if errA != nil || errB != nil {
		return a.Hostname() == b.Hostname()
	}
	return domA == domB
}

// Detector drives the discover/verify/decide cycle for one session's page.
type Detector struct {
	driver browserdrv.Driver
	probe  *probe.Probe
	cfg    config.PaginationConfig
}

// New builds a pagination Detector bound to a driver, probe, and tuning config.
func New(driver browserdrv.Driver, p *probe.Probe, cfg config.PaginationConfig) *Detector {
	return &Detector{driver: driver, probe: p, cfg: cfg}
}

// Discover runs the discover phase and returns ranked pagination candidates. Never
// includes previous/disabled controls; the injected script filters those itself.
func (d *Detector) Discover(ctx context.Context) ([]models.PaginationCandidate, error) {
	var candidates []models.PaginationCandidate
	if err := d.driver.Evaluate(ctx, discoverScript, &candidates); err != nil {
		return nil, fmt.Errorf("discover pagination candidates: %w", err)
	}
	return candidates, nil
}

func (d *Detector) sampleIdentifiers(ctx context.Context) ([]string, error) {
	var ids []string
	if err := d.driver.Evaluate(ctx, identifierSampleScript, &ids); err != nil {
		return nil, fmt.Errorf("sample identifiers: %w", err)
	}
	return ids, nil
}

func newIdentifierCount(before, after []string) int {
	seen := make(map[string]bool, len(before))
	for _, b := range before {
		seen[b] = true
	}
	n := 0
	for _, a := range after {
		if !seen[a] {
			n++
		}
	}
	return n
}

// verifyResult captures what one click trial observed.
type verifyResult struct {
	newItems  int
	urlBefore string
	urlAfter  string
}

// verifyClick clicks candidate, waits for stability, samples identifiers before and
// after, and always restores the original URL afterward — mandatory per spec.md §4.6,
// since a click trial must never leave the page somewhere the caller didn't ask for.
func (d *Detector) verifyClick(ctx context.Context, candidate models.PaginationCandidate) (verifyResult, error) {
	originalURL, err := d.driver.CurrentURL(ctx)
	if err != nil {
		return verifyResult{}, fmt.Errorf("read current url: %w", err)
	}
	defer func() {
		_ = d.driver.Goto(ctx, originalURL)
		_ = d.probe.WaitForPageStability(ctx)
	}()

	before, err := d.sampleIdentifiers(ctx)
	if err != nil {
		return verifyResult{}, err
	}

	trialCtx, cancel := context.WithTimeout(ctx, d.trialTimeout())
	defer cancel()
	if err := d.driver.Click(trialCtx, candidate.Selector); err != nil {
		return verifyResult{urlBefore: originalURL, urlAfter: originalURL}, nil
	}
	if err := d.probe.WaitForPageStability(trialCtx); err != nil {
		return verifyResult{urlBefore: originalURL, urlAfter: originalURL}, nil
	}

	after, err := d.sampleIdentifiers(trialCtx)
	if err != nil {
		return verifyResult{urlBefore: originalURL, urlAfter: originalURL}, nil
	}
	afterURL, _ := d.driver.CurrentURL(trialCtx)

	return verifyResult{
		newItems:  newIdentifierCount(before, after),
		urlBefore: originalURL,
		urlAfter:  afterURL,
	}, nil
}

func (d *Detector) trialTimeout() time.Duration {
	if d.cfg.TrialTimeout > 0 {
		return d.cfg.TrialTimeout
	}
	return 8 * time.Second
}

// scrollResult captures what the scroll trial observed.
type scrollResult struct {
	positions []float64
	newItems  int
}

// verifyScroll steps the page down 400px at a time, waiting 600ms between steps for
// content to settle, stopping after 10 consecutive steps without a new identifier or
// once scrollY exceeds 100000 (the spec's runaway-page guard).
func (d *Detector) verifyScroll(ctx context.Context) (scrollResult, error) {
	var positions []float64
	before, err := d.sampleIdentifiers(ctx)
	if err != nil {
		return scrollResult{}, err
	}
	seenBefore := before

	consecutiveNoNew := 0
	var scrollY float64
	for scrollY <= 100000 && consecutiveNoNew < 10 {
		if err := d.driver.MouseWheel(ctx, 0, 400); err != nil {
			return scrollResult{}, fmt.Errorf("scroll trial step: %w", err)
		}
		scrollY += 400
		if err := d.driver.WaitForTimeout(ctx, 600*time.Millisecond); err != nil {
			return scrollResult{}, err
		}

		after, err := d.sampleIdentifiers(ctx)
		if err != nil {
			return scrollResult{}, err
		}
		n := newIdentifierCount(seenBefore, after)
		if n > 0 {
			consecutiveNoNew = 0
			positions = append(positions, scrollY)
			seenBefore = after
		} else {
			consecutiveNoNew++
		}
	}

	return scrollResult{positions: positions, newItems: len(positions)}, nil
}

var digitRun = regexp.MustCompile(`\d+`)

// offsetKeyAndValue extracts the last numeric query-parameter key/value pair from a
// URL, used to compute an OffsetPattern from two observed URLs.
func offsetKeyAndValue(rawURL string) (key string, value int, ok bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", 0, false
	}
	pairs := strings.Split(u.RawQuery, "&")
	for i := len(pairs) - 1; i >= 0; i-- {
		k, v, _ := strings.Cut(pairs[i], "=")
		if n, err := strconv.Atoi(v); err == nil && k != "" {
			return k, n, true
		}
	}
	return "", 0, false
}

func inferOffsetStyle(key string) models.OffsetStyle {
	if key == "offset" || key == "start" || key == "from" {
		return models.OffsetStyleOffset
	}
	return models.OffsetStylePage
}

// Decide runs the full discover->verify->decide cycle and returns the resulting
// PaginationDescriptor for this page.
func (d *Detector) Decide(ctx context.Context) (models.PaginationDescriptor, error) {
	candidates, err := d.Discover(ctx)
	if err != nil {
		return models.PaginationDescriptor{}, err
	}

	var clickDescriptor *models.PaginationDescriptor
	var clickWorked bool
	maxClicks := d.cfg.MaxTrialClicks
	if maxClicks <= 0 {
		maxClicks = 3
	}

	tried := 0
	for _, c := range candidates {
		if tried >= maxClicks {
			break
		}
		if c.Kind != models.CandidateNumbered && c.Kind != models.CandidateNextButton && c.Kind != models.CandidateLoadMore {
			continue
		}
		tried++
		result, err := d.verifyClick(ctx, c)
		if err != nil {
			continue
		}
		if result.newItems == 0 {
			continue
		}
		if result.urlAfter != result.urlBefore && !sameSite(result.urlBefore, result.urlAfter) {
			continue
		}
		clickWorked = true
		if result.urlAfter != result.urlBefore {
			if key, after, ok := offsetKeyAndValue(result.urlAfter); ok {
				_, before, _ := offsetKeyAndValue(result.urlBefore)
				increment := after - before
				if increment == 0 {
					increment = 1
				}
				clickDescriptor = &models.PaginationDescriptor{
					Kind:     models.PaginationURLOffset,
					Selector: c.Selector,
					Offset: &models.OffsetPattern{
						Key:       key,
						Start:     before,
						Increment: increment,
						Style:     inferOffsetStyle(key),
					},
				}
			} else {
				clickDescriptor = &models.PaginationDescriptor{Kind: models.PaginationNextClick, Selector: c.Selector}
			}
		} else {
			clickDescriptor = &models.PaginationDescriptor{Kind: models.PaginationNextClick, Selector: c.Selector}
		}
		break
	}

	scroll, err := d.verifyScroll(ctx)
	scrollWorked := err == nil && scroll.newItems > 0

	switch {
	case clickWorked && scrollWorked:
		return models.PaginationDescriptor{
			Kind:         models.PaginationHybrid,
			HybridClick:  clickDescriptor,
			HybridScroll: &models.PaginationDescriptor{Kind: models.PaginationInfiniteScroll, ScrollPositions: scroll.positions},
		}, nil
	case clickWorked:
		return *clickDescriptor, nil
	case scrollWorked:
		return models.PaginationDescriptor{Kind: models.PaginationInfiniteScroll, ScrollPositions: scroll.positions}, nil
	default:
		return models.PaginationDescriptor{Kind: models.PaginationNone}, nil
	}
}
