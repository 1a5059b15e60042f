package session

import (
	"context"
	"fmt"
	"time"
)

// scrollTestSettleDelay gives the page a moment to render newly-revealed content
// before the next identifier sample, the same settle-then-sample pattern
// internal/lazyload uses between scroll steps.
const scrollTestSettleDelay = 300 * time.Millisecond

// hoverScript dispatches a synthetic mouseover/mouseenter at the first element
// matching selector, the same "dispatch then let page JS react" approach the
// pre-action handler (internal/popup) uses for typing and selecting.
const hoverScript = `(() => {
  const el = document.querySelector(%q);
  if (!el) return false;
  const opts = { bubbles: true, cancelable: true, view: window };
  el.dispatchEvent(new MouseEvent('mouseover', opts));
  el.dispatchEvent(new MouseEvent('mouseenter', opts));
  return true;
})()`

const selectScript = `(() => {
  const el = document.querySelector(%q);
  if (!el) return false;
  el.value = %q;
  el.dispatchEvent(new Event('input', { bubbles: true }));
  el.dispatchEvent(new Event('change', { bubbles: true }));
  return true;
})()`

const highlightAllScript = `(() => {
  document.querySelectorAll(%q).forEach(el => {
    el.dataset.engineHighlighted = 'true';
    el.style.outline = '2px solid #ff3366';
    el.style.outlineOffset = '1px';
  });
  return document.querySelectorAll(%q).length;
})()`

const clearHighlightScript = `(() => {
  document.querySelectorAll('[data-engine-highlighted="true"]').forEach(el => {
    el.style.outline = '';
    el.style.outlineOffset = '';
    delete el.dataset.engineHighlighted;
  });
  return true;
})()`

const clickAtPointScript = `(() => {
  const el = document.elementFromPoint(%d, %d);
  if (!el) return false;
  el.dispatchEvent(new MouseEvent('click', { bubbles: true, cancelable: true, view: window }));
  return true;
})()`

const typeIntoActiveScript = `(() => {
  const el = document.activeElement;
  if (!el || (el.tagName !== 'INPUT' && el.tagName !== 'TEXTAREA')) return false;
  el.value = (el.value || '') + %q;
  el.dispatchEvent(new Event('input', { bubbles: true }));
  return true;
})()`

const scrollIdentifierScript = `(() => {
  return Array.from(document.querySelectorAll('a[href]')).slice(0, 500).map(a => a.getAttribute('href'));
})()`

// Hover dispatches a synthetic hover at selector, for the operator-facing dom:hover
// action.
func (s *Session) Hover(ctx context.Context, selector string) error {
	defer s.lock()()
	var ok bool
	if err := s.driver.Evaluate(ctx, fmt.Sprintf(hoverScript, selector), &ok); err != nil {
		return fmt.Errorf("hover: %w", err)
	}
	if !ok {
		return fmt.Errorf("hover: no element matched %q", selector)
	}
	return nil
}

// Select sets a <select>/input's value and fires input/change, for dom:select.
func (s *Session) Select(ctx context.Context, selector, value string) error {
	defer s.lock()()
	var ok bool
	if err := s.driver.Evaluate(ctx, fmt.Sprintf(selectScript, selector, value), &ok); err != nil {
		return fmt.Errorf("select: %w", err)
	}
	if !ok {
		return fmt.Errorf("select: no element matched %q", selector)
	}
	return nil
}

// HighlightAll outlines every element matching selector and returns the match count,
// for selector:highlightAll.
func (s *Session) HighlightAll(ctx context.Context, selector string) (int, error) {
	defer s.lock()()
	var count int
	if err := s.driver.Evaluate(ctx, fmt.Sprintf(highlightAllScript, selector, selector), &count); err != nil {
		return 0, fmt.Errorf("highlight all: %w", err)
	}
	return count, nil
}

// ClearHighlight removes every outline installed by HighlightAll, for
// selector:clearHighlight.
func (s *Session) ClearHighlight(ctx context.Context) error {
	defer s.lock()()
	var ok bool
	return s.driver.Evaluate(ctx, clearHighlightScript, &ok)
}

// ClickAt clicks whatever element is under the given viewport point, for
// input:mouse.
func (s *Session) ClickAt(ctx context.Context, x, y float64) error {
	defer s.lock()()
	var ok bool
	if err := s.driver.Evaluate(ctx, fmt.Sprintf(clickAtPointScript, int(x), int(y)), &ok); err != nil {
		return fmt.Errorf("click at point: %w", err)
	}
	if !ok {
		return fmt.Errorf("click at point: nothing under (%.0f, %.0f)", x, y)
	}
	return nil
}

// TypeText appends text into the currently focused input/textarea, for
// input:keyboard.
func (s *Session) TypeText(ctx context.Context, text string) error {
	defer s.lock()()
	var ok bool
	if err := s.driver.Evaluate(ctx, fmt.Sprintf(typeIntoActiveScript, text), &ok); err != nil {
		return fmt.Errorf("type text: %w", err)
	}
	if !ok {
		return fmt.Errorf("type text: no focused input or textarea")
	}
	return nil
}

// ScrollBy dispatches a real wheel event, for input:scroll.
func (s *Session) ScrollBy(ctx context.Context, dx, dy float64) error {
	defer s.lock()()
	return s.driver.MouseWheel(ctx, dx, dy)
}

// scrollTestState tracks an in-progress manual scroll test (scrollTest:start/update/
// complete), mirroring the identifier-delta approach internal/lazyload and
// internal/pagination use to decide whether a scroll step surfaced anything new.
type scrollTestState struct {
	seen      map[string]bool
	positions []float64
	newItems  int
}

// ScrollTestStart resets the scroll test and records the current identifier set as
// the baseline.
func (s *Session) ScrollTestStart(ctx context.Context) error {
	defer s.lock()()
	var ids []string
	if err := s.driver.Evaluate(ctx, scrollIdentifierScript, &ids); err != nil {
		return fmt.Errorf("scroll test start: %w", err)
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}
	s.scrollTest = &scrollTestState{seen: seen}
	return nil
}

// ScrollTestUpdate performs one scroll step and reports how many new identifiers
// appeared in this step plus the cumulative count of new identifiers since the test
// started.
func (s *Session) ScrollTestUpdate(ctx context.Context, deltaY float64) (newItems int, totalNew int, err error) {
	defer s.lock()()
	if s.scrollTest == nil {
		return 0, 0, fmt.Errorf("scroll test not started")
	}
	if err := s.driver.MouseWheel(ctx, 0, deltaY); err != nil {
		return 0, 0, fmt.Errorf("scroll test update: %w", err)
	}
	if err := s.driver.WaitForTimeout(ctx, scrollTestSettleDelay); err != nil {
		return 0, 0, err
	}
	var ids []string
	if err := s.driver.Evaluate(ctx, scrollIdentifierScript, &ids); err != nil {
		return 0, 0, fmt.Errorf("scroll test update: %w", err)
	}
	fresh := 0
	for _, id := range ids {
		if !s.scrollTest.seen[id] {
			s.scrollTest.seen[id] = true
			fresh++
		}
	}
	s.scrollTest.newItems += fresh
	s.scrollTest.positions = append(s.scrollTest.positions, deltaY)
	return fresh, s.scrollTest.newItems, nil
}

// ScrollTestComplete ends the scroll test and returns the final tally.
func (s *Session) ScrollTestComplete(ctx context.Context) (totalNew int, positions []float64, err error) {
	defer s.lock()()
	if s.scrollTest == nil {
		return 0, nil, fmt.Errorf("scroll test not started")
	}
	totalNew = s.scrollTest.newItems
	positions = s.scrollTest.positions
	s.scrollTest = nil
	return totalNew, positions, nil
}
