package logging

import (
	"context"
	"sync"
)

// ErrorGroup runs a set of goroutines against a shared cancellable context, exactly
// like the per-session orchestration loops in detection and extraction: a temporary
// ScraperError is logged and absorbed, anything else (or a non-temporary ScraperError)
// cancels the whole group.
type ErrorGroup struct {
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	errOnce  sync.Once
	firstErr error
	logger   *Logger

	mu        sync.Mutex
	errorData []ScraperError
}

// NewErrorGroup creates an ErrorGroup tied to a derived, cancellable context.
func NewErrorGroup(ctx context.Context) (*ErrorGroup, context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	return &ErrorGroup{
		ctx:       ctx,
		cancel:    cancel,
		logger:    GetLogger(),
		errorData: make([]ScraperError, 0),
	}, ctx
}

// Go runs f in a goroutine tracked by the group.
func (g *ErrorGroup) Go(f func() error) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()

		err := f()
		if err == nil {
			return
		}

		if scraperErr, ok := err.(*ScraperError); ok {
			g.mu.Lock()
			g.errorData = append(g.errorData, *scraperErr)
			g.mu.Unlock()

			g.logger.LogScraperError(scraperErr)

			if !scraperErr.Temporary {
				g.errOnce.Do(func() {
					g.firstErr = err
					g.cancel()
				})
			}
			return
		}

		g.logger.Error(err.Error(), nil)
		g.errOnce.Do(func() {
			g.firstErr = err
			g.cancel()
		})
	}()
}

// Wait blocks until every goroutine has returned, then returns the first
// non-recoverable error observed, if any.
func (g *ErrorGroup) Wait() error {
	g.wg.Wait()
	g.cancel()
	return g.firstErr
}

// Errors returns every ScraperError observed by the group, recoverable or not.
func (g *ErrorGroup) Errors() []ScraperError {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.errorData
}
