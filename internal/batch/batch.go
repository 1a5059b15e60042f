// Package batch implements the CSV batch runner: it reads a sheet of
// Country/Division/Category/Next URL/Source URL rows and drives one scrape per row
// through a session.Manager, optionally on a gocron schedule. Adapted from the
// teacher's job scheduler, generalized from a single scraping-job model to one row
// per CSV entry.
package batch

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/assistedscrape/engine/internal/logging"
	"github.com/assistedscrape/engine/internal/models"
	"github.com/go-co-op/gocron"
)

// Row is one CSV batch entry.
type Row struct {
	Country   string
	Division  string
	Category  string
	NextURL   string
	SourceURL string
}

var expectedHeader = []string{"Country", "Division", "Category", "Next URL", "Source URL"}

// ParseCSV reads the batch sheet, requiring the exact header row the spec names.
func ParseCSV(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if !headerMatches(header) {
		return nil, fmt.Errorf("unexpected header %v, want %v", header, expectedHeader)
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if len(record) < 5 {
			continue
		}
		rows = append(rows, Row{
			Country:   record[0],
			Division:  record[1],
			Category:  record[2],
			NextURL:   record[3],
			SourceURL: record[4],
		})
	}
	return rows, nil
}

func headerMatches(header []string) bool {
	if len(header) != len(expectedHeader) {
		return false
	}
	for i, h := range expectedHeader {
		if header[i] != h {
			return false
		}
	}
	return true
}

// RunFunc executes one row's scrape against an already-configured rule set and
// returns the records it extracted. Supplied by the caller (cmd/assistedscrape)
// since batch itself has no opinion on session lifecycle or rule-set lookup.
type RunFunc func(ctx context.Context, row Row) ([]models.ProductRecord, error)

// Runner drives a batch of rows sequentially, one at a time — the session layer
// already serializes operations against a single page, and running rows
// concurrently would require one session per row, which the CSV runner's single-page
// model deliberately doesn't attempt.
type Runner struct {
	run RunFunc

	mu      sync.Mutex
	running bool
}

// NewRunner builds a Runner that calls run for each row.
func NewRunner(run RunFunc) *Runner {
	return &Runner{run: run}
}

// RunAll executes every row in order, logging and continuing past a row's failure
// rather than aborting the whole batch.
func (r *Runner) RunAll(ctx context.Context, rows []Row) []models.ProductRecord {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	var all []models.ProductRecord
	for _, row := range rows {
		records, err := r.run(ctx, row)
		if err != nil {
			logging.GetLogger().Error("batch row failed", map[string]any{
				"country":  row.Country,
				"category": row.Category,
				"error":    err.Error(),
			})
			continue
		}
		all = append(all, records...)
	}
	return all
}

// Scheduler wraps gocron to run a Runner on a cron expression, guarding against
// overlapping runs the same way the teacher's job scheduler guards a single running
// job: a mutex-backed flag checked before each scheduled invocation.
type Scheduler struct {
	cron   *gocron.Scheduler
	runner *Runner
	rows   []Row
}

// NewScheduler builds a Scheduler bound to a Runner and the rows it replays on each
// tick.
func NewScheduler(runner *Runner, rows []Row) *Scheduler {
	return &Scheduler{cron: gocron.NewScheduler(time.UTC), runner: runner, rows: rows}
}

// Start begins the scheduler and registers a job on cronExpr.
func (s *Scheduler) Start(cronExpr string) error {
	s.cron.StartAsync()
	_, err := s.cron.Cron(cronExpr).Do(func() {
		ctx := context.Background()
		s.runner.RunAll(ctx, s.rows)
	})
	return err
}

// Stop halts the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}
