package batch

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assistedscrape/engine/internal/models"
)

const validCSV = `Country,Division,Category,Next URL,Source URL
US,Retail,Electronics,https://example.com/page/2,https://example.com/electronics
UK,Retail,Home,,https://example.com/home
`

func TestParseCSV_ValidSheet(t *testing.T) {
	rows, err := ParseCSV(strings.NewReader(validCSV))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, Row{
		Country: "US", Division: "Retail", Category: "Electronics",
		NextURL: "https://example.com/page/2", SourceURL: "https://example.com/electronics",
	}, rows[0])
	assert.Equal(t, "", rows[1].NextURL)
}

func TestParseCSV_RejectsWrongHeader(t *testing.T) {
	bad := "Country,Division\nUS,Retail\n"
	_, err := ParseCSV(strings.NewReader(bad))
	assert.Error(t, err)
}

func TestParseCSV_SkipsShortRows(t *testing.T) {
	csv := "Country,Division,Category,Next URL,Source URL\nUS,Retail\n"
	rows, err := ParseCSV(strings.NewReader(csv))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRunner_ContinuesPastRowFailure(t *testing.T) {
	rows := []Row{
		{SourceURL: "https://fails.example.com"},
		{SourceURL: "https://works.example.com"},
	}
	runner := NewRunner(func(ctx context.Context, row Row) ([]models.ProductRecord, error) {
		if row.SourceURL == "https://fails.example.com" {
			return nil, errors.New("boom")
		}
		return []models.ProductRecord{{ID: "ok", Title: "Widget"}}, nil
	})

	records := runner.RunAll(context.Background(), rows)
	require.Len(t, records, 1)
	assert.Equal(t, "ok", records[0].ID)
}

func TestRunner_RejectsOverlappingRuns(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	runner := NewRunner(func(ctx context.Context, row Row) ([]models.ProductRecord, error) {
		close(started)
		<-release
		return nil, nil
	})

	go runner.RunAll(context.Background(), []Row{{SourceURL: "https://slow.example.com"}})
	<-started

	result := runner.RunAll(context.Background(), []Row{{SourceURL: "https://second.example.com"}})
	assert.Nil(t, result, "a second concurrent RunAll must be rejected, not interleaved")

	close(release)
}
