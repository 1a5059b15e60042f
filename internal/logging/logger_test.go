package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_WritesStructuredEntriesToCombinedLog(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir, LevelInfo, false)
	require.NoError(t, err)
	defer logger.Close()

	logger.Info("extraction started", map[string]any{"sessionId": "s1"})

	data, err := os.ReadFile(filepath.Join(dir, "engine.log"))
	require.NoError(t, err)

	var entry LogEntry
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, LevelInfo, entry.Level)
	assert.Equal(t, "extraction started", entry.Message)
	assert.Equal(t, "s1", entry.Data["sessionId"])
}

func TestNewLogger_MirrorsErrorAndFatalToErrorLog(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir, LevelInfo, false)
	require.NoError(t, err)
	defer logger.Close()

	logger.Info("not an error", nil)
	logger.Error("boom", nil)

	errData, err := os.ReadFile(filepath.Join(dir, "errors.log"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(errData)), "\n")
	require.Len(t, lines, 1, "only the ERROR line should be mirrored, not the INFO line")
}

func TestLog_RespectsMinLevel(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir, LevelWarn, false)
	require.NoError(t, err)
	defer logger.Close()

	logger.Debug("too quiet to log", nil)
	logger.Warn("loud enough", nil)

	data, err := os.ReadFile(filepath.Join(dir, "engine.log"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "loud enough")
}

func TestScraperError_ErrorStringIncludesURLWhenSet(t *testing.T) {
	e := NewScraperError("timed out", "https://example.com", "s1", "extraction")
	assert.Equal(t, "[extraction] timed out (URL: https://example.com)", e.Error())

	e2 := NewScraperError("timed out", "", "s1", "extraction")
	assert.Equal(t, "[extraction] timed out", e2.Error())
}

func TestScraperError_ShouldRetry_RespectsRetryBudget(t *testing.T) {
	e := NewTemporaryScraperError("flaky", "", "s1", "detect", 2)
	assert.True(t, e.ShouldRetry())

	e.IncrementRetry()
	assert.True(t, e.ShouldRetry())

	e.IncrementRetry()
	assert.False(t, e.ShouldRetry(), "retry count has reached max")
}

func TestScraperError_NonTemporaryNeverRetries(t *testing.T) {
	e := NewScraperError("fatal config error", "", "s1", "config")
	assert.False(t, e.ShouldRetry())
}

func TestScraperError_WithHTMLTruncatesLongSnippets(t *testing.T) {
	e := NewScraperError("bad html", "", "", "")
	long := strings.Repeat("a", 10050)
	e.WithHTML(long)
	assert.Contains(t, e.RawHTML, "[truncated]")
	assert.Less(t, len(e.RawHTML), len(long))
}

func TestScraperError_WithMetadataAccumulates(t *testing.T) {
	e := NewScraperError("x", "", "", "")
	e.WithMetadata("attempt", 1).WithMetadata("selector", ".title")
	assert.Equal(t, 1, e.Metadata["attempt"])
	assert.Equal(t, ".title", e.Metadata["selector"])
}
