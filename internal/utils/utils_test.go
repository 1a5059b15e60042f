package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerateHash_IsDeterministicAndShort(t *testing.T) {
	a := GenerateHash("<div>hello</div>")
	b := GenerateHash("<div>hello</div>")
	assert.Equal(t, a, b)
	assert.Len(t, a, 12)
}

func TestGenerateHash_DiffersOnDifferentInput(t *testing.T) {
	assert.NotEqual(t, GenerateHash("a"), GenerateHash("b"))
}

func TestGenerateID_HasPrefixAndNoDashes(t *testing.T) {
	id := GenerateID("session")
	assert.Contains(t, id, "session_")
	assert.NotContains(t, id[len("session_"):], "-")
}

func TestFormatDuration_Magnitudes(t *testing.T) {
	assert.Equal(t, "12s", FormatDuration(12*time.Second))
	assert.Equal(t, "4m 12s", FormatDuration(4*time.Minute+12*time.Second))
	assert.Equal(t, "1h 4m 12s", FormatDuration(time.Hour+4*time.Minute+12*time.Second))
}

func TestResolveURL_AbsolutePassesThrough(t *testing.T) {
	assert.Equal(t, "https://other.com/x", ResolveURL("https://example.com", "https://other.com/x"))
}

func TestResolveURL_ProtocolRelative(t *testing.T) {
	assert.Equal(t, "https://cdn.example.com/img.png", ResolveURL("https://example.com/page", "//cdn.example.com/img.png"))
}

func TestResolveURL_RootRelative(t *testing.T) {
	assert.Equal(t, "https://example.com/p/1", ResolveURL("https://example.com/category/shoes", "/p/1"))
}

func TestResolveURL_PathRelative(t *testing.T) {
	assert.Equal(t, "https://example.com/category/p/1", ResolveURL("https://example.com/category/shoes", "p/1"))
}

func TestFileExists_TempFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probe.txt")
	assert.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	assert.True(t, FileExists(path))
	assert.False(t, FileExists(path+"-missing"))
}

func TestFileExists_Directory(t *testing.T) {
	assert.False(t, FileExists(t.TempDir()))
}
