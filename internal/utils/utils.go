// Package utils holds small helpers shared across the detection, driver and session
// packages: ID/hash generation, URL resolution and human-readable formatting.
package utils

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateHash returns a short, filesystem-safe hash of input, used to key cached
// fingerprint lookups and deduplicate selectors.
func GenerateHash(input string) string {
	hash := md5.Sum([]byte(input))
	return hex.EncodeToString(hash[:])[:12]
}

// GenerateID returns a prefixed unique identifier, e.g. "session_3fa2b1...".
func GenerateID(prefix string) string {
	id := uuid.New().String()
	return fmt.Sprintf("%s_%s", prefix, strings.ReplaceAll(id, "-", ""))
}

// FormatDuration renders a duration the way session summaries and log lines do:
// "1h 4m 12s", "4m 12s" or "12s" depending on magnitude.
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

// ResolveURL resolves relativeURL against baseURL, handling already-absolute,
// protocol-relative, root-relative and path-relative forms.
func ResolveURL(baseURL, relativeURL string) string {
	if strings.HasPrefix(relativeURL, "http://") || strings.HasPrefix(relativeURL, "https://") {
		return relativeURL
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return relativeURL
	}

	if strings.HasPrefix(relativeURL, "//") {
		return base.Scheme + ":" + relativeURL
	}

	if strings.HasPrefix(relativeURL, "/") {
		base.Path = relativeURL
		return base.String()
	}

	rel, err := url.Parse(relativeURL)
	if err != nil {
		return relativeURL
	}

	return base.ResolveReference(rel).String()
}

// FileExists reports whether path names a regular, readable file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
