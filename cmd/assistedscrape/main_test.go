package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHostStats_ReportsCPUAndMemoryWhenAvailable(t *testing.T) {
	stats := hostStats()
	// gopsutil reads from /proc on Linux; in a minimal sandbox either reading may be
	// unavailable, so this only asserts the shape is well-formed, not that both keys
	// are always present.
	if v, ok := stats["cpuPercent"]; ok {
		_, isFloat := v.(float64)
		assert.True(t, isFloat)
	}
	if v, ok := stats["memPercent"]; ok {
		_, isFloat := v.(float64)
		assert.True(t, isFloat)
	}
}
