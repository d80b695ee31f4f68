package diagnostics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollect(t *testing.T) {
	s := Collect()
	assert.Greater(t, s.CPUThreads, 0)
}

func TestLowDiskWarning(t *testing.T) {
	s := SystemSnapshot{DiskTotalGB: 100, DiskFreeGB: 2}
	assert.True(t, s.LowDiskWarning(5))
	assert.False(t, s.LowDiskWarning(1))

	// Failed probe never warns.
	assert.False(t, SystemSnapshot{}.LowDiskWarning(5))
}

func TestHighMemoryWarning(t *testing.T) {
	s := SystemSnapshot{MemTotalMB: 16000, MemPercent: 95}
	assert.True(t, s.HighMemoryWarning(90))
	assert.False(t, s.HighMemoryWarning(98))
	assert.False(t, SystemSnapshot{}.HighMemoryWarning(90))
}
