// Package diagnostics gathers host resource information for preflight
// checks.
package diagnostics

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemSnapshot holds host resource usage at one point in time.
type SystemSnapshot struct {
	CPUThreads int `json:"cpu_threads"`

	MemTotalMB float64 `json:"mem_total_mb"`
	MemUsedMB  float64 `json:"mem_used_mb"`
	MemPercent float64 `json:"mem_percent"`

	DiskTotalGB float64 `json:"disk_total_gb"`
	DiskFreeGB  float64 `json:"disk_free_gb"`
	DiskPercent float64 `json:"disk_percent"`

	LoadAvg1 float64 `json:"load_avg_1"`
	LoadAvg5 float64 `json:"load_avg_5"`
}

// Collect gathers the current snapshot. Individual probes are best-effort;
// a failed probe leaves its fields zero.
func Collect() SystemSnapshot {
	s := SystemSnapshot{CPUThreads: runtime.NumCPU()}

	if vm, err := mem.VirtualMemory(); err == nil {
		s.MemTotalMB = float64(vm.Total) / 1024 / 1024
		s.MemUsedMB = float64(vm.Used) / 1024 / 1024
		s.MemPercent = vm.UsedPercent
	}

	if du, err := disk.Usage("."); err == nil {
		s.DiskTotalGB = float64(du.Total) / 1024 / 1024 / 1024
		s.DiskFreeGB = float64(du.Free) / 1024 / 1024 / 1024
		s.DiskPercent = du.UsedPercent
	}

	if avg, err := load.Avg(); err == nil {
		s.LoadAvg1 = avg.Load1
		s.LoadAvg5 = avg.Load5
	}

	return s
}

// LowDiskWarning reports whether free disk space is below the given
// threshold in gigabytes. Zero total means the probe failed and no warning
// is raised.
func (s SystemSnapshot) LowDiskWarning(minFreeGB float64) bool {
	return s.DiskTotalGB > 0 && s.DiskFreeGB < minFreeGB
}

// HighMemoryWarning reports whether memory pressure exceeds the given
// percentage.
func (s SystemSnapshot) HighMemoryWarning(maxUsedPercent float64) bool {
	return s.MemTotalMB > 0 && s.MemPercent > maxUsedPercent
}
