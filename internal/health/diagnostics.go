package health

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Degradation thresholds for the broker host. The broker itself is
// cheap; sustained pressure here usually means a runaway X server or a
// batch job landed on the master node.
const (
	cpuDegradedPercent  = 90.0
	memDegradedPercent  = 90.0
	diskDegradedPercent = 95.0
)

// HostSample is one point-in-time reading of the broker host.
type HostSample struct {
	CPUPercent   float64 `json:"cpuPercent"`
	RAMPercent   float64 `json:"ramPercent"`
	RAMUsedMB    uint64  `json:"ramUsedMb"`
	DiskPercent  float64 `json:"diskPercent"`
	ProcessCount int     `json:"processCount,omitempty"`
}

// Diagnostics periodically samples the broker host's CPU, memory, and
// data-directory disk usage and records the result on a Monitor under
// the "host" component.
type Diagnostics struct {
	monitor  *Monitor
	interval time.Duration
	dataDir  string
}

// NewDiagnostics builds a sampler that reports into m every interval.
// dataDir is the filesystem whose usage is watched (the broker's audit
// log and runtime state live there).
func NewDiagnostics(m *Monitor, interval time.Duration, dataDir string) *Diagnostics {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	if dataDir == "" {
		dataDir = "/"
	}
	return &Diagnostics{monitor: m, interval: interval, dataDir: dataDir}
}

// Run samples immediately and then on every tick until ctx is cancelled.
func (d *Diagnostics) Run(ctx context.Context) {
	d.sample()
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			d.sample()
		case <-ctx.Done():
			return
		}
	}
}

func (d *Diagnostics) sample() {
	s := Collect(d.dataDir)
	status, msg := Classify(s)
	d.monitor.Update("host", status, msg)
}

// Collect reads one HostSample. Individual probe failures are
// tolerated; the affected field is left zero.
func Collect(dataDir string) HostSample {
	var s HostSample

	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		s.CPUPercent = pct[0]
	}
	if vmem, err := mem.VirtualMemory(); err == nil {
		s.RAMPercent = vmem.UsedPercent
		s.RAMUsedMB = vmem.Used / 1024 / 1024
	}
	if usage, err := disk.Usage(dataDir); err == nil {
		s.DiskPercent = usage.UsedPercent
	}
	if procs, err := process.Processes(); err == nil {
		s.ProcessCount = len(procs)
	}
	return s
}

// Classify maps a sample to a health status and a human summary.
func Classify(s HostSample) (Status, string) {
	switch {
	case s.DiskPercent >= diskDegradedPercent:
		return Degraded, fmt.Sprintf("disk %.1f%% full", s.DiskPercent)
	case s.RAMPercent >= memDegradedPercent:
		return Degraded, fmt.Sprintf("memory %.1f%% used", s.RAMPercent)
	case s.CPUPercent >= cpuDegradedPercent:
		return Degraded, fmt.Sprintf("cpu %.1f%%", s.CPUPercent)
	default:
		return Healthy, fmt.Sprintf("cpu %.1f%%, mem %.1f%%, disk %.1f%%", s.CPUPercent, s.RAMPercent, s.DiskPercent)
	}
}
