package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v4/process"
)

var (
	sessionCPU = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "cpu_percent",
			Help:      "CPU usage of a running game process.",
		}, []string{"session", "pid"},
	)
	sessionMemory = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "memory_rss_bytes",
			Help:      "Resident memory of a running game process.",
		}, []string{"session", "pid"},
	)
	sessionThreads = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "threads",
			Help:      "Thread count of a running game process.",
		}, []string{"session", "pid"},
	)
)

// Usage is one resource sample of a game process.
type Usage struct {
	Session    string    `json:"session"`
	PID        int32     `json:"pid"`
	CPUPercent float64   `json:"cpu_percent"`
	MemoryRSS  uint64    `json:"memory_rss"`
	MemoryMB   float64   `json:"memory_mb"`
	NumThreads int32     `json:"num_threads"`
	Timestamp  time.Time `json:"timestamp"`
}

// Sample reads CPU, memory and thread usage of pid. Partial reads are tolerated:
// only a missing process is an error.
func Sample(ctx context.Context, session string, pid int) (Usage, error) {
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return Usage{}, err
	}
	u := Usage{Session: session, PID: int32(pid), Timestamp: time.Now()}
	if cpu, err := p.CPUPercentWithContext(ctx); err == nil {
		u.CPUPercent = cpu
	}
	if mi, err := p.MemoryInfoWithContext(ctx); err == nil && mi != nil {
		u.MemoryRSS = mi.RSS
		u.MemoryMB = float64(mi.RSS) / 1024 / 1024
	}
	if n, err := p.NumThreadsWithContext(ctx); err == nil {
		u.NumThreads = n
	}
	if regOK.Load() {
		labels := []string{session, strconv.Itoa(pid)}
		sessionCPU.WithLabelValues(labels...).Set(u.CPUPercent)
		sessionMemory.WithLabelValues(labels...).Set(float64(u.MemoryRSS))
		sessionThreads.WithLabelValues(labels...).Set(float64(u.NumThreads))
	}
	return u, nil
}

// Forget drops the per-session gauges once the process is gone.
func Forget(session string, pid int) {
	labels := []string{session, strconv.Itoa(pid)}
	sessionCPU.DeleteLabelValues(labels...)
	sessionMemory.DeleteLabelValues(labels...)
	sessionThreads.DeleteLabelValues(labels...)
}
