package metrics

import (
	"context"
	"runtime"
	"time"
)

const nanosPerMilli = 1e6

// CollectSystem samples heap, goroutine and GC pause figures into the
// system metrics.
func (m *Manager) CollectSystem() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	m.systemMemoryUsage.Set(float64(ms.Alloc))
	m.systemGoroutineCount.Set(float64(runtime.NumGoroutine()))
	if ms.NumGC > 0 {
		m.systemGCPauseTime.Observe(float64(ms.PauseTotalNs) / float64(ms.NumGC) / nanosPerMilli)
	}
}

// RefreshInterval is the sampling period Refresh uses by default.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

// Refresh samples system metrics and runs collectors every interval until
// ctx is done. A non-positive interval uses the manager's refresh interval.
// Collectors update gauges that are cheaper to poll than to track, such as
// subscriber and record counts.
func (m *Manager) Refresh(ctx context.Context, interval time.Duration, collectors ...func()) {
	if interval <= 0 {
		interval = m.refreshInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CollectSystem()
			for _, collect := range collectors {
				collect()
			}
		}
	}
}

// CollectSystem samples system metrics into the package registry.
func CollectSystem() { globalManager.CollectSystem() }

// Refresh runs the package manager's refresh loop. See Manager.Refresh.
func Refresh(ctx context.Context, interval time.Duration, collectors ...func()) {
	globalManager.Refresh(ctx, interval, collectors...)
}
