package memory

import (
	"math"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"media-catalog/internal/logging"
	"media-catalog/internal/metrics"
)

// Config holds memory monitoring configuration
type Config struct {
	// LimitBytes is the limit usage is measured against. Zero uses
	// GOMEMLIMIT, and without either the monitor stays idle.
	LimitBytes int64

	// HighWaterMark is the usage below which pressure is released (0.0-1.0)
	HighWaterMark float64

	// CriticalWaterMark is the usage at which pressure is raised (0.0-1.0)
	CriticalWaterMark float64

	CheckInterval time.Duration
}

// DefaultConfig returns sensible defaults for memory monitoring
func DefaultConfig() Config {
	return Config{
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     5 * time.Second,
	}
}

// Monitor samples heap usage against the memory limit. While usage stays
// between the two water marks the previous pressure state is kept.
type Monitor struct {
	config Config
	limit  int64

	mu       sync.RWMutex
	current  uint64
	pressure bool

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewMonitor creates a memory monitor. It does nothing until Start.
func NewMonitor(config Config) *Monitor {
	limit := config.LimitBytes
	if limit == 0 {
		if goMemLimit := debug.SetMemoryLimit(-1); goMemLimit > 0 && goMemLimit < math.MaxInt64 {
			limit = goMemLimit
		}
	}

	if limit > 0 {
		logging.Info("Memory monitor using limit %s", humanize.IBytes(uint64(limit)))
	} else {
		logging.Warn("Memory monitor: no memory limit configured, load shedding disabled")
	}

	return &Monitor{
		config:   config,
		limit:    limit,
		stopChan: make(chan struct{}),
	}
}

// Start begins sampling. Without a limit there is nothing to watch.
func (m *Monitor) Start() {
	if m.limit == 0 {
		return
	}
	go m.monitorLoop()
}

// Stop ends sampling. It is safe to call more than once.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
}

func (m *Monitor) monitorLoop() {
	ticker := time.NewTicker(m.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			var stats runtime.MemStats
			runtime.ReadMemStats(&stats)
			m.record(stats.Alloc)
		case <-m.stopChan:
			return
		}
	}
}

// record updates the pressure state for an allocation of alloc bytes.
func (m *Monitor) record(alloc uint64) {
	if m.limit == 0 {
		return
	}
	usage := float64(alloc) / float64(m.limit)
	metrics.MemoryUsageRatio.Set(usage)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = alloc

	switch {
	case usage >= m.config.CriticalWaterMark && !m.pressure:
		logging.Warn("Memory critical (%.1f%% of limit), shedding stream requests", usage*100)
		m.pressure = true
		metrics.MemoryPressure.Set(1)
		go runtime.GC()
	case usage < m.config.HighWaterMark && m.pressure:
		logging.Info("Memory recovered (%.1f%% of limit), serving streams again", usage*100)
		m.pressure = false
		metrics.MemoryPressure.Set(0)
	}
}

// UnderPressure reports whether new stream buffers should be refused.
func (m *Monitor) UnderPressure() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pressure
}

// Usage returns the last sampled usage as a fraction of the limit, or 0
// when no limit is configured.
func (m *Monitor) Usage() float64 {
	if m.limit == 0 {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return float64(m.current) / float64(m.limit)
}

// Limit returns the limit usage is measured against.
func (m *Monitor) Limit() int64 {
	return m.limit
}
