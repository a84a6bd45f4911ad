package release

import (
	"sync"
	"time"
)

// Metrics tracks release runs.
type Metrics struct {
	TotalRuns       int64
	FilesCompiled   int64
	FilesFailed     int64
	CacheHits       int64
	AverageDuration time.Duration
	TotalDuration   time.Duration
	mutex           sync.RWMutex
}

// NewMetrics creates a new metrics tracker
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Record adds the outcome of one run.
func (m *Metrics) Record(result *Result) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.TotalRuns++
	m.TotalDuration += result.Duration
	m.FilesCompiled += int64(len(result.Written))
	m.FilesFailed += int64(len(result.Failed))
	m.CacheHits += int64(result.CacheHits)

	if m.TotalRuns > 0 {
		m.AverageDuration = m.TotalDuration / time.Duration(m.TotalRuns)
	}
}

// Snapshot returns a copy of the current metrics
func (m *Metrics) Snapshot() Metrics {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return Metrics{
		TotalRuns:       m.TotalRuns,
		FilesCompiled:   m.FilesCompiled,
		FilesFailed:     m.FilesFailed,
		CacheHits:       m.CacheHits,
		AverageDuration: m.AverageDuration,
		TotalDuration:   m.TotalDuration,
	}
}

// CacheHitRate returns the share of compiled files reverted from the cache
// as a percentage.
func (m *Metrics) CacheHitRate() float64 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if m.FilesCompiled == 0 {
		return 0.0
	}
	return float64(m.CacheHits) / float64(m.FilesCompiled) * 100.0
}
