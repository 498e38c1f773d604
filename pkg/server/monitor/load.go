package monitor

import (
	"sync"
	"time"

	"github.com/nicktill/econdash/pkg/storage"
)

// LoadMonitor records the outcome of the one-time store build.
type LoadMonitor struct {
	mu        sync.RWMutex
	loaded    bool
	loadedAt  time.Time
	stats     storage.Stats
	attempts  int
	lastError string
}

// RecordSuccess records a completed store build.
func (lm *LoadMonitor) RecordSuccess(stats storage.Stats) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.loaded = true
	lm.loadedAt = stats.LoadedAt
	if lm.loadedAt.IsZero() {
		lm.loadedAt = time.Now()
	}
	lm.stats = stats
	lm.attempts++
	lm.lastError = ""
}

// RecordFailure records a failed store build.
func (lm *LoadMonitor) RecordFailure(err error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.attempts++
	if err != nil {
		lm.lastError = err.Error()
	}
}

// IsHealthy returns true once the store has been built.
func (lm *LoadMonitor) IsHealthy() bool {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	return lm.loaded
}

// TableStatus describes one loaded table.
type TableStatus struct {
	Kind        string `json:"kind"`
	Rows        int    `json:"rows"`
	Missing     int    `json:"missing"`
	Fingerprint string `json:"fingerprint"`
}

// LoadStatus is the load report shown by /health.
type LoadStatus struct {
	Healthy      bool                   `json:"healthy"`
	LoadedAt     string                 `json:"loaded_at,omitempty"`
	LoadDuration string                 `json:"load_duration,omitempty"`
	Tables       int                    `json:"tables,omitempty"`
	Rows         int                    `json:"rows,omitempty"`
	Countries    int                    `json:"countries,omitempty"`
	PerTable     map[string]TableStatus `json:"per_table,omitempty"`
	Attempts     int                    `json:"attempts,omitempty"`
	LastError    string                 `json:"last_error,omitempty"`
}

// Status returns current load status for health checks.
func (lm *LoadMonitor) Status() LoadStatus {
	lm.mu.RLock()
	defer lm.mu.RUnlock()

	status := LoadStatus{
		Healthy:   lm.loaded,
		Attempts:  lm.attempts,
		LastError: lm.lastError,
	}
	if !lm.loaded {
		return status
	}

	status.LoadedAt = lm.loadedAt.Format(time.RFC3339)
	status.LoadDuration = lm.stats.LoadDuration.Round(time.Millisecond).String()
	status.Tables = lm.stats.Tables
	status.Rows = lm.stats.TotalRows
	status.Countries = lm.stats.Countries
	status.PerTable = make(map[string]TableStatus, len(lm.stats.PerTable))
	for _, t := range lm.stats.PerTable {
		status.PerTable[t.Key] = TableStatus{
			Kind:        t.Kind,
			Rows:        t.Rows,
			Missing:     t.Missing,
			Fingerprint: t.Fingerprint,
		}
	}
	return status
}
