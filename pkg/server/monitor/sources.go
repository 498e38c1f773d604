package monitor

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// fileState is what we compare to notice a source file changing
type fileState struct {
	size    int64
	modTime time.Time
}

// SourceMonitor notices when source files change on disk after the store
// was built. The store is never rebuilt, so a change means the process is
// serving stale data until it restarts.
type SourceMonitor struct {
	dataDir       string
	files         []string
	baseline      map[string]fileState
	cached        SourceStatus
	lastCheck     time.Time
	cacheDuration time.Duration
	mu            sync.Mutex
}

// SourceStatus reports the source files as they are now.
type SourceStatus struct {
	Files   int      `json:"files"`
	Bytes   int64    `json:"bytes"`
	Changed []string `json:"changed,omitempty"`
	Missing []string `json:"missing,omitempty"`
}

// Stale reports whether any source differs from when the store was built.
func (s SourceStatus) Stale() bool {
	return len(s.Changed) > 0 || len(s.Missing) > 0
}

// NewSourceMonitor records the current state of files (relative to dataDir)
// as the baseline.
func NewSourceMonitor(dataDir string, files []string) *SourceMonitor {
	sm := &SourceMonitor{
		dataDir:       dataDir,
		files:         append([]string(nil), files...),
		baseline:      make(map[string]fileState, len(files)),
		cacheDuration: 10 * time.Second, // Cache for 10 seconds to avoid repeated stats
	}
	for _, name := range sm.files {
		if st, ok := sm.stat(name); ok {
			sm.baseline[name] = st
		}
	}
	return sm
}

// Check compares the files against the baseline (cached).
func (sm *SourceMonitor) Check() SourceStatus {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !sm.lastCheck.IsZero() && time.Since(sm.lastCheck) < sm.cacheDuration {
		return sm.cached
	}

	status := SourceStatus{Files: len(sm.files)}
	for _, name := range sm.files {
		cur, ok := sm.stat(name)
		if !ok {
			status.Missing = append(status.Missing, name)
			continue
		}
		status.Bytes += cur.size

		base, known := sm.baseline[name]
		if !known || base.size != cur.size || !base.modTime.Equal(cur.modTime) {
			status.Changed = append(status.Changed, name)
		}
	}
	sort.Strings(status.Changed)
	sort.Strings(status.Missing)

	sm.cached = status
	sm.lastCheck = time.Now()
	return status
}

func (sm *SourceMonitor) stat(name string) (fileState, bool) {
	info, err := os.Stat(filepath.Join(sm.dataDir, name))
	if err != nil || info.IsDir() {
		return fileState{}, false
	}
	return fileState{size: info.Size(), modTime: info.ModTime()}, true
}
