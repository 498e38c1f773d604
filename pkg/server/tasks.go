package server

import (
	"context"
	"sync"
	"time"

	"github.com/nicktill/econdash/pkg/logger"
	"github.com/nicktill/econdash/pkg/server/monitor"
)

// SourceCheckInterval is how often WatchSources looks at the source files.
const SourceCheckInterval = 5 * time.Minute

// WatchSources periodically checks the source files and warns once when
// they drift from what the store was built from. It returns when ctx is
// cancelled.
func WatchSources(ctx context.Context, sourceMonitor *monitor.SourceMonitor, interval time.Duration, wg *sync.WaitGroup) {
	defer wg.Done()

	log := logger.Named("sources")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	warned := false
	for {
		select {
		case <-ctx.Done():
			log.Debug(context.Background(), "Stopping source watcher")
			return
		case <-ticker.C:
			status := sourceMonitor.Check()
			switch {
			case status.Stale() && !warned:
				log.Warn(ctx, "Source files changed since load; restart to serve the new data",
					logger.Strings("changed", status.Changed),
					logger.Strings("missing", status.Missing),
				)
				warned = true
			case !status.Stale() && warned:
				log.Info(ctx, "Source files match the loaded data again")
				warned = false
			}
		}
	}
}
