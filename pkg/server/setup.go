package server

import (
	"context"
	"fmt"
	"os"

	"github.com/nicktill/econdash/pkg/config"
	"github.com/nicktill/econdash/pkg/export"
	"github.com/nicktill/econdash/pkg/logger"
	"github.com/nicktill/econdash/pkg/metrics"
	"github.com/nicktill/econdash/pkg/query"
	"github.com/nicktill/econdash/pkg/server/monitor"
	"github.com/nicktill/econdash/pkg/storage/memory"
)

// InitializeStore loads every configured metric from cfg.DataDir and
// records the outcome on loadMonitor.
func InitializeStore(ctx context.Context, cfg *config.Config, loadMonitor *monitor.LoadMonitor) (*memory.Store, error) {
	log := logger.Named("store")

	info, err := os.Stat(cfg.DataDir)
	if err != nil {
		loadMonitor.RecordFailure(err)
		return nil, fmt.Errorf("data directory: %w", err)
	}
	if !info.IsDir() {
		err := fmt.Errorf("data directory: %s is not a directory", cfg.DataDir)
		loadMonitor.RecordFailure(err)
		return nil, err
	}

	log.Info(ctx, "Loading metrics",
		logger.String("data_dir", cfg.DataDir),
		logger.Int("base", len(cfg.Metrics)),
		logger.Int("derived", len(cfg.Derived)),
	)

	store, err := memory.Build(ctx, memory.Options{
		FS:               os.DirFS(cfg.DataDir),
		Base:             cfg.BaseEntries(),
		Derived:          cfg.Derivations(),
		CountryReference: cfg.CountryReference,
		YearReference:    cfg.YearReference,
		LoadConcurrency:  cfg.LoadConcurrency,
		Logger:           log,
	})
	if err != nil {
		loadMonitor.RecordFailure(err)
		return nil, err
	}

	loadMonitor.RecordSuccess(store.Stats())
	return store, nil
}

// InitializeSourceMonitor snapshots the configured source files.
func InitializeSourceMonitor(cfg *config.Config) *monitor.SourceMonitor {
	files := make([]string, len(cfg.Metrics))
	for i, m := range cfg.Metrics {
		files[i] = m.File
	}
	return monitor.NewSourceMonitor(cfg.DataDir, files)
}

// InitializeHandlers creates the query and export handlers, reporting to mm.
func InitializeHandlers(store *memory.Store, mm *metrics.Manager) (*query.Handler, *export.Handler) {
	mm.ObserveStore(store.Stats())

	queryHandler := query.NewHandler(store, query.WithObserver(mm))
	exportHandler := export.NewHandler(store, mm)

	logger.Named("server").Info(context.Background(), "Handlers created",
		logger.Int("metrics", store.Registry().Len()),
		logger.Int("countries", len(store.Countries())),
	)
	return queryHandler, exportHandler
}
