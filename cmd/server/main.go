package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"github.com/nicktill/econdash/pkg/config"
	"github.com/nicktill/econdash/pkg/logger"
	"github.com/nicktill/econdash/pkg/metrics"
	"github.com/nicktill/econdash/pkg/server"
	"github.com/nicktill/econdash/pkg/server/monitor"
	"github.com/nicktill/econdash/pkg/storage/memory"
)

var (
	configPath string
	dataDir    string
	logLevel   string
	addr       string

	rootCmd = &cobra.Command{
		Use:   "econdash",
		Short: "Serve World Bank indicators to the economic dashboard",
		Long: `econdash loads World Bank wide-format indicator files, derives growth
metrics from them and serves the result over a small JSON/CSV API.`,
		SilenceUsage: true,
		RunE:         runServe,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Load the data directory and start the HTTP API (default)",
		RunE:  runServe,
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (default $"+config.EnvConfigFile+")")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory holding the source CSV files")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")

	for _, c := range []*cobra.Command{rootCmd, serveCmd} {
		c.Flags().StringVar(&addr, "addr", "", "listen address (default "+config.DefaultAddr+")")
	}

	rootCmd.AddCommand(serveCmd, exportCmd, inspectCmd)
}

// loadConfig layers command-line flags over config.Load and initializes
// the global logger.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.DataDir = dataDir
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Lookup("addr") != nil && flags.Changed("addr") {
		cfg.Addr = addr
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := logger.Init(cfg.LogLevel); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadStore builds the store for the one-shot commands.
func loadStore(ctx context.Context, cfg *config.Config) (*memory.Store, error) {
	return server.InitializeStore(ctx, cfg, &monitor.LoadMonitor{})
}

// app is everything serve needs once the data has been loaded.
type app struct {
	server  *http.Server
	sources *monitor.SourceMonitor
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	loadMonitor := &monitor.LoadMonitor{}
	store, err := server.InitializeStore(ctx, cfg, loadMonitor)
	if err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}

	mm := metrics.NewManager()
	sourceMonitor := server.InitializeSourceMonitor(cfg)
	queryHandler, exportHandler := server.InitializeHandlers(store, mm)

	handler := server.SetupRoutes(mux.NewRouter(), queryHandler, exportHandler, loadMonitor, sourceMonitor, mm, cfg.AllowedOrigins)

	return &app{
		server: &http.Server{
			Addr:         cfg.Addr,
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		sources: sourceMonitor,
	}, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := logger.Named("main")

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	log.Info(ctx, "Starting econdash", logger.String("version", server.Version))

	a, err := newApp(ctx, cfg)
	if err != nil {
		log.Error(ctx, "Startup failed", logger.Error(err))
		return err
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go server.WatchSources(ctx, a.sources, server.SourceCheckInterval, &wg)

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "Server listening",
			logger.String("addr", cfg.Addr),
			logger.String("data_dir", cfg.DataDir),
		)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runErr error
	select {
	case sig := <-quit:
		log.Info(ctx, "Shutdown signal received", logger.String("signal", sig.String()))
	case runErr = <-serveErr:
		log.Error(ctx, "Server failed", logger.Error(runErr))
	}

	// Cancel before wg.Wait or the watcher never returns
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		log.Warn(shutdownCtx, "Server shutdown warning", logger.Error(err))
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Debug(shutdownCtx, "Background tasks stopped")
	case <-time.After(5 * time.Second):
		log.Warn(shutdownCtx, "Some background tasks did not stop in time")
	}

	log.Info(shutdownCtx, "econdash exited")
	return runErr
}
