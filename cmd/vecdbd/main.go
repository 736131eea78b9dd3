// Command vecdbd runs the vecdb HTTP service: the collections and
// vectors REST surface from spec.md §6 backed by an in-process registry
// with snapshot+WAL persistence. Wiring cobra for the CLI surface and
// viper-backed config.Load for layered configuration is grounded on
// EfeDurmaz16-anvil's cmd/anvil/main.go, adapted to vecdb's single
// long-running "serve" command instead of a multi-step pipeline.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/vecdb/vecdb/api"
	"github.com/vecdb/vecdb/config"
	"github.com/vecdb/vecdb/service"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "vecdbd",
		Short: "vecdb — an in-memory vector index service",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (optional)")

	var hostOverride string
	var portOverride int

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Host = hostOverride
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = portOverride
			}
			return serve(cmd.Context(), cfg)
		},
	}
	serveCmd.Flags().StringVar(&hostOverride, "host", "", "override host from config")
	serveCmd.Flags().IntVar(&portOverride, "port", 0, "override port from config")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the vecdbd version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}

	rootCmd.AddCommand(serveCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	mode, intervalMillis, err := cfg.ParseFsyncMode()
	if err != nil {
		return err
	}

	var opts []service.Option
	opts = append(opts, service.WithLogger(&service.Logger{Logger: logger}))

	reg := prometheus.NewRegistry()
	metrics := service.NewPrometheusMetricsCollector(reg)
	opts = append(opts, service.WithMetricsCollector(metrics))

	if mode == "interval" {
		opts = append(opts, service.WithWALFsyncInterval(intervalMillis))
	} else {
		opts = append(opts, service.WithWALFsyncPerOp())
	}

	if err := os.MkdirAll(filepath.Dir(cfg.SnapshotPath), 0o755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.WALPath), 0o755); err != nil {
		return fmt.Errorf("creating wal directory: %w", err)
	}

	svc, err := service.Open(ctx, cfg.SnapshotPath, cfg.WALPath, opts...)
	if err != nil {
		return fmt.Errorf("opening service: %w", err)
	}
	defer svc.Close()

	if err := svc.EnsureDefaultCollection(ctx, cfg.DefaultDimension); err != nil {
		return fmt.Errorf("ensuring default collection: %w", err)
	}

	handler := api.NewHandler(svc)
	router := api.NewRouter(handler, logger, reg)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopSnapshots := make(chan struct{})
	if cfg.SnapshotIntervalSec > 0 {
		go runBackgroundSnapshots(ctx, svc, logger, time.Duration(cfg.SnapshotIntervalSec)*time.Second, stopSnapshots)
	}

	serveErrCh := make(chan error, 1)
	go func() {
		logger.Info("vecdbd listening", "addr", cfg.Addr())
		serveErrCh <- server.ListenAndServe()
	}()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-sigCtx.Done():
		logger.Info("shutting down")
	case err := <-serveErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	close(stopSnapshots)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func runBackgroundSnapshots(ctx context.Context, svc *service.Service, logger *slog.Logger, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, err := svc.SaveSnapshot(ctx); err != nil {
				logger.Error("background snapshot failed", "error", err)
			}
		}
	}
}

