package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gustavoa6791/k8s-colcap-news/internal/colcap"
	"github.com/gustavoa6791/k8s-colcap-news/internal/config"
	"github.com/gustavoa6791/k8s-colcap-news/internal/dashboard"
	"github.com/gustavoa6791/k8s-colcap-news/internal/producer"
	"github.com/gustavoa6791/k8s-colcap-news/internal/storage"
	"github.com/gustavoa6791/k8s-colcap-news/internal/store"
	"github.com/gustavoa6791/k8s-colcap-news/internal/telemetry"
	"github.com/gustavoa6791/k8s-colcap-news/internal/worker"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "colcapnews",
		Short: "Distributed COLCAP news analysis pipeline",
		Long: `colcapnews runs one role of the distributed news pipeline:

  producer   discovers Colombian financial news URLs and feeds the queue
  worker     processes queued articles (fetch, extract, analyze, correlate)
  dashboard  serves the monitoring view and JSON API

All roles coordinate through a shared Redis instance.`,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(producerCmd())
	rootCmd.AddCommand(workerCmd())
	rootCmd.AddCommand(dashboardCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func producerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "producer",
		Short: "Run the URL discovery producer",
		RunE:  runProducer,
	}
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run one batch-processing worker",
		RunE:  runWorker,
	}
}

func dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Serve the monitoring dashboard",
		RunE:  runDashboard,
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("colcapnews", config.Version)
		},
	}
}

func runProducer(cmd *cobra.Command, args []string) error {
	logger := setupLogger()
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := signalContext(logger)

	st, err := connectStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	// The historical series must exist before any worker correlates.
	ingestion := colcap.NewIngestion(cfg.Colcap.DataPath, logger)
	if err := ingestion.Ensure(ctx); err != nil {
		return fmt.Errorf("historical data unavailable: %w", err)
	}

	indexList := producer.NewIndexList(
		cfg.Archive.IndexBaseURL, cfg.Archive.IndexListPath, cfg.Archive.ListTimeout, logger)
	indexes, err := indexList.Get(ctx)
	if err != nil {
		return fmt.Errorf("resolve archive indexes: %w", err)
	}

	p := producer.New(cfg, st, indexes, logger)
	if err := p.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("producer: %w", err)
	}
	logger.Info("producer stopped")
	return nil
}

func runWorker(cmd *cobra.Command, args []string) error {
	logger := setupLogger()
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := signalContext(logger)

	st, err := connectStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	history, err := colcap.LoadHistory(cfg.Colcap.DataPath, logger)
	if err != nil {
		return fmt.Errorf("load historical data: %w", err)
	}
	correlator := colcap.NewCorrelator(history, st, cfg.Colcap.Months, cfg.Colcap.NewsPerMonth, logger)

	var prom *telemetry.PromMetrics
	if cfg.Metrics.Enabled {
		metrics, registry := telemetry.NewPromMetrics(cfg.Worker.ID)
		prom = metrics
		go telemetry.ServeProm(ctx, registry, cfg.Metrics.Port, cfg.Metrics.Path, logger)
	}

	var sink worker.ResultSink
	if cfg.Storage.MongoURI != "" {
		archive, err := storage.NewMongoArchive(ctx, cfg.Storage, logger)
		if err != nil {
			logger.Warn("result archive unavailable, continuing without it", "error", err)
		} else {
			defer archive.Close(context.Background())
			sink = archive
		}
	}

	w := worker.New(cfg, st, correlator, prom, sink, logger)
	if err := w.Run(ctx); err != nil {
		return fmt.Errorf("worker: %w", err)
	}
	return nil
}

func runDashboard(cmd *cobra.Command, args []string) error {
	logger := setupLogger()
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := signalContext(logger)

	st, err := connectStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	srv := dashboard.NewServer(cfg, st, logger)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	logger.Info("dashboard stopped")
	return nil
}

func connectStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	st, err := store.ConnectRedis(ctx, store.RedisOptions{
		Host:       cfg.Redis.Host,
		Port:       cfg.Redis.Port,
		DB:         cfg.Redis.DB,
		MaxRetries: cfg.Redis.MaxRetries,
		RetryDelay: cfg.Redis.RetryDelay,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("connect store: %w", err)
	}
	return st, nil
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext(logger *slog.Logger) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down...", "signal", sig)
		cancel()
	}()
	return ctx
}

// setupLogger creates a structured logger.
func setupLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}
