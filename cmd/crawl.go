package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/iiadata/treaty-crawler/internal/api"
	"github.com/iiadata/treaty-crawler/internal/config"
	"github.com/iiadata/treaty-crawler/internal/crawl"
	"github.com/iiadata/treaty-crawler/internal/export"
	"github.com/iiadata/treaty-crawler/internal/fetcher"
	"github.com/iiadata/treaty-crawler/internal/fetcher/headless"
	"github.com/iiadata/treaty-crawler/internal/fetcher/static"
	"github.com/iiadata/treaty-crawler/internal/id"
	"github.com/iiadata/treaty-crawler/internal/logging"
	"github.com/iiadata/treaty-crawler/internal/metrics"
	"github.com/iiadata/treaty-crawler/internal/progress"
	"github.com/iiadata/treaty-crawler/internal/ratelimit"
)

// newCrawlCmd creates and configures the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Runs a full crawl of the treaty directory",
		Long: `Discovers every country page in the IIA Navigator, extracts all treaty
rows, fetches termination details for terminated treaties, and exports the
de-duplicated result as CSV and JSON. A checkpoint is written as the crawl
progresses; pass --resume to continue an interrupted run.`,
		RunE: runCrawlCommand,
	}

	cmd.Flags().Int("max-countries", 0, "limit the crawl to the first N countries (0 = all)")
	cmd.Flags().String("output", "", "output CSV path (a .json sibling is written next to it)")
	cmd.Flags().Bool("resume", false, "resume from the last checkpoint instead of starting fresh")
	cmd.Flags().Bool("headed", false, "run the browser with a visible window for debugging")
	cmd.Flags().String("debug-addr", "", "listen address for the debug/metrics HTTP server (empty = disabled)")

	bindings := map[string]string{
		"crawler.max_countries": "max-countries",
		"output.path":           "output",
		"crawler.resume":        "resume",
		"headless.headed":       "headed",
		"debug.addr":            "debug-addr",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", flag, err))
		}
	}

	return cmd
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	metrics.Init()

	runID, err := id.NewGenerator().NewID()
	if err != nil {
		return fmt.Errorf("generate run id: %w", err)
	}
	logger.Info("Starting crawl", zap.String("run_id", runID), zap.String("base_url", cfg.Source.BaseURL))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orch, cleanup, err := buildOrchestrator(cfg, runID, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := orch.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("Crawl interrupted; checkpoint preserved for --resume")
			return err
		}
		return err
	}

	logger.Info("Crawl finished", zap.String("run_id", runID))
	return nil
}

func buildOrchestrator(cfg config.Config, runID string, logger *zap.Logger) (*crawl.Orchestrator, func(), error) {
	renderer, err := headless.New(headless.Config{
		MaxParallel:       cfg.Headless.MaxParallel,
		UserAgent:         cfg.Headless.UserAgent,
		NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSeconds) * time.Second,
		Headed:            cfg.Headless.Headed,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init headless fetcher: %w", err)
	}

	plain := static.New(static.Config{
		UserAgent: cfg.Headless.UserAgent,
		Timeout:   time.Duration(cfg.Headless.NavTimeoutSeconds) * time.Second,
	})

	detector := fetcher.NewRenderDetector(
		cfg.Detector.MinHTMLBytes,
		cfg.Detector.MustSelectors,
		cfg.Detector.Keywords,
	)

	retry := crawl.NewRetryPolicy(
		cfg.Crawler.MaxRetries,
		time.Duration(cfg.Crawler.BackoffInitialMs)*time.Millisecond,
		logger,
	)

	tracker := progress.NewTracker(runID)
	retry = retry.WithRetryHook(tracker.Retry)

	var debugServer *api.Server
	if cfg.Debug.Addr != "" {
		debugServer = api.NewServer(tracker, logger)
		debugServer.Start(cfg.Debug.Addr)
	}

	countryURL := cfg.Source.BaseURL + cfg.Source.CountryPath
	discovery := crawl.NewDiscoveryEngine(crawl.DiscoveryConfig{
		CountryURL: countryURL,
		SeedID:     cfg.Source.SeedID,
		SeedSlug:   cfg.Source.SeedSlug,
		ProbeMaxID: cfg.Source.ProbeMaxID,
	}, renderer, retry, ratelimit.NewInterval("probe", time.Duration(cfg.Crawler.ProbeDelayMs)*time.Millisecond), logger)

	enricher := crawl.NewDetailEnricher(crawl.EnricherConfig{
		BaseURL: cfg.Source.BaseURL,
	}, plain, renderer, detector, retry, logger)

	orch := crawl.NewOrchestrator(crawl.Options{
		Config: crawl.Config{
			CountryURL:      countryURL,
			MaxAnchors:      cfg.Crawler.MaxCountries,
			Concurrency:     cfg.Crawler.Concurrency,
			CheckpointEvery: cfg.Crawler.CheckpointEvery,
			SelectorTimeout: time.Duration(cfg.Headless.SelectorTimeoutSeconds) * time.Second,
			Resume:          cfg.Crawler.Resume,
			RunID:           runID,
		},
		Fetcher:       renderer,
		Discovery:     discovery,
		Extractor:     crawl.NewItemExtractor(logger),
		Enricher:      enricher,
		Checkpoints:   crawl.NewCheckpointStore(cfg.Output.DataDir, logger),
		Exporter:      export.NewFileExporter(cfg.Output.Path, logger),
		Retry:         retry,
		AnchorLimiter: ratelimit.NewInterval("country", time.Duration(cfg.Crawler.CountryDelaySeconds)*time.Second),
		DetailLimiter: ratelimit.NewInterval("detail", time.Duration(cfg.Crawler.DetailDelayMs)*time.Millisecond),
		Tracker:       tracker,
		Logger:        logger,
	})

	cleanup := func() {
		renderer.Close()
		if debugServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := debugServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Debug server shutdown failed", zap.Error(err))
			}
		}
	}
	return orch, cleanup, nil
}
