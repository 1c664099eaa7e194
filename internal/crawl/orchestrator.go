package crawl

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iiadata/treaty-crawler/internal/fetcher"
	"github.com/iiadata/treaty-crawler/internal/metrics"
	"github.com/iiadata/treaty-crawler/internal/progress"
	"github.com/iiadata/treaty-crawler/internal/ratelimit"
)

// Exporter receives the final canonical item sequence.
type Exporter interface {
	Export(ctx context.Context, items []CanonicalItem) error
}

// Config tunes the orchestrator.
type Config struct {
	CountryURL      string
	MaxAnchors      int
	Concurrency     int
	CheckpointEvery int
	SelectorTimeout time.Duration
	Resume          bool
	RunID           string
}

// Options carries the orchestrator's collaborators.
type Options struct {
	Config        Config
	Fetcher       fetcher.Fetcher
	Discovery     *DiscoveryEngine
	Extractor     *ItemExtractor
	Enricher      *DetailEnricher
	Checkpoints   *CheckpointStore
	Exporter      Exporter
	Retry         *RetryPolicy
	AnchorLimiter *ratelimit.Interval
	DetailLimiter *ratelimit.Interval
	Tracker       *progress.Tracker
	Logger        *zap.Logger
}

// Orchestrator drives the pipeline: discovery, per-anchor extraction with
// checkpointing, deduplication and normalization, termination enrichment,
// and export. A failed anchor (after retries) yields zero items and the
// loop advances; only discovery exhaustion and checkpoint storage failures
// abort the crawl.
type Orchestrator struct {
	cfg         Config
	fetcher     fetcher.Fetcher
	discovery   *DiscoveryEngine
	extractor   *ItemExtractor
	enricher    *DetailEnricher
	checkpoints *CheckpointStore
	exporter    Exporter
	anchorPacer *ratelimit.Interval
	detailPacer *ratelimit.Interval
	tracker     *progress.Tracker
	retry       *RetryPolicy
	logger      *zap.Logger

	saveMu chan struct{} // serializes checkpoint writes across workers
}

// NewOrchestrator wires an Orchestrator from its options.
func NewOrchestrator(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := opts.Config
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.CheckpointEvery <= 0 {
		cfg.CheckpointEvery = 10
	}
	saveMu := make(chan struct{}, 1)
	saveMu <- struct{}{}
	return &Orchestrator{
		cfg:         cfg,
		fetcher:     opts.Fetcher,
		discovery:   opts.Discovery,
		extractor:   opts.Extractor,
		enricher:    opts.Enricher,
		checkpoints: opts.Checkpoints,
		exporter:    opts.Exporter,
		anchorPacer: opts.AnchorLimiter,
		detailPacer: opts.DetailLimiter,
		tracker:     opts.Tracker,
		retry:       opts.Retry,
		logger:      logger,
		saveMu:      saveMu,
	}
}

// Run executes a full crawl. On cancellation the last committed checkpoint
// is preserved and in-flight anchor work is discarded, never partially
// recorded.
func (o *Orchestrator) Run(ctx context.Context) error {
	state, err := o.loadState()
	if err != nil {
		return err
	}

	o.tracker.SetPhase(progress.PhaseDiscovering)
	anchors, err := o.discovery.Discover(ctx)
	if err != nil {
		return err
	}
	if o.cfg.MaxAnchors > 0 && len(anchors) > o.cfg.MaxAnchors {
		anchors = anchors[:o.cfg.MaxAnchors]
		o.logger.Info("Limiting crawl", zap.Int("countries", o.cfg.MaxAnchors))
	}
	done, rawCount := state.Counts()
	o.tracker.SetTotals(len(anchors), done, rawCount)
	o.logger.Info("Countries discovered", zap.Int("total", len(anchors)), zap.Int("already_done", done))

	o.tracker.SetPhase(progress.PhaseCrawling)
	if err := o.crawlAnchors(ctx, anchors, state); err != nil {
		// Preserve whatever committed before the interruption.
		if saveErr := o.save(state); saveErr != nil {
			o.logger.Error("Checkpoint save on interrupt failed", zap.Error(saveErr))
		}
		return err
	}
	if err := o.save(state); err != nil {
		return err
	}

	o.tracker.SetPhase(progress.PhasePostProcessing)
	_, raw := state.Snapshot()
	unique := Deduplicate(raw)
	Normalize(unique)
	o.tracker.SetUnique(len(unique))
	o.logger.Info("De-duplicated treaties", zap.Int("raw", len(raw)), zap.Int("unique", len(unique)))

	o.tracker.SetPhase(progress.PhaseEnriching)
	if err := o.enrich(ctx, unique); err != nil {
		return err
	}

	o.tracker.SetPhase(progress.PhaseExporting)
	if err := o.exporter.Export(ctx, unique); err != nil {
		return fmt.Errorf("export: %w", err)
	}

	if err := o.checkpoints.Clear(); err != nil {
		return fmt.Errorf("clear checkpoint: %w", err)
	}
	o.tracker.SetPhase(progress.PhaseDone)
	return nil
}

func (o *Orchestrator) loadState() (*State, error) {
	if !o.cfg.Resume {
		return NewState(nil, nil), nil
	}
	completed, items, err := o.checkpoints.Load()
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	return NewState(completed, items), nil
}

// crawlAnchors runs the bounded worker pool over the not-yet-completed
// anchors. Workers keep extracted rows anchor-local until the single
// Commit, and checkpoint writes are serialized behind saveMu.
func (o *Orchestrator) crawlAnchors(ctx context.Context, anchors []Anchor, state *State) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Concurrency)

	for _, anchor := range anchors {
		anchor := anchor
		if state.Done(anchor.ID) {
			o.logger.Info("Skipping completed country",
				zap.String("country", anchor.Name), zap.Int("id", anchor.ID))
			continue
		}
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			if err := o.anchorPacer.Wait(gctx); err != nil {
				return err
			}
			items, err := o.crawlAnchor(gctx, anchor)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				// Contained: this country yielded nothing this run and stays
				// uncommitted, so a resume retries it.
				o.logger.Error("Country crawl failed",
					zap.String("country", anchor.Name),
					zap.Int("id", anchor.ID),
					zap.Error(err),
				)
				metrics.PageFetched("country", "error")
				return nil
			}
			metrics.PageFetched("country", "ok")
			metrics.ItemsExtracted(len(items))
			return o.commit(anchor, items, state)
		})
	}
	return g.Wait()
}

func (o *Orchestrator) crawlAnchor(ctx context.Context, anchor Anchor) ([]RawItem, error) {
	url := fmt.Sprintf("%s/%d/%s", o.cfg.CountryURL, anchor.ID, anchor.Slug)
	var page *fetcher.Page
	err := o.retry.Do(ctx, fmt.Sprintf("country fetch %d", anchor.ID), func(ctx context.Context) error {
		p, navErr := o.fetcher.Navigate(ctx, url, fetcher.Options{
			WaitSelector: "table tbody tr",
			WaitTimeout:  o.cfg.SelectorTimeout,
		})
		if navErr != nil {
			return navErr
		}
		page = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	doc, err := page.Document()
	if err != nil {
		return nil, err
	}
	return o.extractor.Extract(doc, anchor), nil
}

func (o *Orchestrator) commit(anchor Anchor, items []RawItem, state *State) error {
	completed := state.Commit(anchor.ID, items)
	metrics.AnchorCompleted()
	o.tracker.AnchorDone(len(items))
	if completed%o.cfg.CheckpointEvery != 0 {
		return nil
	}
	return o.save(state)
}

// save snapshots the state and persists it. An unwritable checkpoint store
// is process-fatal: continuing would silently lose resumability.
func (o *Orchestrator) save(state *State) error {
	<-o.saveMu
	defer func() { o.saveMu <- struct{}{} }()
	ids, items := state.Snapshot()
	if err := o.checkpoints.Save(o.cfg.RunID, ids, items); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// enrich fills the termination category for terminated treaties, one at a
// time with an inter-request delay. Enrichment failures leave the field
// empty and never abort the crawl.
func (o *Orchestrator) enrich(ctx context.Context, items []CanonicalItem) error {
	var terminated []*CanonicalItem
	for i := range items {
		if items[i].Terminated() && items[i].SourceURL != "" {
			terminated = append(terminated, &items[i])
		}
	}
	o.logger.Info("Fetching termination types", zap.Int("terminated", len(terminated)))
	for n, item := range terminated {
		if err := o.detailPacer.Wait(ctx); err != nil {
			return err
		}
		o.logger.Info("Enriching treaty",
			zap.Int("n", n+1),
			zap.Int("of", len(terminated)),
			zap.String("title", item.Title),
		)
		item.TerminationCategory = o.enricher.TerminationCategory(ctx, *item)
	}
	return nil
}
