package crawl

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/iiadata/treaty-crawler/internal/fetcher"
	"github.com/iiadata/treaty-crawler/internal/metrics"
	"github.com/iiadata/treaty-crawler/internal/ratelimit"
)

// ErrNoAnchors is returned when every discovery strategy came up empty.
// This is the only unconditionally fatal crawl condition.
var ErrNoAnchors = errors.New("no countries discovered")

// anchorPattern matches country page paths and captures id and slug.
var anchorPattern = regexp.MustCompile(`/countries/(\d+)/([a-z0-9-]+)`)

// DiscoveryConfig locates the country index.
type DiscoveryConfig struct {
	// CountryURL is the base country path, e.g.
	// https://host/international-investment-agreements/countries.
	CountryURL string
	// SeedID/SeedSlug name a known-good country page used to load the index
	// markup that the first two strategies inspect.
	SeedID   int
	SeedSlug string
	// ProbeMaxID bounds the id range tried by the probe strategy.
	ProbeMaxID int
}

// DiscoveryEngine produces the full set of country anchors by applying
// extraction strategies in fixed priority order, stopping at the first one
// that yields results. The markup of the source is not contractually
// stable, so discovery degrades instead of failing outright.
type DiscoveryEngine struct {
	cfg     DiscoveryConfig
	fetcher fetcher.Fetcher
	retry   *RetryPolicy
	pacer   *ratelimit.Interval
	logger  *zap.Logger
}

// NewDiscoveryEngine builds an engine. The pacer spaces out probe-strategy
// navigations.
func NewDiscoveryEngine(
	cfg DiscoveryConfig,
	f fetcher.Fetcher,
	retry *RetryPolicy,
	pacer *ratelimit.Interval,
	logger *zap.Logger,
) *DiscoveryEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DiscoveryEngine{cfg: cfg, fetcher: f, retry: retry, pacer: pacer, logger: logger}
}

type discoveryStrategy struct {
	name string
	run  func(ctx context.Context, seed *fetcher.Page) ([]Anchor, error)
}

// Discover returns every country anchor it can find. The seed fetch is the
// one navigation whose failure is fatal to the whole crawl.
func (e *DiscoveryEngine) Discover(ctx context.Context) ([]Anchor, error) {
	seedURL := fmt.Sprintf("%s/%d/%s", e.cfg.CountryURL, e.cfg.SeedID, e.cfg.SeedSlug)
	e.logger.Info("Discovering country list", zap.String("seed", seedURL))

	var seed *fetcher.Page
	err := e.retry.Do(ctx, "discovery seed fetch", func(ctx context.Context) error {
		page, navErr := e.fetcher.Navigate(ctx, seedURL, fetcher.Options{})
		if navErr != nil {
			return navErr
		}
		seed = page
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discovery: %w", err)
	}

	strategies := []discoveryStrategy{
		{name: "select-options", run: e.fromSelectOptions},
		{name: "hyperlink-scan", run: e.fromHyperlinks},
		{name: "id-probe", run: e.fromProbes},
	}
	for _, s := range strategies {
		anchors, err := s.run(ctx, seed)
		if err != nil {
			return nil, fmt.Errorf("discovery strategy %s: %w", s.name, err)
		}
		if len(anchors) > 0 {
			e.logger.Info("Discovery strategy succeeded",
				zap.String("strategy", s.name),
				zap.Int("countries", len(anchors)),
			)
			return anchors, nil
		}
		e.logger.Info("Discovery strategy found nothing", zap.String("strategy", s.name))
	}
	return nil, ErrNoAnchors
}

// fromSelectOptions reads anchors from a country selector dropdown whose
// option values carry the country path. Exhaustive and authoritative when
// present.
func (e *DiscoveryEngine) fromSelectOptions(_ context.Context, seed *fetcher.Page) ([]Anchor, error) {
	doc, err := seed.Document()
	if err != nil {
		return nil, err
	}
	var anchors []Anchor
	doc.Find("select option").Each(func(_ int, opt *goquery.Selection) {
		value, _ := opt.Attr("value")
		if a, ok := parseAnchor(value, strings.TrimSpace(opt.Text())); ok {
			anchors = append(anchors, a)
		}
	})
	return anchors, nil
}

// fromHyperlinks scans country links on the seed page, deduplicating by id.
// Less reliable than the selector: it can miss countries the loaded page
// does not link to.
func (e *DiscoveryEngine) fromHyperlinks(_ context.Context, seed *fetcher.Page) ([]Anchor, error) {
	doc, err := seed.Document()
	if err != nil {
		return nil, err
	}
	var anchors []Anchor
	seen := make(map[int]struct{})
	doc.Find("a[href*='/countries/']").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		a, ok := parseAnchor(href, strings.TrimSpace(link.Text()))
		if !ok {
			return
		}
		if _, dup := seen[a.ID]; dup {
			return
		}
		seen[a.ID] = struct{}{}
		anchors = append(anchors, a)
	})
	return anchors, nil
}

// fromProbes iterates candidate ids and treats a non-error response whose
// resolved URL matches the country pattern as evidence of existence. The
// strategy of last resort: one navigation per candidate. Individual probe
// failures are logged and skipped.
func (e *DiscoveryEngine) fromProbes(ctx context.Context, _ *fetcher.Page) ([]Anchor, error) {
	e.logger.Info("Falling back to id-probe discovery", zap.Int("max_id", e.cfg.ProbeMaxID))
	var anchors []Anchor
	for id := 1; id <= e.cfg.ProbeMaxID; id++ {
		if err := e.pacer.Wait(ctx); err != nil {
			return nil, err
		}
		// The slug is irrelevant; the site redirects to the canonical one.
		probeURL := fmt.Sprintf("%s/%d/x", e.cfg.CountryURL, id)
		page, err := e.fetcher.Navigate(ctx, probeURL, fetcher.Options{})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			metrics.PageFetched("probe", "error")
			e.logger.Debug("Probe failed", zap.Int("id", id), zap.Error(err))
			continue
		}
		metrics.PageFetched("probe", "ok")
		if page.StatusCode >= 400 {
			continue
		}
		a, ok := parseAnchor(page.FinalURL, "")
		if !ok {
			continue
		}
		a.Name = e.probeName(page, a.Slug)
		anchors = append(anchors, a)
		e.logger.Info("Probe found country", zap.Int("id", a.ID), zap.String("name", a.Name))
	}
	return anchors, nil
}

func (e *DiscoveryEngine) probeName(page *fetcher.Page, fallback string) string {
	doc, err := page.Document()
	if err != nil {
		return fallback
	}
	if name := strings.TrimSpace(doc.Find("h1, h2, .page-title").First().Text()); name != "" {
		return name
	}
	return fallback
}

// parseAnchor extracts an Anchor from any string containing a country path.
func parseAnchor(raw, name string) (Anchor, bool) {
	m := anchorPattern.FindStringSubmatch(raw)
	if m == nil {
		return Anchor{}, false
	}
	id, err := strconv.Atoi(m[1])
	if err != nil {
		return Anchor{}, false
	}
	return Anchor{ID: id, Slug: m[2], Name: name}, true
}
