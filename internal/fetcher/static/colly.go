// Package static implements fetcher.Fetcher with plain HTTP via Colly.
// Detail pages on the navigator are server-rendered, so a browser is only
// needed when the render detector says otherwise.
package static

import (
	"context"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/iiadata/treaty-crawler/internal/fetcher"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Fetcher executes single-shot GETs using a cloned Colly collector per
// request.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.AllowURLRevisit = true
	return &Fetcher{cfg: cfg, baseCollector: c}
}

// Navigate fetches the URL and returns the response body. Options are
// accepted for interface compatibility; a static fetch has nothing to wait
// for.
func (f *Fetcher) Navigate(ctx context.Context, rawURL string, _ fetcher.Options) (*fetcher.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("navigate %s: %w", rawURL, err)
	}

	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.SetRequestTimeout(f.cfg.Timeout)

	var (
		page     *fetcher.Page
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		page = fetcher.NewPage(rawURL, r.Request.URL.String(), r.StatusCode, r.Body)
	})
	collector.OnError(func(r *colly.Response, err error) {
		fetchErr = fmt.Errorf("fetch %s: %w", rawURL, err)
	})

	if err := f.runVisit(ctx, collector, rawURL); err != nil {
		return nil, err
	}

	if fetchErr != nil {
		return nil, fetchErr
	}
	if page == nil {
		return nil, fmt.Errorf("fetch %s: no response", rawURL)
	}
	return page, nil
}

// runVisit executes the blocking Visit in a goroutine so the caller's
// context can abandon a hung request. The abandoned goroutine finishes on
// its own when the request timeout fires.
func (f *Fetcher) runVisit(ctx context.Context, collector *colly.Collector, rawURL string) error {
	done := make(chan error, 1)
	go func() {
		err := collector.Visit(rawURL)
		collector.Wait()
		done <- err
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("visit %s canceled: %w", rawURL, ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("visit %s: %w", rawURL, err)
		}
		return nil
	}
}
