package crawl

import (
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/iiadata/treaty-crawler/internal/fetcher"
	"github.com/iiadata/treaty-crawler/internal/metrics"
)

var terminationTextPattern = regexp.MustCompile(`(?is).*type\s+of\s+termination\s*:?\s*`)

// EnricherConfig locates the source for resolving relative detail URLs.
type EnricherConfig struct {
	BaseURL string
}

// DetailEnricher fetches a treaty's detail page and extracts the
// termination type, a field unavailable on the listing table. Enrichment is
// best-effort: every failure path degrades to an empty value.
type DetailEnricher struct {
	cfg      EnricherConfig
	static   fetcher.Fetcher
	headless fetcher.Fetcher
	detector *fetcher.RenderDetector
	retry    *RetryPolicy
	logger   *zap.Logger
}

// NewDetailEnricher builds an enricher. The static fetcher is tried first;
// when the detector flags the response as an unrendered shell and a
// headless fetcher is available, the page is re-fetched with the browser.
func NewDetailEnricher(
	cfg EnricherConfig,
	static fetcher.Fetcher,
	headless fetcher.Fetcher,
	detector *fetcher.RenderDetector,
	retry *RetryPolicy,
	logger *zap.Logger,
) *DetailEnricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DetailEnricher{
		cfg:      cfg,
		static:   static,
		headless: headless,
		detector: detector,
		retry:    retry,
		logger:   logger,
	}
}

// TerminationCategory returns the termination type for the item, or an
// empty string when the page cannot be fetched or carries no such field.
// Absence is a valid outcome, not an error.
func (e *DetailEnricher) TerminationCategory(ctx context.Context, item CanonicalItem) string {
	if item.SourceURL == "" {
		return ""
	}
	detailURL := e.resolve(item.SourceURL)

	page, err := e.fetchDetail(ctx, detailURL)
	if err != nil {
		metrics.PageFetched("detail", "error")
		e.logger.Warn("Could not load detail page",
			zap.String("title", item.Title),
			zap.String("url", detailURL),
			zap.Error(err),
		)
		return ""
	}
	metrics.PageFetched("detail", "ok")

	doc, err := page.Document()
	if err != nil {
		e.logger.Warn("Could not parse detail page",
			zap.String("url", detailURL), zap.Error(err))
		return ""
	}

	if value := terminationFromFormGroups(doc); value != "" {
		return value
	}
	return terminationFromText(doc)
}

func (e *DetailEnricher) fetchDetail(ctx context.Context, detailURL string) (*fetcher.Page, error) {
	var page *fetcher.Page
	err := e.retry.Do(ctx, "detail fetch", func(ctx context.Context) error {
		p, navErr := e.static.Navigate(ctx, detailURL, fetcher.Options{})
		if navErr != nil {
			return navErr
		}
		page = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	if e.headless != nil && e.detector != nil && e.detector.NeedsRender(page) {
		rendered, renderErr := e.headless.Navigate(ctx, detailURL, fetcher.Options{})
		if renderErr != nil {
			e.logger.Warn("Headless promotion failed, using static response",
				zap.String("url", detailURL), zap.Error(renderErr))
			return page, nil
		}
		return rendered, nil
	}
	return page, nil
}

// resolve makes the detail URL absolute against the source base.
func (e *DetailEnricher) resolve(raw string) string {
	if strings.HasPrefix(raw, "http") {
		return raw
	}
	return e.cfg.BaseURL + raw
}

// terminationFromFormGroups scans labeled metadata fields for one whose
// label mentions both "termination" and "type", and strips the label text
// from the combined label+value text.
func terminationFromFormGroups(doc *goquery.Document) string {
	var value string
	doc.Find("div.form-group").EachWithBreak(func(_ int, group *goquery.Selection) bool {
		label := group.Find("label").First()
		if label.Length() == 0 {
			return true
		}
		labelText := strings.ToLower(strings.TrimSpace(label.Text()))
		if !strings.Contains(labelText, "termination") || !strings.Contains(labelText, "type") {
			return true
		}
		labelRaw := strings.TrimSpace(label.Text())
		full := strings.TrimSpace(group.Text())
		if v := strings.TrimSpace(strings.Replace(full, labelRaw, "", 1)); v != "" {
			value = v
			return false
		}
		return true
	})
	return value
}

// terminationFromText is the fallback: scan the whole page text for the
// phrase "type of termination" and take the trailing text.
func terminationFromText(doc *goquery.Document) string {
	text := doc.Text()
	if !strings.Contains(strings.ToLower(text), "type of termination") {
		return ""
	}
	trailing := terminationTextPattern.ReplaceAllString(text, "")
	if line := strings.TrimSpace(firstLine(trailing)); line != "" {
		return line
	}
	return ""
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
