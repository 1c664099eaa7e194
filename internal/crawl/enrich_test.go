package crawl

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/iiadata/treaty-crawler/internal/fetcher"
)

const testBaseURL = "https://example.org"

func newTestEnricher(static, headless fetcher.Fetcher, detector *fetcher.RenderDetector) *DetailEnricher {
	return NewDetailEnricher(
		EnricherConfig{BaseURL: testBaseURL},
		static,
		headless,
		detector,
		NewRetryPolicy(2, time.Millisecond, zap.NewNop()),
		zap.NewNop(),
	)
}

func TestTerminationFromFormGroup(t *testing.T) {
	t.Parallel()
	f := newFakeFetcher()
	f.addPage(testBaseURL+"/treaties/bit/12/albania-austria", "", 200, `
		<html><body>
		<div class="form-group"><label>Status</label> Terminated</div>
		<div class="form-group"><label>Type of termination:</label> Unilaterally denounced</div>
		</body></html>`)

	e := newTestEnricher(f, nil, nil)
	got := e.TerminationCategory(context.Background(), CanonicalItem{
		SourceURL: "/treaties/bit/12/albania-austria",
		Title:     "Albania - Austria BIT (1993)",
	})
	assert.Equal(t, "Unilaterally denounced", got)
}

func TestTerminationFromTextFallback(t *testing.T) {
	t.Parallel()
	f := newFakeFetcher()
	f.addPage(testBaseURL+"/treaties/bit/30/x", "", 200, `
		<html><body>
		<p>Some preamble.</p>
		<p>Type of termination: Replaced by new treaty
another line</p>
		</body></html>`)

	e := newTestEnricher(f, nil, nil)
	got := e.TerminationCategory(context.Background(), CanonicalItem{SourceURL: "/treaties/bit/30/x"})
	assert.Equal(t, "Replaced by new treaty", got)
}

func TestTerminationAbsentField(t *testing.T) {
	t.Parallel()
	f := newFakeFetcher()
	f.addPage(testBaseURL+"/treaties/bit/31/x", "", 200, `
		<html><body>
		<div class="form-group"><label>Status</label> In force</div>
		</body></html>`)

	e := newTestEnricher(f, nil, nil)
	assert.Equal(t, "", e.TerminationCategory(context.Background(), CanonicalItem{SourceURL: "/treaties/bit/31/x"}))
}

func TestTerminationEmptySourceURL(t *testing.T) {
	t.Parallel()
	e := newTestEnricher(newFakeFetcher(), nil, nil)
	assert.Equal(t, "", e.TerminationCategory(context.Background(), CanonicalItem{Title: "No link"}))
}

func TestTerminationFetchFailureDegrades(t *testing.T) {
	t.Parallel()
	f := newFakeFetcher()
	url := testBaseURL + "/treaties/bit/40/x"
	f.failTimes(url, 10)

	e := newTestEnricher(f, nil, nil)
	assert.Equal(t, "", e.TerminationCategory(context.Background(), CanonicalItem{SourceURL: "/treaties/bit/40/x"}))
	assert.Equal(t, 2, f.callCount(url))
}

func TestTerminationAbsoluteURLNotRebased(t *testing.T) {
	t.Parallel()
	f := newFakeFetcher()
	f.addPage("https://other.example.net/treaties/bit/50/x", "", 200, `
		<html><body>
		<div class="form-group"><label>Type of termination</label> Expired</div>
		</body></html>`)

	e := newTestEnricher(f, nil, nil)
	got := e.TerminationCategory(context.Background(), CanonicalItem{
		SourceURL: "https://other.example.net/treaties/bit/50/x",
	})
	assert.Equal(t, "Expired", got)
}

func TestTerminationHeadlessPromotion(t *testing.T) {
	t.Parallel()
	url := testBaseURL + "/treaties/bit/60/x"

	static := newFakeFetcher()
	static.addPage(url, "", 200, `<html><body><div id="app"></div></body></html>`)

	headless := newFakeFetcher()
	headless.addPage(url, "", 200, `
		<html><body>
		<div class="form-group"><label>Type of termination:</label> Consent</div>
		</body></html>`)

	detector := fetcher.NewRenderDetector(0, []string{"div.form-group"}, nil)
	e := newTestEnricher(static, headless, detector)
	got := e.TerminationCategory(context.Background(), CanonicalItem{SourceURL: "/treaties/bit/60/x"})
	assert.Equal(t, "Consent", got)
	assert.Equal(t, 1, headless.callCount(url))
}

func TestTerminationPromotionFailureFallsBackToStatic(t *testing.T) {
	t.Parallel()
	url := testBaseURL + "/treaties/bit/61/x"

	static := newFakeFetcher()
	static.addPage(url, "", 200, `
		<html><body><p>Type of termination: Expired</p></body></html>`)

	headless := newFakeFetcher()
	headless.failTimes(url, 10)

	// The must-selector is missing from the static body, so promotion is
	// attempted; its failure leaves the static response in play.
	detector := fetcher.NewRenderDetector(0, []string{"div.form-group"}, nil)
	e := newTestEnricher(static, headless, detector)
	got := e.TerminationCategory(context.Background(), CanonicalItem{SourceURL: "/treaties/bit/61/x"})
	assert.Equal(t, "Expired", got)
}
