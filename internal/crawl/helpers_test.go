package crawl

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/iiadata/treaty-crawler/internal/fetcher"
)

// fakeFetcher serves canned pages by URL and can be scripted to fail a URL
// a fixed number of times before succeeding.
type fakeFetcher struct {
	mu       sync.Mutex
	pages    map[string]*fetcher.Page
	failures map[string]int
	calls    map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		pages:    make(map[string]*fetcher.Page),
		failures: make(map[string]int),
		calls:    make(map[string]int),
	}
}

func (f *fakeFetcher) addPage(url, finalURL string, status int, html string) {
	f.pages[url] = fetcher.NewPage(url, finalURL, status, []byte(html))
}

func (f *fakeFetcher) failTimes(url string, n int) {
	f.failures[url] = n
}

func (f *fakeFetcher) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func (f *fakeFetcher) Navigate(ctx context.Context, rawURL string, _ fetcher.Options) (*fetcher.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[rawURL]++
	if f.failures[rawURL] > 0 {
		f.failures[rawURL]--
		return nil, errors.New("simulated navigation failure")
	}
	page, ok := f.pages[rawURL]
	if !ok {
		return nil, errors.New("no such page: " + rawURL)
	}
	// Return a fresh Page so cached documents do not leak between tests.
	return fetcher.NewPage(page.URL, page.FinalURL, page.StatusCode, page.Body), nil
}

func mustDoc(t interface{ Fatalf(string, ...any) }, html string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return doc
}

// treatyRow renders one positional table row with the canonical 8 columns.
func treatyRow(ordinal, title, category, status, parties, signed, inForce, terminated, detailHref string) string {
	titleCell := title
	if detailHref != "" {
		titleCell = `<a href="` + detailHref + `">` + title + `</a>`
	}
	return `<tr>` +
		`<td>` + ordinal + `</td>` +
		`<td>` + titleCell + `</td>` +
		`<td>` + category + `</td>` +
		`<td>` + status + `</td>` +
		`<td>` + parties + `</td>` +
		`<td>` + signed + `</td>` +
		`<td>` + inForce + `</td>` +
		`<td>` + terminated + `</td>` +
		`</tr>`
}

func treatyTable(rows ...string) string {
	return `<html><body><table><tbody>` + strings.Join(rows, "") + `</tbody></table></body></html>`
}
