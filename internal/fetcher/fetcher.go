// Package fetcher defines the navigation capability consumed by the crawl
// engine, plus the rendered-page representation shared by its
// implementations. The engine never assumes a specific fetch technology;
// everything it needs is this surface.
package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Options tunes a single navigation.
type Options struct {
	// WaitSelector, when set, asks the fetcher to wait (up to WaitTimeout)
	// for the selector to appear before snapshotting the page. A wait that
	// times out is not an error; the page is returned as-is so callers can
	// treat missing content as absence of data.
	WaitSelector string
	WaitTimeout  time.Duration
}

// Page is a fetched document snapshot.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Body       []byte

	doc *goquery.Document
}

// Document parses the body into a goquery document, caching the result.
func (p *Page) Document() (*goquery.Document, error) {
	if p.doc != nil {
		return p.doc, nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(p.Body))
	if err != nil {
		return nil, fmt.Errorf("parse page %s: %w", p.URL, err)
	}
	p.doc = doc
	return doc, nil
}

// NewPage builds a Page from an already-parsed document. Intended for tests
// and for fetchers that parse eagerly.
func NewPage(url, finalURL string, status int, body []byte) *Page {
	return &Page{URL: url, FinalURL: finalURL, StatusCode: status, Body: body}
}

// Fetcher navigates to a URL and returns the resulting page.
type Fetcher interface {
	Navigate(ctx context.Context, rawURL string, opts Options) (*Page, error)
}
