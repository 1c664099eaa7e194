package fetcher

import "strings"

// RenderDetector decides whether a statically fetched page looks like an
// unrendered JavaScript shell and should be re-fetched with a browser.
type RenderDetector struct {
	minHTMLBytes  int
	mustSelectors []string
	keywords      []string
}

// NewRenderDetector builds a detector. Any zero/empty argument disables the
// corresponding check.
func NewRenderDetector(minHTMLBytes int, mustSelectors []string, keywords []string) *RenderDetector {
	return &RenderDetector{
		minHTMLBytes:  minHTMLBytes,
		mustSelectors: mustSelectors,
		keywords:      keywords,
	}
}

// NeedsRender reports whether the page should be promoted to a headless
// fetch: the body is suspiciously small, a required selector is missing, or
// a known client-side-framework marker is present.
func (d *RenderDetector) NeedsRender(page *Page) bool {
	if page == nil {
		return false
	}
	if d.minHTMLBytes > 0 && len(page.Body) < d.minHTMLBytes {
		return true
	}
	body := string(page.Body)
	for _, kw := range d.keywords {
		if kw != "" && strings.Contains(body, kw) {
			return true
		}
	}
	if len(d.mustSelectors) > 0 {
		doc, err := page.Document()
		if err != nil {
			return true
		}
		for _, sel := range d.mustSelectors {
			if sel != "" && doc.Find(sel).Length() == 0 {
				return true
			}
		}
	}
	return false
}
