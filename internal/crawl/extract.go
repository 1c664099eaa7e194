package crawl

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// minColumns is the cell count below which a row is treated as a header or
// malformed row and skipped.
const minColumns = 6

// ItemExtractor pulls treaty rows out of a country page's table. Absence of
// rows is data absence, never an error.
type ItemExtractor struct {
	logger *zap.Logger
}

// NewItemExtractor builds an extractor.
func NewItemExtractor(logger *zap.Logger) *ItemExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ItemExtractor{logger: logger}
}

// Extract returns every treaty row found in the document, each stamped with
// the originating anchor. Two strategies are tried per row: explicit
// data-index cell markers first, fixed column positions as the fallback.
func (x *ItemExtractor) Extract(doc *goquery.Document, anchor Anchor) []RawItem {
	var items []RawItem
	doc.Find("table tbody tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < minColumns {
			return
		}

		item, ok := extractIndexed(cells)
		if !ok {
			item = extractPositional(cells)
		}
		item.SourceURL = detailLink(row)
		item.Category = normalizeCategory(item.Category)
		item.AnchorID = anchor.ID
		item.AnchorName = anchor.Name
		items = append(items, item)
	})
	x.logger.Info("Extracted treaty rows",
		zap.String("country", anchor.Name),
		zap.Int("country_id", anchor.ID),
		zap.Int("rows", len(items)),
	)
	return items
}

// extractIndexed reads fields through explicit data-index markers. Two
// numbering conventions for the same marker exist across page templates, so
// each field is read at its expected index with the index-minus-one
// alternative as fallback, preferring the former when it is non-empty.
func extractIndexed(cells *goquery.Selection) (RawItem, bool) {
	cellMap := make(map[int]string)
	cells.Each(func(_ int, cell *goquery.Selection) {
		raw, ok := cell.Attr("data-index")
		if !ok || raw == "" {
			return
		}
		idx, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return
		}
		cellMap[idx] = strings.TrimSpace(cell.Text())
	})
	if len(cellMap) == 0 {
		return RawItem{}, false
	}

	at := func(primary int) string {
		if v, ok := cellMap[primary]; ok && v != "" {
			return v
		}
		return cellMap[primary-1]
	}
	return RawItem{
		Title:             at(2),
		Category:          at(3),
		Status:            at(4),
		PartiesRaw:        at(5),
		SignatureRaw:      at(6),
		EntryIntoForceRaw: at(7),
		TerminationRaw:    at(8),
	}, true
}

// extractPositional falls back to the canonical column order:
// [ordinal, title, category, status, parties, signed, in force, terminated].
// Positions beyond the row's cell count yield empty fields.
func extractPositional(cells *goquery.Selection) RawItem {
	texts := make([]string, 0, cells.Length())
	cells.Each(func(_ int, cell *goquery.Selection) {
		texts = append(texts, strings.TrimSpace(cell.Text()))
	})
	at := func(i int) string {
		if i < len(texts) {
			return texts[i]
		}
		return ""
	}
	return RawItem{
		Title:             at(1),
		Category:          at(2),
		Status:            at(3),
		PartiesRaw:        at(4),
		SignatureRaw:      at(5),
		EntryIntoForceRaw: at(6),
		TerminationRaw:    at(7),
	}
}

// detailLink finds the treaty detail URL within the row, if any.
func detailLink(row *goquery.Selection) string {
	href, _ := row.Find("a[href*='/treaties/']").First().Attr("href")
	return strings.TrimSpace(href)
}

// normalizeCategory classifies the raw type label: anything containing the
// BIT short-form is a BIT, any other non-empty label is a TIP, and an empty
// label stays empty.
func normalizeCategory(raw string) string {
	label := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(label, "bit"):
		return CategoryBIT
	case label != "":
		return CategoryTIP
	default:
		return ""
	}
}
