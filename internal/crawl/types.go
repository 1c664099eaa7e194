// Package crawl implements the crawl-orchestration engine: country
// discovery with strategy fallback, per-row treaty extraction, termination
// detail enrichment, canonical-key deduplication, and checkpoint/resume.
package crawl

import "strings"

// Treaty categories produced by label normalization.
const (
	CategoryBIT = "BIT"
	CategoryTIP = "TIP"
)

// Anchor identifies one crawlable country/economy page. IDs are
// source-assigned, stable, and unique across a discovered set; the ID is
// the checkpoint resume key.
type Anchor struct {
	ID   int
	Slug string
	Name string
}

// RawItem is one treaty row as extracted from a country table, before any
// normalization. A bilateral treaty is listed once per party, so the same
// logical treaty is expected to appear under two anchors; that duplication
// is resolved only at dedup time.
type RawItem struct {
	SourceURL         string
	Title             string
	Category          string
	Status            string
	PartiesRaw        string
	SignatureRaw      string
	EntryIntoForceRaw string
	TerminationRaw    string
	AnchorID          int
	AnchorName        string
}

// Key derives the deduplication identity: the detail-page URL when present,
// otherwise the lower-cased title. Empty means the item is unkeyable and is
// dropped.
func (r RawItem) Key() string {
	if u := strings.TrimSpace(r.SourceURL); u != "" {
		return u
	}
	return strings.ToLower(strings.TrimSpace(r.Title))
}

// CanonicalItem is one treaty after deduplication. Dates are normalized to
// YYYY-MM-DD (or left as-is when unparseable); TerminationCategory stays
// empty unless enrichment fills it.
type CanonicalItem struct {
	Key                 string
	SourceURL           string
	Title               string
	Category            string
	Status              string
	Party1              string
	Party2              string
	SignatureDate       string
	EntryIntoForceDate  string
	TerminationDate     string
	TerminationCategory string
}

// Terminated reports whether the item's status marks it as terminated and
// therefore eligible for detail enrichment.
func (c CanonicalItem) Terminated() bool {
	return strings.Contains(strings.ToLower(c.Status), "terminat")
}
