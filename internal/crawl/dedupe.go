package crawl

// Deduplicate canonicalizes raw items to one per key, preserving first-seen
// order. The policy is first-write-wins: a bilateral treaty appears once
// per party's country page with identical content, so later duplicates are
// dropped, not merged; asymmetric duplicates are not reconciled. Items with
// an empty key after both fallbacks are dropped entirely.
func Deduplicate(items []RawItem) []CanonicalItem {
	seen := make(map[string]struct{}, len(items))
	out := make([]CanonicalItem, 0, len(items))
	for _, item := range items {
		key := item.Key()
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, CanonicalItem{
			Key:                key,
			SourceURL:          item.SourceURL,
			Title:              item.Title,
			Category:           item.Category,
			Status:             item.Status,
			Party1:             item.PartiesRaw,
			SignatureDate:      item.SignatureRaw,
			EntryIntoForceDate: item.EntryIntoForceRaw,
			TerminationDate:    item.TerminationRaw,
		})
	}
	return out
}

// Normalize splits parties and normalizes the three date fields in place.
// Runs after deduplication, before enrichment.
func Normalize(items []CanonicalItem) {
	for i := range items {
		it := &items[i]
		it.Party1, it.Party2 = SplitParties(it.Party1)
		it.SignatureDate = NormalizeDate(it.SignatureDate)
		it.EntryIntoForceDate = NormalizeDate(it.EntryIntoForceDate)
		it.TerminationDate = NormalizeDate(it.TerminationDate)
	}
}
