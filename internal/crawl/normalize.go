package crawl

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var datePattern = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})`)

// NormalizeDate converts DD/MM/YYYY display dates to YYYY-MM-DD. Empty
// input yields empty output; a string in any other shape is returned
// unchanged.
func NormalizeDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	m := datePattern.FindStringSubmatch(raw)
	if m == nil {
		return raw
	}
	return fmt.Sprintf("%s-%s-%s", m[3], pad2(m[2]), pad2(m[1]))
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// SplitParties splits a comma-joined party string into its two country
// names. Names can themselves contain commas ("Korea, Republic of"), so for
// multi-comma strings every comma position is tried and the last split
// whose right side starts with an uppercase letter wins. That rule is a
// heuristic inherited from the source data, not a guarantee; when no
// position qualifies the whole string becomes party one.
func SplitParties(raw string) (string, string) {
	raw = strings.TrimSpace(raw)
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) == 2 {
		return parts[0], parts[1]
	}

	var (
		left, right string
		found       bool
	)
	for i := 1; i < len(parts); i++ {
		l := strings.TrimSpace(strings.Join(parts[:i], ", "))
		r := strings.TrimSpace(strings.Join(parts[i:], ", "))
		if l == "" || r == "" {
			continue
		}
		if first, _ := utf8.DecodeRuneInString(r); unicode.IsUpper(first) {
			left, right = l, r
			found = true
		}
	}
	if found {
		return left, right
	}
	return raw, ""
}
