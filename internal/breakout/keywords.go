package breakout

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	minKeywordFrequency = 0.3
	minKeywordLength    = 3
	knownOverlapRatio   = 0.5
)

// commonKeywords returns whitespace tokens present in at least 30% of texts
// and at least three characters long, most frequent first. Ties keep the
// order of first appearance.
func commonKeywords(texts []string) []string {
	if len(texts) == 0 {
		return nil
	}

	counts := make(map[string]int)
	var order []string
	for _, text := range texts {
		seen := make(map[string]struct{})
		for _, w := range strings.Fields(text) {
			if _, dup := seen[w]; dup {
				continue
			}
			seen[w] = struct{}{}
			if counts[w] == 0 {
				order = append(order, w)
			}
			counts[w]++
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	total := float64(len(texts))
	var keywords []string
	for _, w := range order {
		if float64(counts[w])/total < minKeywordFrequency {
			continue
		}
		if utf8.RuneCountInString(w) < minKeywordLength {
			continue
		}
		keywords = append(keywords, w)
	}
	return keywords
}

// matchesKnownCategory reports whether more than half of keywords belong to
// any single known category.
func matchesKnownCategory(keywords []string, known map[string][]string) bool {
	set := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		set[strings.ToLower(k)] = struct{}{}
	}

	for _, categoryKeywords := range known {
		catSet := make(map[string]struct{}, len(categoryKeywords))
		for _, k := range categoryKeywords {
			catSet[strings.ToLower(k)] = struct{}{}
		}
		overlap := 0
		for k := range set {
			if _, ok := catSet[k]; ok {
				overlap++
			}
		}
		if float64(overlap) > float64(len(set))*knownOverlapRatio {
			return true
		}
	}
	return false
}

// clusterName builds "Kw1-Kw2 Meta", "Kw1 Meta" or "Unknown Meta".
func clusterName(keywords []string) string {
	switch len(keywords) {
	case 0:
		return "Unknown Meta"
	case 1:
		return titleCase(keywords[0]) + " Meta"
	default:
		return titleCase(keywords[0]) + "-" + titleCase(keywords[1]) + " Meta"
	}
}

// titleCase upper-cases the first letter of every run of letters and
// lower-cases the rest, so "doge2moon" becomes "Doge2Moon".
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}
