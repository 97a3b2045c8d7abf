// Package categorizer assigns tokens to trend categories by keyword matching
// on their name and symbol.
package categorizer

import (
	"strings"

	"trendradar/internal/domain"
)

// minSubstringKeywordLen is the shortest keyword allowed to match inside a
// longer word. Shorter keywords only match whole words.
const minSubstringKeywordLen = 4

// stopWords are removed before matching.
var stopWords = map[string]struct{}{
	"token":  {},
	"coin":   {},
	"sol":    {},
	"solana": {},
	"the":    {},
	"of":     {},
	"a":      {},
	"an":     {},
}

// Result is the outcome of categorizing one token.
// A nil PrimaryCategory means no keyword matched.
type Result struct {
	PrimaryCategory  *string
	SubCategory      *string
	DetectedKeywords []string // every matched keyword, table order
}

// Matched reports whether a category was assigned.
func (r Result) Matched() bool {
	return r.PrimaryCategory != nil
}

// Classification converts the result into token classification fields.
func (r Result) Classification() domain.Classification {
	return domain.Classification{
		PrimaryCategory:  r.PrimaryCategory,
		SubCategory:      r.SubCategory,
		DetectedKeywords: r.DetectedKeywords,
	}
}

// Categorizer classifies tokens against a keyword table.
// It holds no mutable state and is safe for concurrent use.
type Categorizer struct {
	table *KeywordTable
}

// New creates a categorizer for the given table.
func New(table *KeywordTable) *Categorizer {
	return &Categorizer{table: table}
}

// Table returns the keyword table in use.
func (c *Categorizer) Table() *KeywordTable {
	return c.table
}

// Categorize classifies a token from its name and symbol.
//
// A keyword matches when it equals a word of the input, or when it is at
// least four characters long and occurs inside a word. The longest matched
// keyword decides the category; on equal length the earlier keyword in the
// table wins.
func (c *Categorizer) Categorize(name, symbol string) Result {
	words := tokenize(strings.ToLower(name + " " + symbol))

	result := Result{DetectedKeywords: []string{}}
	var best *indexEntry

	for i := range c.table.index {
		entry := &c.table.index[i]
		if !matches(entry.keyword, words) {
			continue
		}
		result.DetectedKeywords = append(result.DetectedKeywords, entry.keyword)
		if best == nil || len(entry.keyword) > len(best.keyword) {
			best = entry
		}
	}

	if best != nil {
		primary, sub := best.primary, best.sub
		result.PrimaryCategory = &primary
		result.SubCategory = &sub
	}
	return result
}

// matches checks a keyword against the word set.
func matches(keyword string, words map[string]struct{}) bool {
	if _, ok := words[keyword]; ok {
		return true
	}
	if len(keyword) < minSubstringKeywordLen {
		return false
	}
	for w := range words {
		if strings.Contains(w, keyword) {
			return true
		}
	}
	return false
}

// tokenize splits lowercase text into ASCII alphanumeric words, minus stop words.
func tokenize(text string) map[string]struct{} {
	words := make(map[string]struct{})
	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		w := text[start:end]
		if _, stop := stopWords[w]; !stop {
			words[w] = struct{}{}
		}
		start = -1
	}

	for i := 0; i < len(text); i++ {
		ch := text[i]
		if (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9') {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(text))
	return words
}
