package categorizer

import (
	"strings"
	"testing"
)

func TestDefaultTable(t *testing.T) {
	table, err := DefaultTable()
	if err != nil {
		t.Fatalf("DefaultTable failed: %v", err)
	}

	if table.Version() == "" {
		t.Error("expected non-empty version")
	}

	want := []string{
		"Animals", "Meme Culture", "Pop Culture", "Finance",
		"Technology", "Food & Lifestyle", "Politics", "Miscellaneous",
	}
	got := table.PrimaryNames()
	if len(got) != len(want) {
		t.Fatalf("expected %d primary categories, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("primary[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	cats := table.Categories()
	if len(cats["Animals"]) != 6 {
		t.Errorf("expected 6 Animals sub-categories, got %d", len(cats["Animals"]))
	}
}

func TestKeywordTable_Emoji(t *testing.T) {
	table := MustDefaultTable()

	tests := []struct {
		primary, sub, want string
	}{
		{"Animals", "Dogs", "🐕"},
		{"Technology", "", "💻"},
		{"Technology", "Unknown", "💻"},
		{"Nope", "", "📊"},
	}

	for _, tt := range tests {
		if got := table.Emoji(tt.primary, tt.sub); got != tt.want {
			t.Errorf("Emoji(%q, %q) = %s, want %s", tt.primary, tt.sub, got, tt.want)
		}
	}
}

func TestKeywordTable_KeywordsFor(t *testing.T) {
	table := MustDefaultTable()

	dogs := table.KeywordsFor("Animals", "Dogs")
	if len(dogs) == 0 || dogs[0] != "dog" {
		t.Errorf("unexpected Dogs keywords: %v", dogs)
	}

	all := table.KeywordsFor("Animals", "")
	if len(all) <= len(dogs) {
		t.Errorf("expected primary keywords to include every sub-category, got %d", len(all))
	}

	if got := table.KeywordsFor("Nope", ""); got != nil {
		t.Errorf("expected nil for unknown category, got %v", got)
	}

	known := table.KnownCategoryKeywords()
	if _, ok := known["Finance/DeFi"]; !ok {
		t.Error("expected Finance/DeFi in known category keywords")
	}
}

func TestParseTable_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing version", "categories:\n  - name: A\n    subcategories:\n      - name: B\n        keywords: [x]\n"},
		{"empty keywords", "version: v\ncategories:\n  - name: A\n    subcategories:\n      - name: B\n        keywords: []\n"},
		{"no categories", "version: v\n"},
		{"duplicate sub-category", "version: v\ncategories:\n  - name: A\n    subcategories:\n      - name: B\n        keywords: [x]\n      - name: B\n        keywords: [y]\n"},
		{"malformed", "version: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadTable(strings.NewReader(tt.yaml)); err == nil {
				t.Error("expected error")
			}
		})
	}
}
