package categorizer

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed keywords.yaml
var defaultTableYAML []byte

// DefaultFallbackEmoji is used for unknown categories.
const DefaultFallbackEmoji = "📊"

// SubCategory is a named keyword list under a primary category.
type SubCategory struct {
	Name     string   `yaml:"name" validate:"required"`
	Emoji    string   `yaml:"emoji"`
	Keywords []string `yaml:"keywords" validate:"min=1,dive,required"`
}

// Category is a primary category with ordered sub-categories.
type Category struct {
	Name          string        `yaml:"name" validate:"required"`
	Emoji         string        `yaml:"emoji"`
	SubCategories []SubCategory `yaml:"subcategories" validate:"min=1,dive"`
}

// tableFile is the on-disk layout of a keyword table.
type tableFile struct {
	Version       string     `yaml:"version" validate:"required"`
	FallbackEmoji string     `yaml:"fallback_emoji"`
	Categories    []Category `yaml:"categories" validate:"min=1,dive"`
}

// indexEntry maps a keyword to the first (primary, sub) that lists it.
type indexEntry struct {
	keyword string
	primary string
	sub     string
}

// KeywordTable is an immutable, versioned keyword to category mapping.
// Safe for concurrent use.
type KeywordTable struct {
	version       string
	fallbackEmoji string
	categories    []Category
	index         []indexEntry // table order, first occurrence of each keyword
}

var (
	defaultOnce  sync.Once
	defaultTable *KeywordTable
	defaultErr   error
)

// DefaultTable returns the built-in keyword table.
func DefaultTable() (*KeywordTable, error) {
	defaultOnce.Do(func() {
		defaultTable, defaultErr = ParseTable(defaultTableYAML)
	})
	return defaultTable, defaultErr
}

// MustDefaultTable returns the built-in keyword table or panics.
func MustDefaultTable() *KeywordTable {
	t, err := DefaultTable()
	if err != nil {
		panic(fmt.Sprintf("categorizer: invalid built-in keyword table: %v", err))
	}
	return t
}

// LoadTableFile reads a keyword table from a YAML file.
func LoadTableFile(path string) (*KeywordTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open keyword table: %w", err)
	}
	defer f.Close()
	return LoadTable(f)
}

// LoadTable reads a keyword table from r.
func LoadTable(r io.Reader) (*KeywordTable, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read keyword table: %w", err)
	}
	return ParseTable(data)
}

// ParseTable parses and validates a YAML keyword table.
func ParseTable(data []byte) (*KeywordTable, error) {
	var file tableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse keyword table: %w", err)
	}
	if err := validator.New().Struct(file); err != nil {
		return nil, fmt.Errorf("validate keyword table: %w", err)
	}
	return NewTable(file.Version, file.FallbackEmoji, file.Categories)
}

// NewTable builds a table from ordered categories. Keywords are lowercased.
// Duplicate primary or sub-category names are rejected.
func NewTable(version, fallbackEmoji string, categories []Category) (*KeywordTable, error) {
	if fallbackEmoji == "" {
		fallbackEmoji = DefaultFallbackEmoji
	}

	t := &KeywordTable{
		version:       version,
		fallbackEmoji: fallbackEmoji,
		categories:    make([]Category, 0, len(categories)),
	}

	seenKeyword := make(map[string]struct{})
	seenPrimary := make(map[string]struct{})
	for _, c := range categories {
		if _, dup := seenPrimary[c.Name]; dup {
			return nil, fmt.Errorf("duplicate category %q", c.Name)
		}
		seenPrimary[c.Name] = struct{}{}

		cc := Category{Name: c.Name, Emoji: c.Emoji}
		seenSub := make(map[string]struct{})
		for _, sc := range c.SubCategories {
			if _, dup := seenSub[sc.Name]; dup {
				return nil, fmt.Errorf("duplicate sub-category %q in %q", sc.Name, c.Name)
			}
			seenSub[sc.Name] = struct{}{}

			sub := SubCategory{Name: sc.Name, Emoji: sc.Emoji}
			for _, kw := range sc.Keywords {
				kw = strings.ToLower(strings.TrimSpace(kw))
				if kw == "" {
					continue
				}
				sub.Keywords = append(sub.Keywords, kw)
				if _, exists := seenKeyword[kw]; exists {
					continue
				}
				seenKeyword[kw] = struct{}{}
				t.index = append(t.index, indexEntry{keyword: kw, primary: c.Name, sub: sc.Name})
			}
			cc.SubCategories = append(cc.SubCategories, sub)
		}
		t.categories = append(t.categories, cc)
	}

	return t, nil
}

// Version returns the table version string.
func (t *KeywordTable) Version() string {
	return t.version
}

// Categories returns primary category names mapped to their sub-category names.
func (t *KeywordTable) Categories() map[string][]string {
	result := make(map[string][]string, len(t.categories))
	for _, c := range t.categories {
		subs := make([]string, 0, len(c.SubCategories))
		for _, sc := range c.SubCategories {
			subs = append(subs, sc.Name)
		}
		result[c.Name] = subs
	}
	return result
}

// PrimaryNames returns primary category names in table order.
func (t *KeywordTable) PrimaryNames() []string {
	names := make([]string, 0, len(t.categories))
	for _, c := range t.categories {
		names = append(names, c.Name)
	}
	return names
}

// KeywordsFor returns the keywords of a sub-category, or of every
// sub-category of primary when sub is empty. Unknown names yield nil.
func (t *KeywordTable) KeywordsFor(primary, sub string) []string {
	for _, c := range t.categories {
		if c.Name != primary {
			continue
		}
		var keywords []string
		for _, sc := range c.SubCategories {
			if sub == "" || sc.Name == sub {
				keywords = append(keywords, sc.Keywords...)
			}
		}
		return keywords
	}
	return nil
}

// KnownCategoryKeywords returns the keyword list of every sub-category,
// keyed by "primary/sub".
func (t *KeywordTable) KnownCategoryKeywords() map[string][]string {
	result := make(map[string][]string)
	for _, c := range t.categories {
		for _, sc := range c.SubCategories {
			result[c.Name+"/"+sc.Name] = append([]string(nil), sc.Keywords...)
		}
	}
	return result
}

// Emoji returns the display emoji for a category. The sub-category emoji is
// preferred, then the primary emoji, then the fallback.
func (t *KeywordTable) Emoji(primary, sub string) string {
	for _, c := range t.categories {
		if c.Name != primary {
			continue
		}
		if sub != "" {
			for _, sc := range c.SubCategories {
				if sc.Name == sub && sc.Emoji != "" {
					return sc.Emoji
				}
			}
		}
		if c.Emoji != "" {
			return c.Emoji
		}
		break
	}
	return t.fallbackEmoji
}
