package domain

// Token represents a tracked short-lived token.
// Corresponds to tokens table in PostgreSQL.
type Token struct {
	Address             string   // PRIMARY KEY, base58 mint address
	Name                string   // token name
	Symbol              string   // token symbol
	CreatedAt           int64    // on-chain creation timestamp (ms)
	FirstSeenAt         int64    // first observation timestamp (ms)
	PrimaryCategory     *string  // nil when unclassified
	SubCategory         *string  // nil when unclassified
	DetectedKeywords    []string // all matched keywords, keyword table order
	IsBreakoutMeta      bool     // member of an emergent cluster
	BreakoutClusterName *string  // cluster name (nullable)
	IsGraduated         bool     // migrated off the bonding curve
}

// IsClassified reports whether the token has a primary category.
func (t *Token) IsClassified() bool {
	return t.PrimaryCategory != nil
}

// Classification holds the mutable classification fields of a Token.
type Classification struct {
	PrimaryCategory  *string
	SubCategory      *string
	DetectedKeywords []string
}

// Classification returns the current classification fields.
func (t *Token) Classification() Classification {
	return Classification{
		PrimaryCategory:  t.PrimaryCategory,
		SubCategory:      t.SubCategory,
		DetectedKeywords: t.DetectedKeywords,
	}
}

// Equal reports whether two classifications carry the same values.
func (c Classification) Equal(other Classification) bool {
	if !equalStringPtr(c.PrimaryCategory, other.PrimaryCategory) ||
		!equalStringPtr(c.SubCategory, other.SubCategory) {
		return false
	}
	if len(c.DetectedKeywords) != len(other.DetectedKeywords) {
		return false
	}
	for i := range c.DetectedKeywords {
		if c.DetectedKeywords[i] != other.DetectedKeywords[i] {
			return false
		}
	}
	return true
}

// CopyToken returns a deep copy of t.
func CopyToken(t *Token) *Token {
	if t == nil {
		return nil
	}
	c := *t
	c.PrimaryCategory = copyStringPtr(t.PrimaryCategory)
	c.SubCategory = copyStringPtr(t.SubCategory)
	c.BreakoutClusterName = copyStringPtr(t.BreakoutClusterName)
	if t.DetectedKeywords != nil {
		c.DetectedKeywords = append([]string(nil), t.DetectedKeywords...)
	}
	return &c
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func copyStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
