package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"trendradar/internal/domain"
	"trendradar/internal/storage"
)

// TokenStore is an in-memory implementation of storage.TokenStore.
type TokenStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Token // keyed by address
}

// NewTokenStore creates a new in-memory token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{
		data: make(map[string]*domain.Token),
	}
}

// Insert adds a new token. Returns ErrDuplicateKey if address exists.
func (s *TokenStore) Insert(_ context.Context, t *domain.Token) error {
	if t == nil {
		return storage.ErrInvalidInput
	}
	if err := domain.ValidateAddress(t.Address); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.Address]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[t.Address] = domain.CopyToken(t)
	return nil
}

// GetByAddress retrieves a token by address. Returns ErrNotFound if not exists.
func (s *TokenStore) GetByAddress(_ context.Context, address string) (*domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.data[address]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return domain.CopyToken(t), nil
}

// GetAll retrieves all tokens, ordered by address ASC.
func (s *TokenStore) GetAll(_ context.Context) ([]*domain.Token, error) {
	return s.filter(func(*domain.Token) bool { return true }), nil
}

// GetByCategory retrieves tokens classified under category.
// A nil subCategory matches every sub-category.
func (s *TokenStore) GetByCategory(_ context.Context, category string, subCategory *string) ([]*domain.Token, error) {
	return s.filter(func(t *domain.Token) bool {
		if t.PrimaryCategory == nil || *t.PrimaryCategory != category {
			return false
		}
		if subCategory == nil {
			return true
		}
		return t.SubCategory != nil && *t.SubCategory == *subCategory
	}), nil
}

// DistinctCategories returns the distinct (primary, sub) pairs among classified tokens.
func (s *TokenStore) DistinctCategories(_ context.Context) ([]domain.CategoryKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]domain.CategoryKey)
	for _, t := range s.data {
		if t.PrimaryCategory == nil {
			continue
		}
		key := domain.CategoryKey{Category: *t.PrimaryCategory}
		if t.SubCategory != nil {
			sub := *t.SubCategory
			key.SubCategory = &sub
		}
		seen[key.String()] = key
	}

	keys := make([]domain.CategoryKey, 0, len(seen))
	for _, k := range seen {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Category != keys[j].Category {
			return keys[i].Category < keys[j].Category
		}
		// Rollup sorts before named sub-categories.
		if keys[i].SubCategory == nil || keys[j].SubCategory == nil {
			return keys[i].SubCategory == nil && keys[j].SubCategory != nil
		}
		return *keys[i].SubCategory < *keys[j].SubCategory
	})
	return keys, nil
}

// Unclassified retrieves tokens first seen at or after sinceMs with no
// primary category or a catch-all primary category.
func (s *TokenStore) Unclassified(_ context.Context, sinceMs int64, catchAll []string) ([]*domain.Token, error) {
	buckets := make(map[string]struct{}, len(catchAll))
	for _, c := range catchAll {
		buckets[c] = struct{}{}
	}

	return s.filter(func(t *domain.Token) bool {
		if t.FirstSeenAt < sinceMs {
			return false
		}
		if t.PrimaryCategory == nil {
			return true
		}
		_, ok := buckets[*t.PrimaryCategory]
		return ok
	}), nil
}

// UpdateClassification overwrites the classification fields.
func (s *TokenStore) UpdateClassification(_ context.Context, address string, c domain.Classification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.data[address]
	if !exists {
		return storage.ErrNotFound
	}

	updated := domain.CopyToken(&domain.Token{
		PrimaryCategory:  c.PrimaryCategory,
		SubCategory:      c.SubCategory,
		DetectedKeywords: c.DetectedKeywords,
	})
	t.PrimaryCategory = updated.PrimaryCategory
	t.SubCategory = updated.SubCategory
	t.DetectedKeywords = updated.DetectedKeywords
	return nil
}

// SetBreakoutFlags overwrites the breakout flag fields.
func (s *TokenStore) SetBreakoutFlags(_ context.Context, address string, isBreakout bool, clusterName *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.data[address]
	if !exists {
		return storage.ErrNotFound
	}

	t.IsBreakoutMeta = isBreakout
	t.BreakoutClusterName = nil
	if clusterName != nil {
		name := *clusterName
		t.BreakoutClusterName = &name
	}
	return nil
}

// GetFlaggedBreakouts retrieves tokens with is_breakout_meta set.
func (s *TokenStore) GetFlaggedBreakouts(_ context.Context) ([]*domain.Token, error) {
	return s.filter(func(t *domain.Token) bool { return t.IsBreakoutMeta }), nil
}

// filter returns copies of matching tokens ordered by address ASC.
func (s *TokenStore) filter(match func(*domain.Token) bool) []*domain.Token {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Token
	for _, t := range s.data {
		if match(t) {
			result = append(result, domain.CopyToken(t))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Address < result[j].Address
	})
	return result
}

var _ storage.TokenStore = (*TokenStore)(nil)
