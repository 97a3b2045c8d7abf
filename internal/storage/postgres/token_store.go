package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"trendradar/internal/domain"
	"trendradar/internal/storage"
)

// TokenStore implements storage.TokenStore using PostgreSQL.
type TokenStore struct {
	pool *Pool
}

// NewTokenStore creates a new TokenStore.
func NewTokenStore(pool *Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenStore = (*TokenStore)(nil)

const tokenColumns = `
	address, name, symbol, created_at, first_seen_at,
	primary_category, sub_category, detected_keywords,
	is_breakout_meta, breakout_cluster_name, is_graduated
`

// Insert adds a new token. Returns ErrDuplicateKey if address exists.
func (s *TokenStore) Insert(ctx context.Context, t *domain.Token) error {
	if t == nil {
		return storage.ErrInvalidInput
	}
	if err := domain.ValidateAddress(t.Address); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	query := `
		INSERT INTO tokens (` + tokenColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.pool.Exec(ctx, query,
		t.Address,
		t.Name,
		t.Symbol,
		t.CreatedAt,
		t.FirstSeenAt,
		t.PrimaryCategory,
		t.SubCategory,
		keywordsOrEmpty(t.DetectedKeywords),
		t.IsBreakoutMeta,
		t.BreakoutClusterName,
		t.IsGraduated,
	)
	if err != nil {
		return wrapErr(err, "insert token")
	}
	return nil
}

// GetByAddress retrieves a token by address. Returns ErrNotFound if not exists.
func (s *TokenStore) GetByAddress(ctx context.Context, address string) (*domain.Token, error) {
	query := `SELECT ` + tokenColumns + ` FROM tokens WHERE address = $1`

	t, err := scanToken(s.pool.QueryRow(ctx, query, address))
	if err != nil {
		return nil, wrapErr(err, "get token by address")
	}
	return t, nil
}

// GetAll retrieves all tokens, ordered by address ASC.
func (s *TokenStore) GetAll(ctx context.Context) ([]*domain.Token, error) {
	query := `SELECT ` + tokenColumns + ` FROM tokens ORDER BY address ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all tokens: %w", err)
	}
	defer rows.Close()

	return scanTokens(rows)
}

// GetByCategory retrieves tokens classified under category.
// A nil subCategory matches every sub-category.
func (s *TokenStore) GetByCategory(ctx context.Context, category string, subCategory *string) ([]*domain.Token, error) {
	query := `
		SELECT ` + tokenColumns + `
		FROM tokens
		WHERE primary_category = $1
		  AND ($2::text IS NULL OR sub_category = $2)
		ORDER BY address ASC
	`

	rows, err := s.pool.Query(ctx, query, category, subCategory)
	if err != nil {
		return nil, fmt.Errorf("get tokens by category: %w", err)
	}
	defer rows.Close()

	return scanTokens(rows)
}

// DistinctCategories returns the distinct (primary, sub) pairs among classified tokens.
func (s *TokenStore) DistinctCategories(ctx context.Context) ([]domain.CategoryKey, error) {
	query := `
		SELECT DISTINCT primary_category, sub_category
		FROM tokens
		WHERE primary_category IS NOT NULL
		ORDER BY primary_category ASC, sub_category ASC NULLS FIRST
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get distinct categories: %w", err)
	}
	defer rows.Close()

	var keys []domain.CategoryKey
	for rows.Next() {
		var k domain.CategoryKey
		if err := rows.Scan(&k.Category, &k.SubCategory); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return keys, nil
}

// Unclassified retrieves tokens first seen at or after sinceMs with no
// primary category or a catch-all primary category.
func (s *TokenStore) Unclassified(ctx context.Context, sinceMs int64, catchAll []string) ([]*domain.Token, error) {
	query := `
		SELECT ` + tokenColumns + `
		FROM tokens
		WHERE first_seen_at >= $1
		  AND (primary_category IS NULL OR primary_category = ANY($2))
		ORDER BY address ASC
	`

	if catchAll == nil {
		catchAll = []string{}
	}

	rows, err := s.pool.Query(ctx, query, sinceMs, catchAll)
	if err != nil {
		return nil, fmt.Errorf("get unclassified tokens: %w", err)
	}
	defer rows.Close()

	return scanTokens(rows)
}

// UpdateClassification overwrites the classification fields.
func (s *TokenStore) UpdateClassification(ctx context.Context, address string, c domain.Classification) error {
	query := `
		UPDATE tokens
		SET primary_category = $2, sub_category = $3, detected_keywords = $4
		WHERE address = $1
	`

	tag, err := s.pool.Exec(ctx, query, address, c.PrimaryCategory, c.SubCategory, keywordsOrEmpty(c.DetectedKeywords))
	if err != nil {
		return fmt.Errorf("update classification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// SetBreakoutFlags overwrites the breakout flag fields.
func (s *TokenStore) SetBreakoutFlags(ctx context.Context, address string, isBreakout bool, clusterName *string) error {
	query := `
		UPDATE tokens
		SET is_breakout_meta = $2, breakout_cluster_name = $3
		WHERE address = $1
	`

	tag, err := s.pool.Exec(ctx, query, address, isBreakout, clusterName)
	if err != nil {
		return fmt.Errorf("set breakout flags: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetFlaggedBreakouts retrieves tokens with is_breakout_meta set.
func (s *TokenStore) GetFlaggedBreakouts(ctx context.Context) ([]*domain.Token, error) {
	query := `
		SELECT ` + tokenColumns + `
		FROM tokens
		WHERE is_breakout_meta
		ORDER BY address ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get flagged breakouts: %w", err)
	}
	defer rows.Close()

	return scanTokens(rows)
}

// keywordsOrEmpty maps nil to an empty array for the NOT NULL column.
func keywordsOrEmpty(keywords []string) []string {
	if keywords == nil {
		return []string{}
	}
	return keywords
}

// scanToken scans a single row into a Token.
func scanToken(row pgx.Row) (*domain.Token, error) {
	var t domain.Token
	err := row.Scan(
		&t.Address,
		&t.Name,
		&t.Symbol,
		&t.CreatedAt,
		&t.FirstSeenAt,
		&t.PrimaryCategory,
		&t.SubCategory,
		&t.DetectedKeywords,
		&t.IsBreakoutMeta,
		&t.BreakoutClusterName,
		&t.IsGraduated,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// scanTokens scans multiple rows into Tokens.
func scanTokens(rows pgx.Rows) ([]*domain.Token, error) {
	var tokens []*domain.Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tokens: %w", err)
	}
	return tokens, nil
}
