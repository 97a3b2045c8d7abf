package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendradar/internal/categorizer"
	"trendradar/internal/domain"
	"trendradar/internal/fixtures"
)

func ptr[T any](v T) *T {
	return &v
}

func TestRecategorize(t *testing.T) {
	ctx := context.Background()
	s := newTestStores()

	tokens := []*domain.Token{
		// Never classified.
		{Address: fixtures.Address(1), Name: "Corgi Club", Symbol: "CORGI", FirstSeenAt: asOf},
		// Classified under an older table.
		{Address: fixtures.Address(2), Name: "Kitty Kat", Symbol: "KITTY", FirstSeenAt: asOf,
			PrimaryCategory: ptr("Animals"), SubCategory: ptr("Dogs"), DetectedKeywords: []string{"dog"}},
		// Already current.
		{Address: fixtures.Address(3), Name: "Pepe Frog", Symbol: "PFROG", FirstSeenAt: asOf,
			PrimaryCategory: ptr("Animals"), SubCategory: ptr("Frogs"), DetectedKeywords: []string{"frog", "pepe"}},
		// No keyword matches; the manual assignment stays.
		{Address: fixtures.Address(4), Name: "zxqvw", Symbol: "zxq", FirstSeenAt: asOf,
			PrimaryCategory: ptr("Miscellaneous"), DetectedKeywords: []string{}},
	}
	for _, tok := range tokens {
		require.NoError(t, s.tokens.Insert(ctx, tok))
	}

	opts := baseOptions(s)
	opts.Categorizer = categorizer.New(categorizer.MustDefaultTable())
	result, err := New(opts).Recategorize(ctx)
	require.NoError(t, err)

	assert.Equal(t, 4, result.Scanned)
	assert.Equal(t, 3, result.Matched)
	assert.Equal(t, 2, result.Updated)
	assert.Empty(t, result.Errors)

	corgi, err := s.tokens.GetByAddress(ctx, fixtures.Address(1))
	require.NoError(t, err)
	assert.Equal(t, "Animals", *corgi.PrimaryCategory)
	assert.Equal(t, "Dogs", *corgi.SubCategory)
	assert.Equal(t, []string{"corgi"}, corgi.DetectedKeywords)

	kitty, err := s.tokens.GetByAddress(ctx, fixtures.Address(2))
	require.NoError(t, err)
	assert.Equal(t, "Cats", *kitty.SubCategory)
	assert.Equal(t, []string{"kitty"}, kitty.DetectedKeywords)

	misc, err := s.tokens.GetByAddress(ctx, fixtures.Address(4))
	require.NoError(t, err)
	assert.Equal(t, "Miscellaneous", *misc.PrimaryCategory)
}

func TestRun_RecategorizesBeforeAggregating(t *testing.T) {
	ctx := context.Background()
	s := newTestStores()

	require.NoError(t, s.tokens.Insert(ctx, &domain.Token{
		Address: fixtures.Address(1), Name: "Corgi Club", Symbol: "CORGI", FirstSeenAt: asOf,
	}))

	opts := baseOptions(s)
	opts.Categorizer = categorizer.New(categorizer.MustDefaultTable())
	opts.Recategorize = true

	result, err := New(opts).RunAt(ctx, asOf)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Recategorized)
	// Animals/* and Animals/Dogs in three windows.
	assert.Equal(t, 6, result.KeysProcessed)
}

func TestRecategorize_NoCategorizer(t *testing.T) {
	_, err := New(baseOptions(newTestStores())).Recategorize(context.Background())
	assert.Error(t, err)
}
