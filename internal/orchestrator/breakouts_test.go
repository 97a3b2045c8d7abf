package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendradar/internal/domain"
	"trendradar/internal/fixtures"
)

func withDetector(s *testStores, policy FlagPolicy) Options {
	opts := baseOptions(s)
	opts.Detector = testDetector()
	opts.MinCohort = 10
	opts.CatchAllCategories = []string{"Miscellaneous"}
	opts.FlagPolicy = policy
	return opts
}

// tokenByName finds a fixture token by name.
func tokenByName(t *testing.T, ds *fixtures.Dataset, name string) *domain.Token {
	t.Helper()
	for _, tok := range ds.Tokens {
		if tok.Name == name {
			return tok
		}
	}
	t.Fatalf("fixture token %q not found", name)
	return nil
}

func flaggedNames(t *testing.T, s *testStores) map[string]string {
	t.Helper()
	flagged, err := s.tokens.GetFlaggedBreakouts(context.Background())
	require.NoError(t, err)

	names := make(map[string]string, len(flagged))
	for _, tok := range flagged {
		cluster := ""
		if tok.BreakoutClusterName != nil {
			cluster = *tok.BreakoutClusterName
		}
		names[tok.Name] = cluster
	}
	return names
}

func TestRun_FlagsEmergentCluster(t *testing.T) {
	s := newTestStores()
	loadFixtures(t, s)

	result, err := New(withDetector(s, FlagPolicyRetain)).RunAt(context.Background(), asOf)
	require.NoError(t, err)
	require.NotNil(t, result.Breakout)

	br := result.Breakout
	assert.Equal(t, 10, br.CohortSize)
	assert.False(t, br.Skipped)
	require.Len(t, br.Clusters, 1)
	assert.Equal(t, "Glorp Meta", br.Clusters[0].ClusterName)
	assert.Equal(t, 5, br.Clusters[0].Size)
	assert.Equal(t, 5, br.TokensFlagged)

	assert.Equal(t, map[string]string{
		"glorp":  "Glorp Meta",
		"glorpy": "Glorp Meta",
		"glorpo": "Glorp Meta",
		"glorpi": "Glorp Meta",
		"glorpa": "Glorp Meta",
	}, flaggedNames(t, s))
}

func TestDetectBreakouts_RetainKeepsStaleFlags(t *testing.T) {
	ctx := context.Background()
	s := newTestStores()
	ds := loadFixtures(t, s)

	stale := tokenByName(t, ds, "zxqvw")
	old := "Zxq Meta"
	require.NoError(t, s.tokens.SetBreakoutFlags(ctx, stale.Address, true, &old))

	result, err := New(withDetector(s, FlagPolicyRetain)).DetectBreakouts(ctx, asOf)
	require.NoError(t, err)

	assert.Zero(t, result.FlagsCleared)
	flagged := flaggedNames(t, s)
	assert.Len(t, flagged, 6)
	assert.Equal(t, "Zxq Meta", flagged["zxqvw"])
}

func TestDetectBreakouts_ClearResetsStaleFlags(t *testing.T) {
	ctx := context.Background()
	s := newTestStores()
	ds := loadFixtures(t, s)

	stale := tokenByName(t, ds, "zxqvw")
	old := "Zxq Meta"
	require.NoError(t, s.tokens.SetBreakoutFlags(ctx, stale.Address, true, &old))

	result, err := New(withDetector(s, FlagPolicyClear)).DetectBreakouts(ctx, asOf)
	require.NoError(t, err)

	assert.Equal(t, 1, result.FlagsCleared)
	assert.Equal(t, 5, result.TokensFlagged)

	flagged := flaggedNames(t, s)
	assert.Len(t, flagged, 5)
	assert.NotContains(t, flagged, "zxqvw")

	tok, err := s.tokens.GetByAddress(ctx, stale.Address)
	require.NoError(t, err)
	assert.False(t, tok.IsBreakoutMeta)
	assert.Nil(t, tok.BreakoutClusterName)
}

func TestDetectBreakouts_SmallCohortSkipsWithoutClearing(t *testing.T) {
	ctx := context.Background()
	s := newTestStores()
	ds := loadFixtures(t, s)

	stale := tokenByName(t, ds, "zxqvw")
	old := "Zxq Meta"
	require.NoError(t, s.tokens.SetBreakoutFlags(ctx, stale.Address, true, &old))

	opts := withDetector(s, FlagPolicyClear)
	opts.MinCohort = 50

	result, err := New(opts).DetectBreakouts(ctx, asOf)
	require.NoError(t, err)

	assert.True(t, result.Skipped)
	assert.Equal(t, 10, result.CohortSize)
	assert.Empty(t, result.Clusters)
	assert.Equal(t, map[string]string{"zxqvw": "Zxq Meta"}, flaggedNames(t, s))
}

func TestDetectBreakouts_LookbackExcludesOldTokens(t *testing.T) {
	s := newTestStores()
	loadFixtures(t, s)

	// Fixture tokens were first seen six hours before as-of.
	result, err := New(withDetector(s, FlagPolicyRetain)).DetectBreakouts(context.Background(), asOf+24*hourMs)
	require.NoError(t, err)

	assert.True(t, result.Skipped)
	assert.Zero(t, result.CohortSize)
}

func TestDetectBreakouts_CatchAllCountsAsUnclassified(t *testing.T) {
	ctx := context.Background()
	s := newTestStores()
	ds := loadFixtures(t, s)

	// Move one glorp into the catch-all bucket; it stays in the cohort.
	misc := "Miscellaneous"
	glorpa := tokenByName(t, ds, "glorpa")
	require.NoError(t, s.tokens.UpdateClassification(ctx, glorpa.Address, domain.Classification{
		PrimaryCategory:  &misc,
		DetectedKeywords: []string{},
	}))

	result, err := New(withDetector(s, FlagPolicyRetain)).DetectBreakouts(ctx, asOf)
	require.NoError(t, err)
	assert.Equal(t, 10, result.CohortSize)
	assert.Equal(t, 5, result.TokensFlagged)

	// Without the catch-all list it drops out and the cohort is too small.
	opts := withDetector(s, FlagPolicyRetain)
	opts.CatchAllCategories = nil
	result, err = New(opts).DetectBreakouts(ctx, asOf)
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Equal(t, 9, result.CohortSize)
}

func TestDetectBreakouts_NoDetector(t *testing.T) {
	s := newTestStores()
	_, err := New(baseOptions(s)).DetectBreakouts(context.Background(), asOf)
	assert.Error(t, err)
}
