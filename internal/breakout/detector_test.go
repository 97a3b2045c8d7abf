package breakout

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendradar/internal/categorizer"
)

func candidates(prefix string, pairs [][2]string) []Candidate {
	out := make([]Candidate, 0, len(pairs))
	for i, p := range pairs {
		out = append(out, Candidate{Address: fmt.Sprintf("%s%02d", prefix, i), Name: p[0], Symbol: p[1]})
	}
	return out
}

var glorpCohort = [][2]string{
	{"glorp", "glorp"}, {"glorpy", "glorp"}, {"glorpo", "glorp"}, {"glorpi", "glorp"}, {"glorpa", "glorp"},
	{"zxqvw", "zxq"}, {"hmmbl", "hmb"}, {"krrtn", "krt"}, {"plonq", "plq"}, {"wubbz", "wbz"},
}

func clusteringDetector(minClusterSize int) *Detector {
	return NewDetector(Config{MinClusterSize: minClusterSize, Eps: 0.6, MinSamples: 3})
}

func TestDetect_FewerThanMinClusterSize(t *testing.T) {
	d := NewDetector(DefaultConfig())

	for n := 0; n < 5; n++ {
		got := d.Detect(candidates("A", glorpCohort[:n]))
		assert.Empty(t, got, "n=%d", n)
	}
}

func TestDetect_FindsEmergentCluster(t *testing.T) {
	got := clusteringDetector(3).Detect(candidates("A", glorpCohort))
	require.Len(t, got, 1)

	c := got[0]
	assert.Equal(t, "Glorp Meta", c.ClusterName)
	assert.Equal(t, 5, c.Size)
	assert.Equal(t, []string{"A00", "A01", "A02", "A03", "A04"}, c.MemberAddresses)
	assert.Equal(t, []string{"glorp", "glorpy", "glorpo", "glorpi", "glorpa"}, c.MemberNames)
	assert.Equal(t, []string{"glorp"}, c.CommonKeywords)
	assert.InDelta(t, 0.625, c.ConfidenceScore, 1e-9)
}

func TestDetect_TwoKeywordName(t *testing.T) {
	cohort := [][2]string{
		{"blorb zeep", "bz"}, {"blorb zeep", "bzp"}, {"blorb zeepy", "bz"},
		{"blorbo zeep", "blz"}, {"blorb zeepo", "bzo"}, {"blorb zeep", "bz2"},
	}

	got := clusteringDetector(3).Detect(candidates("B", cohort))
	require.Len(t, got, 1)
	assert.Equal(t, "Blorb-Zeep Meta", got[0].ClusterName)
	assert.Equal(t, 6, got[0].Size)
	assert.Equal(t, []string{"blorb", "zeep"}, got[0].CommonKeywords)
	assert.InDelta(t, 0.425, got[0].ConfidenceScore, 1e-9)
}

func TestDetect_KnownCategoryFiltered(t *testing.T) {
	cohort := [][2]string{
		{"doge shiba", "dgs"}, {"doge shiba", "dgsh"}, {"doge shiba", "dshb"},
		{"doge shiba", "doge"}, {"doge shiba", "shib"},
	}

	unfiltered := clusteringDetector(3).Detect(candidates("K", cohort))
	require.Len(t, unfiltered, 1)
	assert.Equal(t, "Doge-Shiba Meta", unfiltered[0].ClusterName)

	d := NewDetector(Config{
		MinClusterSize:  3,
		Eps:             0.6,
		MinSamples:      3,
		KnownCategories: categorizer.MustDefaultTable().KnownCategoryKeywords(),
	})
	assert.Empty(t, d.Detect(candidates("K", cohort)))
}

func TestDetect_SortedBySizeThenConfidence(t *testing.T) {
	cohort := [][2]string{
		{"glorp", "glorp"}, {"glorpy", "glorp"}, {"glorpo", "glorp"}, {"glorpi", "glorp"}, {"glorpa", "glorp"},
		{"wenmoon", "wen"}, {"wenmoonz", "wen"}, {"wenmoony", "wen"}, {"qqq", "q"}, {"vvv", "v"},
	}

	got := clusteringDetector(3).Detect(candidates("C", cohort))
	require.Len(t, got, 2)
	assert.Equal(t, "Glorp Meta", got[0].ClusterName)
	assert.Equal(t, 5, got[0].Size)
	assert.InDelta(t, 0.628, got[0].ConfidenceScore, 1e-9)
	assert.Equal(t, "Wen-Wenmoon Meta", got[1].ClusterName)
	assert.Equal(t, 3, got[1].Size)

	// Raising the minimum size drops the smaller cluster.
	got = clusteringDetector(5).Detect(candidates("C", cohort))
	require.Len(t, got, 1)
	assert.Equal(t, "Glorp Meta", got[0].ClusterName)
}

func TestDetect_OrderIndependent(t *testing.T) {
	d := clusteringDetector(3)
	base := candidates("A", glorpCohort)
	want := d.Detect(base)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 5; i++ {
		shuffled := append([]Candidate(nil), base...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		if diff := cmp.Diff(want, d.Detect(shuffled)); diff != "" {
			t.Fatalf("shuffle %d changed result (-want +got):\n%s", i, diff)
		}
	}
}

func TestDetect_EmptyText(t *testing.T) {
	cohort := [][2]string{{"", ""}, {" ", ""}, {"", " "}, {"", ""}, {"", ""}}
	assert.Empty(t, clusteringDetector(3).Detect(candidates("E", cohort)))
}

func TestDetect_WorkerCountDoesNotChangeResult(t *testing.T) {
	cfg := Config{MinClusterSize: 3, Eps: 0.6, MinSamples: 3, Workers: 1}
	serial := NewDetector(cfg).Detect(candidates("A", glorpCohort))

	cfg.Workers = 8
	parallel := NewDetector(cfg).Detect(candidates("A", glorpCohort))

	assert.Equal(t, serial, parallel)
}

func TestNewDetector_Defaults(t *testing.T) {
	cfg := NewDetector(Config{}).Config()
	assert.Equal(t, 5, cfg.MinClusterSize)
	assert.Equal(t, 0.5, cfg.Eps)
	assert.Equal(t, 3, cfg.MinSamples)
	assert.Equal(t, 1000, cfg.MaxFeatures)
	assert.Positive(t, cfg.Workers)
}
