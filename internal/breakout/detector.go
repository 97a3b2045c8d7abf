// Package breakout groups unclassified tokens with similar names into
// emergent clusters.
package breakout

import (
	"math"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"trendradar/internal/domain"
	"trendradar/internal/metrics"
)

// Config controls clustering.
type Config struct {
	MinClusterSize int     // smallest cluster reported
	Eps            float64 // neighbourhood radius in cosine distance
	MinSamples     int     // neighbours (self included) needed for a core point
	MaxFeatures    int     // vocabulary cap, most frequent n-grams kept
	Workers        int     // goroutines for the distance matrix, 0 = GOMAXPROCS

	// KnownCategories maps a category label to its keywords. Clusters whose
	// common keywords mostly fall into one category are dropped.
	KnownCategories map[string][]string
}

// DefaultConfig returns the library defaults.
func DefaultConfig() Config {
	return Config{
		MinClusterSize: 5,
		Eps:            0.5,
		MinSamples:     3,
		MaxFeatures:    1000,
	}
}

// Candidate is a token offered for clustering.
type Candidate struct {
	Address string
	Name    string
	Symbol  string
}

// text is the lowercased "name symbol" used for vectorizing.
func (c Candidate) text() string {
	return strings.ToLower(c.Name + " " + c.Symbol)
}

// CandidatesFromTokens converts tokens into candidates.
func CandidatesFromTokens(tokens []*domain.Token) []Candidate {
	candidates := make([]Candidate, 0, len(tokens))
	for _, t := range tokens {
		candidates = append(candidates, Candidate{Address: t.Address, Name: t.Name, Symbol: t.Symbol})
	}
	return candidates
}

// Detector finds emergent clusters. It holds no state between calls.
type Detector struct {
	cfg        Config
	vectorizer tfidfVectorizer
}

// NewDetector creates a detector. Zero fields fall back to DefaultConfig.
func NewDetector(cfg Config) *Detector {
	def := DefaultConfig()
	if cfg.MinClusterSize <= 0 {
		cfg.MinClusterSize = def.MinClusterSize
	}
	if cfg.Eps <= 0 {
		cfg.Eps = def.Eps
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = def.MinSamples
	}
	if cfg.MaxFeatures <= 0 {
		cfg.MaxFeatures = def.MaxFeatures
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}

	return &Detector{
		cfg:        cfg,
		vectorizer: tfidfVectorizer{minN: 2, maxN: 4, maxFeatures: cfg.MaxFeatures},
	}
}

// Config returns the effective configuration.
func (d *Detector) Config() Config {
	return d.cfg
}

// Detect clusters candidates by name similarity.
// Fewer than MinClusterSize candidates, or candidates with no usable text,
// yield no clusters. Result is sorted by size then confidence, descending.
func (d *Detector) Detect(candidates []Candidate) []domain.BreakoutCluster {
	if len(candidates) < d.cfg.MinClusterSize {
		return nil
	}

	// Pin ordering so density expansion is reproducible.
	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Address < sorted[j].Address
	})

	texts := make([]string, len(sorted))
	for i, c := range sorted {
		texts[i] = c.text()
	}

	vectors := d.vectorizer.fitTransform(texts)
	if allZero(vectors) {
		return nil
	}

	sim := d.similarityMatrix(vectors)
	labels := dbscan(distanceMatrix(sim), d.cfg.Eps, d.cfg.MinSamples)

	members := make(map[int][]int)
	var labelOrder []int
	for i, l := range labels {
		if l == noise {
			continue
		}
		if _, ok := members[l]; !ok {
			labelOrder = append(labelOrder, l)
		}
		members[l] = append(members[l], i)
	}
	sort.Ints(labelOrder)

	var clusters []domain.BreakoutCluster
	for _, l := range labelOrder {
		idx := members[l]
		if len(idx) < d.cfg.MinClusterSize {
			continue
		}

		clusterTexts := make([]string, len(idx))
		for k, i := range idx {
			clusterTexts[k] = texts[i]
		}

		keywords := commonKeywords(clusterTexts)
		if len(d.cfg.KnownCategories) > 0 && matchesKnownCategory(keywords, d.cfg.KnownCategories) {
			continue
		}

		cluster := domain.BreakoutCluster{
			ClusterID:       l,
			ClusterName:     clusterName(keywords),
			Size:            len(idx),
			CommonKeywords:  topN(keywords, 5),
			ConfidenceScore: confidence(sim, idx),
		}
		for _, i := range idx {
			cluster.MemberAddresses = append(cluster.MemberAddresses, sorted[i].Address)
			cluster.MemberNames = append(cluster.MemberNames, sorted[i].Name)
		}
		clusters = append(clusters, cluster)
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		if clusters[i].Size != clusters[j].Size {
			return clusters[i].Size > clusters[j].Size
		}
		return clusters[i].ConfidenceScore > clusters[j].ConfidenceScore
	})

	return clusters
}

// similarityMatrix computes pairwise cosine similarity of L2-normalised
// vectors. Rows are filled concurrently.
func (d *Detector) similarityMatrix(vectors []sparseVector) [][]float64 {
	n := len(vectors)
	sim := make([][]float64, n)
	for i := range sim {
		sim[i] = make([]float64, n)
	}

	var g errgroup.Group
	g.SetLimit(d.cfg.Workers)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			for j := i; j < n; j++ {
				s := dot(vectors[i], vectors[j])
				sim[i][j] = s
				sim[j][i] = s
			}
			return nil
		})
	}
	_ = g.Wait() // workers never fail

	return sim
}

// distanceMatrix converts similarity to cosine distance clipped to [0, 2]
// with a zero diagonal.
func distanceMatrix(sim [][]float64) [][]float64 {
	n := len(sim)
	dist := make([][]float64, n)
	for i := range sim {
		dist[i] = make([]float64, n)
		for j := range sim[i] {
			if i == j {
				continue
			}
			dist[i][j] = math.Min(2, math.Max(0, 1-sim[i][j]))
		}
	}
	return dist
}

// confidence weights mean pairwise similarity 0.7 and size 0.3, where size
// saturates at 20 members. Rounded to three decimals.
func confidence(sim [][]float64, idx []int) float64 {
	if len(idx) < 2 {
		return 0
	}

	var pairs []float64
	for a := 0; a < len(idx); a++ {
		for b := a + 1; b < len(idx); b++ {
			pairs = append(pairs, sim[idx[a]][idx[b]])
		}
	}

	sizeFactor := math.Min(1, float64(len(idx))/20)
	return metrics.Round(metrics.Mean(pairs)*0.7+sizeFactor*0.3, 3)
}

func allZero(vectors []sparseVector) bool {
	for _, v := range vectors {
		if !v.isZero() {
			return false
		}
	}
	return true
}

func topN(values []string, n int) []string {
	if len(values) > n {
		values = values[:n]
	}
	return append([]string(nil), values...)
}
