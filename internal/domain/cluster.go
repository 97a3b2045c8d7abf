package domain

// BreakoutCluster is a group of similarly named unclassified tokens found
// by one detector run. ClusterID is only stable within that run.
type BreakoutCluster struct {
	ClusterID       int
	ClusterName     string   // "Kw1-Kw2 Meta", "Kw1 Meta" or "Unknown Meta"
	MemberAddresses []string // sorted by address
	MemberNames     []string // parallel to MemberAddresses
	Size            int
	CommonKeywords  []string // at most 5, most frequent first
	ConfidenceScore float64  // [0, 1]
}
