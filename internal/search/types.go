// Package search provides hybrid retrieval: vector similarity and
// keyword (BM25) results fused by Reciprocal Rank Fusion or weighted
// scoring, then optionally reranked.
package search

// VectorHit is one vector-search result entering fusion.
type VectorHit struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

// KeywordHit is one keyword-search result entering fusion.
type KeywordHit struct {
	ID           string
	Score        float64
	MatchedTerms []string
}

// Result is one fused, optionally reranked hit.
type Result struct {
	ID    string
	Score float64

	VectorScore  float64
	VectorRank   int // 1-indexed, 0 when absent from the vector list
	KeywordScore float64
	KeywordRank  int // 1-indexed, 0 when absent from the keyword list
	InBothLists  bool
	MatchedTerms []string

	Metadata map[string]any
}

// FusionMode selects how the two ranked lists combine.
type FusionMode string

const (
	FusionRRF      FusionMode = "rrf"
	FusionWeighted FusionMode = "weighted"
	// FusionVectorOnly skips the keyword source entirely: results are
	// the vector hits in similarity order.
	FusionVectorOnly FusionMode = "vector"
)
