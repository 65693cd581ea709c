package search

import (
	"math"
	"sort"

	"github.com/steeltrace/steeltrace/internal/errors"
)

// DefaultRRFConstant is the standard RRF smoothing parameter,
// empirically validated across domains.
const DefaultRRFConstant = 60

// FuseRRF combines the two ranked lists with Reciprocal Rank Fusion:
// score(id) = sum over lists of 1 / (k + rank), ranks 1-indexed. Ids
// absent from a list contribute nothing for it.
func FuseRRF(vec []VectorHit, kw []KeywordHit, k int) []Result {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	if len(vec) == 0 && len(kw) == 0 {
		return []Result{}
	}

	byID := make(map[string]*Result, len(vec)+len(kw))
	get := func(id string) *Result {
		if r, ok := byID[id]; ok {
			return r
		}
		r := &Result{ID: id}
		byID[id] = r
		return r
	}

	for i, h := range vec {
		r := get(h.ID)
		r.VectorScore = h.Score
		r.VectorRank = i + 1
		r.Metadata = h.Metadata
		r.Score += 1.0 / float64(k+i+1)
	}
	for i, h := range kw {
		r := get(h.ID)
		r.KeywordScore = h.Score
		r.KeywordRank = i + 1
		r.MatchedTerms = h.MatchedTerms
		r.Score += 1.0 / float64(k+i+1)
		if r.VectorRank > 0 {
			r.InBothLists = true
		}
	}

	return sortResults(byID)
}

// FuseWeighted combines the lists by raw score:
// score(id) = vectorWeight * vec_score + keywordWeight * kw_score.
// The weights must sum to 1.
func FuseWeighted(vec []VectorHit, kw []KeywordHit, vectorWeight, keywordWeight float64) ([]Result, error) {
	if math.Abs(vectorWeight+keywordWeight-1.0) > 1e-6 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "fusion weights must sum to 1", nil)
	}
	if len(vec) == 0 && len(kw) == 0 {
		return []Result{}, nil
	}

	byID := make(map[string]*Result, len(vec)+len(kw))
	get := func(id string) *Result {
		if r, ok := byID[id]; ok {
			return r
		}
		r := &Result{ID: id}
		byID[id] = r
		return r
	}

	// Keyword scores are unbounded BM25 values; normalize by the max so
	// the weighting is meaningful against [0,1] vector similarities.
	var maxKW float64
	for _, h := range kw {
		if h.Score > maxKW {
			maxKW = h.Score
		}
	}

	for i, h := range vec {
		r := get(h.ID)
		r.VectorScore = h.Score
		r.VectorRank = i + 1
		r.Metadata = h.Metadata
		r.Score += vectorWeight * h.Score
	}
	for i, h := range kw {
		r := get(h.ID)
		r.KeywordScore = h.Score
		r.KeywordRank = i + 1
		r.MatchedTerms = h.MatchedTerms
		norm := h.Score
		if maxKW > 0 {
			norm = h.Score / maxKW
		}
		r.Score += keywordWeight * norm
		if r.VectorRank > 0 {
			r.InBothLists = true
		}
	}

	return sortResults(byID), nil
}

// sortResults orders by fused score, preferring ids present in both
// lists, then keyword score, then id for determinism.
func sortResults(byID map[string]*Result) []Result {
	out := make([]Result, 0, len(byID))
	for _, r := range byID {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.InBothLists != b.InBothLists {
			return a.InBothLists
		}
		if a.KeywordScore != b.KeywordScore {
			return a.KeywordScore > b.KeywordScore
		}
		return a.ID < b.ID
	})
	return out
}
