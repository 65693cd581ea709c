package retrieval

import (
	"strings"
	"unicode"
)

// DefaultDiversityBias is the diversity weight used when the request
// leaves it unset.
const DefaultDiversityBias = 0.3

// selectDiverse applies maximal marginal relevance over hydrated
// candidates: each pick maximizes (1-bias)*relevance - bias*redundancy
// against the already-selected set. Candidate embeddings are not
// stored, so token-set Jaccard over chunk content stands in for vector
// similarity.
func selectDiverse(candidates []RetrievedChunk, topK int, bias float64) []RetrievedChunk {
	if bias <= 0 || bias > 1 {
		bias = DefaultDiversityBias
	}
	if len(candidates) <= topK || len(candidates) <= 1 {
		return candidates
	}

	// Normalize relevance to [0,1] so the two terms are comparable.
	maxScore := candidates[0].Score
	for _, c := range candidates[1:] {
		if c.Score > maxScore {
			maxScore = c.Score
		}
	}
	if maxScore <= 0 {
		maxScore = 1
	}

	tokens := make([]map[string]struct{}, len(candidates))
	for i, c := range candidates {
		tokens[i] = tokenSet(c.Content)
	}

	selected := make([]RetrievedChunk, 0, topK)
	selectedTokens := make([]map[string]struct{}, 0, topK)
	remaining := make([]int, len(candidates))
	for i := range candidates {
		remaining[i] = i
	}

	for len(selected) < topK && len(remaining) > 0 {
		best, bestScore := -1, 0.0
		for pos, i := range remaining {
			rel := candidates[i].Score / maxScore
			redundancy := 0.0
			for _, sel := range selectedTokens {
				if sim := jaccard(tokens[i], sel); sim > redundancy {
					redundancy = sim
				}
			}
			score := (1-bias)*rel - bias*redundancy
			if best == -1 || score > bestScore {
				best, bestScore = pos, score
			}
		}
		i := remaining[best]
		selected = append(selected, candidates[i])
		selectedTokens = append(selectedTokens, tokens[i])
		remaining = append(remaining[:best], remaining[best+1:]...)
	}
	return selected
}

func tokenSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		out[w] = struct{}{}
	}
	return out
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(b) < len(a) {
		a, b = b, a
	}
	shared := 0
	for w := range a {
		if _, ok := b[w]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(a)+len(b)-shared)
}
