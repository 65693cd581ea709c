package search

import (
	"context"
	"sort"
	"strconv"

	"github.com/steeltrace/steeltrace/internal/errors"
)

// Reranker policies. Only "simple" ships with the engine; the others
// name external services that plug in through the same interface.
const (
	PolicySimple       = "simple"
	PolicyCrossEncoder = "cross_encoder"
	PolicyLLM          = "llm"
)

// Reranker reorders fused results by a secondary relevance signal.
type Reranker interface {
	Rerank(ctx context.Context, query string, results []Result) ([]Result, error)
	Name() string
}

// NewReranker builds the named policy.
func NewReranker(policy string) (Reranker, error) {
	switch policy {
	case "", PolicySimple:
		return &SimpleReranker{}, nil
	case PolicyCrossEncoder, PolicyLLM:
		return nil, errors.New(errors.ErrCodeInvalidInput,
			"reranker policy "+policy+" requires an external service and is not configured", nil)
	default:
		return nil, errors.New(errors.ErrCodeInvalidInput, "unknown reranker policy "+policy, nil)
	}
}

// SimpleReranker boosts by chunk metadata: tables carry exact
// quantities, metadata chunks carry identifiers, and long chunks carry
// more context.
type SimpleReranker struct{}

var _ Reranker = (*SimpleReranker)(nil)

func (r *SimpleReranker) Name() string { return PolicySimple }

// Rerank multiplies each score by its metadata boosts and re-sorts.
func (r *SimpleReranker) Rerank(_ context.Context, _ string, results []Result) ([]Result, error) {
	out := make([]Result, len(results))
	copy(out, results)
	for i := range out {
		out[i].Score *= boostFor(out[i].Metadata)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func boostFor(meta map[string]any) float64 {
	boost := 1.0
	switch kindOf(meta) {
	case "table":
		boost *= 1.2
	case "metadata", "drawing_metadata":
		boost *= 1.1
	}
	if tokenCountOf(meta) > 500 {
		boost *= 1.05
	}
	return boost
}

func kindOf(meta map[string]any) string {
	if meta == nil {
		return ""
	}
	if s, ok := meta["kind"].(string); ok {
		return s
	}
	return ""
}

func tokenCountOf(meta map[string]any) int {
	if meta == nil {
		return 0
	}
	switch v := meta["token_count"].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 0
}
