// Package embed produces fixed-dimensional vector embeddings for
// chunks and queries. Embedding is batch-oriented and cached.
package embed

import "context"

// Result is one embedding call's output.
type Result struct {
	// Embeddings are in input order, one vector per input text.
	Embeddings [][]float32
	CostUSD    float64
	ModelUsed  string
}

// Embedder turns texts into vectors.
type Embedder interface {
	// Embed returns one vector per text, in order.
	Embed(ctx context.Context, texts []string) (*Result, error)
	// Dimensions is the vector width this embedder produces.
	Dimensions() int
	// Model identifies the underlying embedding model.
	Model() string
}
