// Package vectorindex is a thin adapter over a pluggable vector
// database. Two backends exist: an embedded HNSW graph persisted to
// disk and a remote Qdrant server. All operations are namespaced by
// knowledge base id.
package vectorindex

import "context"

// MaxUpsertBatch caps vectors per backend write.
const MaxUpsertBatch = 100

// Vector is one point to upsert. Metadata must already be sanitized
// (see SanitizeMetadata); the adapter sanitizes defensively on upsert.
type Vector struct {
	ID       string
	Values   []float32
	Metadata map[string]any
}

// SearchResult is one ranked hit.
type SearchResult struct {
	ID       string
	Score    float32
	Metadata map[string]any
	// Values is populated only when the query requests raw vectors.
	Values []float32
}

// Filter restricts search and deletion to points whose metadata
// matches every key exactly.
type Filter map[string]any

// Stats describes index occupancy.
type Stats struct {
	// VectorsByNamespace counts live vectors per namespace. When stats
	// are scoped to one namespace only that entry is present.
	VectorsByNamespace map[string]int
	TotalVectors       int
	Dimensions         int
	Backend            string
}

// Index is the vector database contract. Upsert is idempotent by
// vector id; implementations split writes into batches of at most
// MaxUpsertBatch.
type Index interface {
	// Initialize ensures the index exists with the declared dimension
	// and metric. With createIfAbsent false a missing index is an error.
	Initialize(ctx context.Context, createIfAbsent bool) error
	Upsert(ctx context.Context, namespace string, vectors []Vector) error
	Search(ctx context.Context, namespace string, query []float32, topK int, filter Filter) ([]SearchResult, error)
	DeleteIDs(ctx context.Context, namespace string, ids []string) error
	DeleteByFilter(ctx context.Context, namespace string, filter Filter) error
	DeleteNamespace(ctx context.Context, namespace string) error
	// Stats scopes to one namespace when namespace is non-empty.
	Stats(ctx context.Context, namespace string) (*Stats, error)
	Close() error
}
