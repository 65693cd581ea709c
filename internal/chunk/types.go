// Package chunk produces the retrieval units stored in the vector
// index. Chunking is deterministic and kind-aware: free text splits by
// token budget with overlap, while tables, drawing metadata, and
// visual-element groups are atomic and never split or merged.
package chunk

// Token estimation constant. 4 chars per token is the standard rough
// approximation and only drives budgeting, not billing.
const CharsPerToken = 4

// Kind classifies a chunk for retrieval-time boosting and rechunking
// rules.
type Kind string

const (
	KindText               Kind = "text"
	KindTable              Kind = "table"
	KindMetadata           Kind = "metadata"
	KindVisualElementGroup Kind = "visual_element_group"
	KindDrawingMetadata    Kind = "drawing_metadata"
)

// Atomic reports whether chunks of this kind may never be merged or
// split during rechunking.
func (k Kind) Atomic() bool {
	switch k {
	case KindTable, KindMetadata, KindDrawingMetadata:
		return true
	default:
		return false
	}
}

// Chunk is one retrieval unit.
type Chunk struct {
	ID         string            `json:"id"`
	DocumentID string            `json:"document_id"`
	// Index is unique within the document.
	Index      int               `json:"chunk_index"`
	Kind       Kind              `json:"kind"`
	Content    string            `json:"content"`
	TokenCount int               `json:"token_count"`
	// ParentID optionally links to a parent chunk.
	ParentID string            `json:"parent_id,omitempty"`
	Page     int               `json:"page,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
	// VectorID is the weak reference into the vector index; it may be
	// empty until embeddings are stored and must tolerate a missing
	// target during failover.
	VectorID string `json:"vector_id,omitempty"`
}

// EstimateTokens approximates the token count of s.
func EstimateTokens(s string) int {
	if len(s) == 0 {
		return 0
	}
	return (len(s) + CharsPerToken - 1) / CharsPerToken
}
