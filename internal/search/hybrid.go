package search

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/steeltrace/steeltrace/internal/vectorindex"
)

// Options controls one hybrid query.
type Options struct {
	TopK int
	Mode FusionMode
	// VectorWeight and KeywordWeight apply in weighted mode and must
	// sum to 1.
	VectorWeight  float64
	KeywordWeight float64
	// RRFK overrides the RRF smoothing constant (default: 60).
	RRFK   int
	Filter vectorindex.Filter
}

// KeywordProvider resolves the keyword index for a namespace.
type KeywordProvider interface {
	For(namespace string) (*KeywordIndex, error)
}

// DirKeywordProvider keeps one on-disk Bleve index per namespace under
// a directory, opened lazily and cached.
type DirKeywordProvider struct {
	dir string

	mu      sync.Mutex
	indexes map[string]*KeywordIndex
}

var _ KeywordProvider = (*DirKeywordProvider)(nil)

// NewDirKeywordProvider creates the provider rooted at dir.
func NewDirKeywordProvider(dir string) *DirKeywordProvider {
	return &DirKeywordProvider{dir: dir, indexes: make(map[string]*KeywordIndex)}
}

// For opens or returns the cached index for namespace.
func (p *DirKeywordProvider) For(namespace string) (*KeywordIndex, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if idx, ok := p.indexes[namespace]; ok {
		return idx, nil
	}
	idx, err := NewKeywordIndex(filepath.Join(p.dir, namespace+".bleve"))
	if err != nil {
		return nil, err
	}
	p.indexes[namespace] = idx
	return idx, nil
}

// Close closes every cached index.
func (p *DirKeywordProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for ns, idx := range p.indexes {
		if err := idx.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.indexes, ns)
	}
	return firstErr
}

// Hybrid runs vector and keyword searches and fuses the two lists.
type Hybrid struct {
	vectors  vectorindex.Index
	keywords KeywordProvider
	logger   *slog.Logger
}

// NewHybrid wires the two retrieval sources together.
func NewHybrid(vectors vectorindex.Index, keywords KeywordProvider, logger *slog.Logger) *Hybrid {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hybrid{vectors: vectors, keywords: keywords, logger: logger}
}

// Search runs both sources with the requested depth, fuses, and trims
// to TopK.
func (h *Hybrid) Search(ctx context.Context, namespace string, queryVector []float32, queryText string, opts Options) ([]Result, error) {
	if opts.TopK <= 0 {
		opts.TopK = 10
	}

	vecHits, err := h.vectors.Search(ctx, namespace, queryVector, opts.TopK, opts.Filter)
	if err != nil {
		return nil, err
	}
	vec := make([]VectorHit, len(vecHits))
	for i, hit := range vecHits {
		vec[i] = VectorHit{ID: hit.ID, Score: float64(hit.Score), Metadata: hit.Metadata}
	}

	if opts.Mode == FusionVectorOnly {
		results := make([]Result, len(vec))
		for i, v := range vec {
			results[i] = Result{
				ID:          v.ID,
				Score:       v.Score,
				VectorScore: v.Score,
				VectorRank:  i + 1,
				Metadata:    v.Metadata,
			}
		}
		h.logger.Debug("vector-only search complete",
			slog.String("namespace", namespace),
			slog.Int("vector_hits", len(results)))
		return results, nil
	}

	kwIndex, err := h.keywords.For(namespace)
	if err != nil {
		return nil, err
	}
	kw, err := kwIndex.Search(ctx, queryText, opts.TopK)
	if err != nil {
		return nil, err
	}

	var fused []Result
	switch opts.Mode {
	case FusionWeighted:
		fused, err = FuseWeighted(vec, kw, opts.VectorWeight, opts.KeywordWeight)
		if err != nil {
			return nil, err
		}
	default:
		fused = FuseRRF(vec, kw, opts.RRFK)
	}

	if len(fused) > opts.TopK {
		fused = fused[:opts.TopK]
	}
	h.logger.Debug("hybrid search complete",
		slog.String("namespace", namespace),
		slog.Int("vector_hits", len(vec)),
		slog.Int("keyword_hits", len(kw)),
		slog.Int("fused", len(fused)))
	return fused, nil
}
