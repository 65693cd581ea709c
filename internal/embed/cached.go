package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/steeltrace/steeltrace/internal/errors"
)

// DefaultCacheSize bounds the in-memory embedding cache.
const DefaultCacheSize = 10000

// CachedEmbedder wraps an Embedder with an LRU cache keyed on the
// model plus the exact text. Only cache misses reach the underlying
// embedder; results come back in input order regardless of hit/miss
// interleaving.
type CachedEmbedder struct {
	inner  Embedder
	cache  *lru.Cache[string, []float32]
	logger *slog.Logger
}

var _ Embedder = (*CachedEmbedder)(nil)

// NewCached wraps inner with a cache of the given size.
func NewCached(inner Embedder, size int, logger *slog.Logger) (*CachedEmbedder, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, errors.New(errors.ErrCodeInternal, "failed to create embedding cache", err)
	}
	return &CachedEmbedder{inner: inner, cache: cache, logger: logger}, nil
}

func (c *CachedEmbedder) Dimensions() int { return c.inner.Dimensions() }
func (c *CachedEmbedder) Model() string   { return c.inner.Model() }

// Embed serves cached vectors and embeds only the misses.
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) (*Result, error) {
	if len(texts) == 0 {
		return &Result{ModelUsed: c.inner.Model()}, nil
	}

	out := &Result{
		Embeddings: make([][]float32, len(texts)),
		ModelUsed:  c.inner.Model(),
	}

	var missTexts []string
	var missIdx []int
	for i, text := range texts {
		if vec, ok := c.cache.Get(c.key(text)); ok {
			out.Embeddings[i] = vec
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) > 0 {
		res, err := c.inner.Embed(ctx, missTexts)
		if err != nil {
			return nil, err
		}
		if len(res.Embeddings) != len(missTexts) {
			return nil, errors.New(errors.ErrCodeEmbeddingFailed, "embedding count does not match input count", nil)
		}
		for j, vec := range res.Embeddings {
			i := missIdx[j]
			out.Embeddings[i] = vec
			c.cache.Add(c.key(texts[i]), vec)
		}
		out.CostUSD = res.CostUSD
	}

	c.logger.Debug("embedding cache lookup",
		slog.Int("texts", len(texts)),
		slog.Int("misses", len(missTexts)))
	return out, nil
}

// key binds the cache entry to the model so switching models never
// serves stale vectors.
func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(c.inner.Model() + "\x00" + text))
	return hex.EncodeToString(sum[:])
}
