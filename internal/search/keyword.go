package search

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/steeltrace/steeltrace/internal/errors"
)

// KeywordDoc is one chunk entering the keyword index.
type KeywordDoc struct {
	ID      string
	Content string
}

// bleveDoc is the indexed document shape.
type bleveDoc struct {
	Content string `json:"content"`
}

// KeywordIndex wraps a Bleve index for BM25-scored keyword search.
// One index exists per knowledge base.
type KeywordIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

// NewKeywordIndex opens or creates an index at path. An empty path
// creates an in-memory index.
func NewKeywordIndex(path string) (*KeywordIndex, error) {
	mapping := bleve.NewIndexMapping()

	var idx bleve.Index
	var err error
	if path == "" {
		idx, err = bleve.NewMemOnly(mapping)
	} else {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
			return nil, errors.New(errors.ErrCodeStorageFailed, "failed to create keyword index directory", mkErr)
		}
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, mapping)
		}
	}
	if err != nil {
		return nil, errors.New(errors.ErrCodeStorageFailed, "failed to open keyword index", err)
	}
	return &KeywordIndex{index: idx, path: path}, nil
}

// Index adds or replaces documents in one batch.
func (k *KeywordIndex) Index(ctx context.Context, docs []KeywordDoc) error {
	if len(docs) == 0 {
		return nil
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return errors.New(errors.ErrCodeInternal, "keyword index is closed", nil)
	}

	batch := k.index.NewBatch()
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return errors.Cancelled(err)
		}
		if err := batch.Index(doc.ID, bleveDoc{Content: doc.Content}); err != nil {
			return errors.New(errors.ErrCodeStorageFailed, "failed to index document "+doc.ID, err)
		}
	}
	if err := k.index.Batch(batch); err != nil {
		return errors.New(errors.ErrCodeStorageFailed, "failed to execute index batch", err)
	}
	return nil
}

// Search returns up to limit BM25-scored hits for the query.
func (k *KeywordIndex) Search(ctx context.Context, query string, limit int) ([]KeywordHit, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.closed {
		return nil, errors.New(errors.ErrCodeInternal, "keyword index is closed", nil)
	}
	if strings.TrimSpace(query) == "" {
		return []KeywordHit{}, nil
	}
	if limit <= 0 {
		limit = 10
	}

	mq := bleve.NewMatchQuery(query)
	mq.SetField("content")
	req := bleve.NewSearchRequest(mq)
	req.Size = limit
	req.IncludeLocations = true

	res, err := k.index.SearchInContext(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Cancelled(ctx.Err())
		}
		return nil, errors.New(errors.ErrCodeStorageFailed, "keyword search failed", err)
	}

	hits := make([]KeywordHit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		terms := make([]string, 0, 4)
		seen := make(map[string]struct{})
		for field, locations := range hit.Locations {
			if field != "content" {
				continue
			}
			for term := range locations {
				if _, dup := seen[term]; !dup {
					seen[term] = struct{}{}
					terms = append(terms, term)
				}
			}
		}
		hits = append(hits, KeywordHit{ID: hit.ID, Score: hit.Score, MatchedTerms: terms})
	}
	return hits, nil
}

// Delete removes documents by id.
func (k *KeywordIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return errors.New(errors.ErrCodeInternal, "keyword index is closed", nil)
	}

	batch := k.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := k.index.Batch(batch); err != nil {
		return errors.New(errors.ErrCodeStorageFailed, "failed to delete from keyword index", err)
	}
	return nil
}

// DocCount returns the number of indexed documents.
func (k *KeywordIndex) DocCount() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.closed {
		return 0
	}
	n, _ := k.index.DocCount()
	return int(n)
}

// Close releases the index.
func (k *KeywordIndex) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return nil
	}
	k.closed = true
	return k.index.Close()
}
