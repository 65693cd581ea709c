package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/steeltrace/steeltrace/internal/chunk"
	"github.com/steeltrace/steeltrace/internal/errors"
)

// StoreChunks atomically replaces a document's chunks and updates its
// chunk and token aggregates.
func (s *Store) StoreChunks(ctx context.Context, documentID string, chunks []chunk.Chunk) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, documentID); err != nil {
			return errors.New(errors.ErrCodeStorageFailed, "failed to clear chunks", err)
		}

		tokens := 0
		for _, c := range chunks {
			meta := "{}"
			if len(c.Metadata) > 0 {
				b, err := json.Marshal(c.Metadata)
				if err != nil {
					return errors.New(errors.ErrCodeInternal, "failed to encode chunk metadata", err)
				}
				meta = string(b)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO chunks
					(id, document_id, chunk_index, kind, content, token_count, parent_id, page, metadata, vector_id, is_active)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
				c.ID, documentID, c.Index, string(c.Kind), c.Content, c.TokenCount,
				c.ParentID, c.Page, meta, c.VectorID); err != nil {
				return errors.New(errors.ErrCodeStorageFailed, "failed to insert chunk "+c.ID, err)
			}
			tokens += c.TokenCount
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE documents SET chunk_count = ?, token_count = ?, updated_at = ?
			WHERE id = ? AND is_active = 1`,
			len(chunks), tokens, time.Now().UTC(), documentID); err != nil {
			return errors.New(errors.ErrCodeStorageFailed, "failed to update document aggregates", err)
		}
		return nil
	})
}

// SetChunkVectorIDs records the vector index ids after upsert. The
// vector id is a weak reference: retrieval tolerates a missing target.
func (s *Store) SetChunkVectorIDs(ctx context.Context, vectorIDs map[string]string) error {
	if len(vectorIDs) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for chunkID, vectorID := range vectorIDs {
			if _, err := tx.ExecContext(ctx,
				`UPDATE chunks SET vector_id = ? WHERE id = ?`, vectorID, chunkID); err != nil {
				return errors.New(errors.ErrCodeStorageFailed, "failed to set vector id", err)
			}
		}
		return nil
	})
}

// GetChunks returns a document's active chunks in index order.
func (s *Store) GetChunks(ctx context.Context, documentID string) ([]StoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx,
		selectChunk+` WHERE document_id = ? AND is_active = 1 ORDER BY chunk_index`, documentID)
	if err != nil {
		return nil, errors.New(errors.ErrCodeStorageFailed, "failed to query chunks", err)
	}
	defer rows.Close()
	return collectChunks(rows)
}

// GetChunksByIDs returns active chunks for the given ids, preserving
// the requested order. Missing ids are skipped.
func (s *Store) GetChunksByIDs(ctx context.Context, ids []string) ([]StoredChunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		selectChunk+` WHERE id IN (`+placeholders+`) AND is_active = 1`, args...)
	if err != nil {
		return nil, errors.New(errors.ErrCodeStorageFailed, "failed to query chunks", err)
	}
	defer rows.Close()

	found, err := collectChunks(rows)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]StoredChunk, len(found))
	for _, c := range found {
		byID[c.ID] = c
	}
	out := make([]StoredChunk, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// RecordRetrieval bumps each chunk's retrieval count and folds the
// relevance score into its rolling mean. The update happens in a
// single statement per chunk so concurrent retrievals never lose an
// update.
func (s *Store) RecordRetrieval(ctx context.Context, relevance map[string]float64) error {
	if len(relevance) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for chunkID, score := range relevance {
			if _, err := tx.ExecContext(ctx, `
				UPDATE chunks
				SET mean_relevance = (mean_relevance * retrieval_count + ?) / (retrieval_count + 1),
				    retrieval_count = retrieval_count + 1
				WHERE id = ? AND is_active = 1`, score, chunkID); err != nil {
				return errors.New(errors.ErrCodeStorageFailed, "failed to record retrieval", err)
			}
		}
		return nil
	})
}

const selectChunk = `
	SELECT id, document_id, chunk_index, kind, content, token_count, parent_id, page,
	       metadata, vector_id, retrieval_count, mean_relevance, is_active
	FROM chunks`

func collectChunks(rows *sql.Rows) ([]StoredChunk, error) {
	var out []StoredChunk
	for rows.Next() {
		var c StoredChunk
		var meta string
		var active int
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Index, &c.Kind, &c.Content, &c.TokenCount,
			&c.ParentID, &c.Page, &meta, &c.VectorID, &c.RetrievalCount, &c.MeanRelevance, &active); err != nil {
			return nil, errors.New(errors.ErrCodeStorageFailed, "failed to scan chunk", err)
		}
		c.IsActive = active == 1
		if meta != "" && meta != "{}" {
			if err := json.Unmarshal([]byte(meta), &c.Metadata); err != nil {
				return nil, errors.New(errors.ErrCodeStorageFailed, "failed to decode chunk metadata", err)
			}
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New(errors.ErrCodeStorageFailed, "failed to iterate chunks", err)
	}
	return out, nil
}
