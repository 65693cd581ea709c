package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/steeltrace/steeltrace/internal/errors"
)

// RecordQuery stores one retrieval request with its ranked results and
// latency split.
func (s *Store) RecordQuery(ctx context.Context, q QueryRecord, results []QueryResultRecord) (*QueryRecord, error) {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	q.CreatedAt = time.Now().UTC()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		reranked := 0
		if q.Reranked {
			reranked = 1
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO queries
				(id, knowledge_base_id, query_text, top_k, fusion_mode, reranked,
				 embedding_ms, retrieval_ms, rerank_ms, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			q.ID, q.KnowledgeBaseID, q.QueryText, q.TopK, q.FusionMode, reranked,
			q.EmbeddingMS, q.RetrievalMS, q.RerankMS, q.CreatedAt); err != nil {
			return errors.New(errors.ErrCodeStorageFailed, "failed to insert query", err)
		}
		for _, r := range results {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO query_results (query_id, chunk_id, rank, score)
				VALUES (?, ?, ?, ?)`,
				q.ID, r.ChunkID, r.Rank, r.Score); err != nil {
				return errors.New(errors.ErrCodeStorageFailed, "failed to insert query result", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// GetQueryResults returns the ranked results of a stored query.
func (s *Store) GetQueryResults(ctx context.Context, queryID string) ([]QueryResultRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `
		SELECT query_id, chunk_id, rank, score
		FROM query_results WHERE query_id = ? ORDER BY rank`, queryID)
	if err != nil {
		return nil, errors.New(errors.ErrCodeStorageFailed, "failed to query results", err)
	}
	defer rows.Close()

	var out []QueryResultRecord
	for rows.Next() {
		var r QueryResultRecord
		if err := rows.Scan(&r.QueryID, &r.ChunkID, &r.Rank, &r.Score); err != nil {
			return nil, errors.New(errors.ErrCodeStorageFailed, "failed to scan query result", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New(errors.ErrCodeStorageFailed, "failed to iterate query results", err)
	}
	return out, nil
}
