package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/steeltrace/steeltrace/internal/errors"
)

// CreateKnowledgeBase inserts a new knowledge base and returns it with
// its generated id.
func (s *Store) CreateKnowledgeBase(ctx context.Context, kb KnowledgeBase) (*KnowledgeBase, error) {
	if kb.Name == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "knowledge base name is required", nil)
	}
	if kb.ID == "" {
		kb.ID = uuid.NewString()
	}
	if kb.ChunkSize <= 0 {
		kb.ChunkSize = 1000
	}
	if kb.ChunkOverlap < 0 {
		kb.ChunkOverlap = 200
	}
	now := time.Now().UTC()
	kb.CreatedAt = now
	kb.UpdatedAt = now
	kb.IsActive = true

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO knowledge_bases
				(id, name, description, chunk_size, chunk_overlap, embedding_model, is_active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)`,
			kb.ID, kb.Name, kb.Description, kb.ChunkSize, kb.ChunkOverlap, kb.EmbeddingModel,
			kb.CreatedAt, kb.UpdatedAt)
		if err != nil {
			return errors.New(errors.ErrCodeStorageFailed, "failed to insert knowledge base", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &kb, nil
}

// GetKnowledgeBase returns an active knowledge base by id.
func (s *Store) GetKnowledgeBase(ctx context.Context, id string) (*KnowledgeBase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, chunk_size, chunk_overlap, embedding_model, is_active, created_at, updated_at
		FROM knowledge_bases WHERE id = ? AND is_active = 1`, id)
	return scanKnowledgeBase(row)
}

// ListKnowledgeBases returns active knowledge bases ordered by name.
func (s *Store) ListKnowledgeBases(ctx context.Context) ([]KnowledgeBase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, chunk_size, chunk_overlap, embedding_model, is_active, created_at, updated_at
		FROM knowledge_bases WHERE is_active = 1 ORDER BY name`)
	if err != nil {
		return nil, errors.New(errors.ErrCodeStorageFailed, "failed to list knowledge bases", err)
	}
	defer rows.Close()

	var out []KnowledgeBase
	for rows.Next() {
		kb, err := scanKnowledgeBase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *kb)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New(errors.ErrCodeStorageFailed, "failed to iterate knowledge bases", err)
	}
	return out, nil
}

// GetKnowledgeBaseStats computes the aggregate counters over active
// documents. Chunk counts come from the chunks table so a soft-deleted
// document's chunks fall out with it.
func (s *Store) GetKnowledgeBaseStats(ctx context.Context, id string) (*KnowledgeBaseStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats KnowledgeBaseStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(token_count), 0), COALESCE(SUM(extraction_cost), 0)
		FROM documents WHERE knowledge_base_id = ? AND is_active = 1`, id).
		Scan(&stats.Documents, &stats.Tokens, &stats.ExtractionCost)
	if err != nil {
		return nil, errors.New(errors.ErrCodeStorageFailed, "failed to aggregate documents", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM chunks c JOIN documents d ON d.id = c.document_id
		WHERE d.knowledge_base_id = ? AND d.is_active = 1 AND c.is_active = 1`, id).
		Scan(&stats.Chunks)
	if err != nil {
		return nil, errors.New(errors.ErrCodeStorageFailed, "failed to aggregate chunks", err)
	}
	return &stats, nil
}

// DeleteKnowledgeBase soft-deletes the knowledge base and cascades to
// its documents and chunks in one transaction. Vector and keyword
// index cleanup is the orchestrator's responsibility.
func (s *Store) DeleteKnowledgeBase(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		res, err := tx.ExecContext(ctx,
			`UPDATE knowledge_bases SET is_active = 0, updated_at = ? WHERE id = ? AND is_active = 1`, now, id)
		if err != nil {
			return errors.New(errors.ErrCodeStorageFailed, "failed to delete knowledge base", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errors.New(errors.ErrCodeInputNotFound, "knowledge base "+id+" not found", nil)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE chunks SET is_active = 0
			WHERE document_id IN (SELECT id FROM documents WHERE knowledge_base_id = ?)`, id); err != nil {
			return errors.New(errors.ErrCodeStorageFailed, "failed to cascade to chunks", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE documents SET is_active = 0, updated_at = ? WHERE knowledge_base_id = ?`, now, id); err != nil {
			return errors.New(errors.ErrCodeStorageFailed, "failed to cascade to documents", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE vector_indexes SET is_active = 0, updated_at = ? WHERE knowledge_base_id = ?`, now, id); err != nil {
			return errors.New(errors.ErrCodeStorageFailed, "failed to cascade to vector indexes", err)
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanKnowledgeBase(row rowScanner) (*KnowledgeBase, error) {
	var kb KnowledgeBase
	var active int
	err := row.Scan(&kb.ID, &kb.Name, &kb.Description, &kb.ChunkSize, &kb.ChunkOverlap,
		&kb.EmbeddingModel, &active, &kb.CreatedAt, &kb.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.ErrCodeInputNotFound, "knowledge base not found", err)
	}
	if err != nil {
		return nil, errors.New(errors.ErrCodeStorageFailed, "failed to scan knowledge base", err)
	}
	kb.IsActive = active == 1
	return &kb, nil
}
