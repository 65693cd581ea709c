package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/steeltrace/steeltrace/internal/errors"
)

// EnsureVectorIndex returns the knowledge base's active descriptor,
// inserting one in the initializing state when none exists. The
// partial unique index guarantees at most one active descriptor per
// knowledge base.
func (s *Store) EnsureVectorIndex(ctx context.Context, rec VectorIndexRecord) (*VectorIndexRecord, error) {
	if rec.KnowledgeBaseID == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "vector index requires a knowledge base id", nil)
	}

	var out *VectorIndexRecord
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			selectVectorIndex+` WHERE knowledge_base_id = ? AND is_active = 1`, rec.KnowledgeBaseID)
		existing, err := scanVectorIndex(row)
		if err == nil {
			out = existing
			return nil
		}
		if errors.GetCode(err) != errors.ErrCodeInputNotFound {
			return err
		}

		rec.ID = uuid.NewString()
		rec.Status = VectorIndexInitializing
		rec.VectorCount = 0
		rec.IsActive = true
		now := time.Now().UTC()
		rec.CreatedAt = now
		rec.UpdatedAt = now

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO vector_indexes
				(id, knowledge_base_id, backend, metric, dimensions, status, vector_count, is_active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, 0, 1, ?, ?)`,
			rec.ID, rec.KnowledgeBaseID, rec.Backend, rec.Metric, rec.Dimensions,
			rec.Status, rec.CreatedAt, rec.UpdatedAt); err != nil {
			return errors.New(errors.ErrCodeStorageFailed, "failed to insert vector index", err)
		}
		out = &rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetVectorIndex returns the knowledge base's active descriptor.
func (s *Store) GetVectorIndex(ctx context.Context, knowledgeBaseID string) (*VectorIndexRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx,
		selectVectorIndex+` WHERE knowledge_base_id = ? AND is_active = 1`, knowledgeBaseID)
	return scanVectorIndex(row)
}

// SetVectorIndexStatus transitions the active descriptor's status.
func (s *Store) SetVectorIndexStatus(ctx context.Context, knowledgeBaseID, status string) error {
	switch status {
	case VectorIndexInitializing, VectorIndexActive, VectorIndexUpdating, VectorIndexError, VectorIndexRebuilding:
	default:
		return errors.New(errors.ErrCodeInvalidInput, "unknown vector index status "+status, nil)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE vector_indexes SET status = ?, updated_at = ?
			WHERE knowledge_base_id = ? AND is_active = 1`,
			status, time.Now().UTC(), knowledgeBaseID)
		if err != nil {
			return errors.New(errors.ErrCodeStorageFailed, "failed to update vector index status", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errors.New(errors.ErrCodeInputNotFound, "no vector index for knowledge base "+knowledgeBaseID, nil)
		}
		return nil
	})
}

// FinishVectorIndexUpdate marks a completed write: the descriptor goes
// active and the vector count moves by delta (negative on deletes).
func (s *Store) FinishVectorIndexUpdate(ctx context.Context, knowledgeBaseID string, delta int) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE vector_indexes
			SET status = ?, vector_count = MAX(0, vector_count + ?), updated_at = ?
			WHERE knowledge_base_id = ? AND is_active = 1`,
			VectorIndexActive, delta, time.Now().UTC(), knowledgeBaseID)
		if err != nil {
			return errors.New(errors.ErrCodeStorageFailed, "failed to finish vector index update", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errors.New(errors.ErrCodeInputNotFound, "no vector index for knowledge base "+knowledgeBaseID, nil)
		}
		return nil
	})
}

// ReconcileVectorIndexStatus flips a descriptor stranded mid-write
// (initializing or updating, from a crashed run) back to active. An
// error status is sticky: only a successful write clears it.
func (s *Store) ReconcileVectorIndexStatus(ctx context.Context, knowledgeBaseID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE vector_indexes SET status = ?, updated_at = ?
			WHERE knowledge_base_id = ? AND is_active = 1 AND status IN (?, ?)`,
			VectorIndexActive, time.Now().UTC(), knowledgeBaseID,
			VectorIndexInitializing, VectorIndexUpdating); err != nil {
			return errors.New(errors.ErrCodeStorageFailed, "failed to reconcile vector index status", err)
		}
		return nil
	})
}

const selectVectorIndex = `
	SELECT id, knowledge_base_id, backend, metric, dimensions, status, vector_count, is_active, created_at, updated_at
	FROM vector_indexes`

func scanVectorIndex(row rowScanner) (*VectorIndexRecord, error) {
	var rec VectorIndexRecord
	var active int
	err := row.Scan(&rec.ID, &rec.KnowledgeBaseID, &rec.Backend, &rec.Metric, &rec.Dimensions,
		&rec.Status, &rec.VectorCount, &active, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.ErrCodeInputNotFound, "vector index not found", err)
	}
	if err != nil {
		return nil, errors.New(errors.ErrCodeStorageFailed, "failed to scan vector index", err)
	}
	rec.IsActive = active == 1
	return &rec, nil
}
