package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/steeltrace/steeltrace/internal/errors"
	"github.com/steeltrace/steeltrace/internal/extract"
)

// FileMetadata describes the source file at extraction time.
type FileMetadata struct {
	FileName string
	FileType string
	FileSize int64
	DocType  string
}

// StoreExtraction atomically writes the extraction payload and updates
// the document's aggregates: extraction cost, quality score, and
// status (completed or failed). Chunk and token counts are written by
// StoreChunks once chunking has run.
func (s *Store) StoreExtraction(ctx context.Context, documentID string, resp *extract.ExtractionResponse, fileMeta FileMetadata, knowledgeBaseID string) (*ExtractionRecord, error) {
	if resp == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "extraction response is required", nil)
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		return nil, errors.New(errors.ErrCodeInternal, "failed to encode extraction payload", err)
	}

	rec := &ExtractionRecord{
		ID:               uuid.NewString(),
		DocumentID:       documentID,
		CostUSD:          resp.CostUSD,
		ProcessingTimeMS: resp.ProcessingTimeMS,
		Success:          resp.Success,
		WarningCount:     len(resp.Warnings),
		CreatedAt:        time.Now().UTC(),
	}

	status := StatusCompleted
	if !resp.Success {
		status = StatusFailed
	}
	quality := QualityScore(resp)

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		success := 0
		if resp.Success {
			success = 1
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO extractions (id, document_id, payload, cost_usd, processing_time_ms, success, warning_count, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.DocumentID, string(payload), rec.CostUSD, rec.ProcessingTimeMS,
			success, rec.WarningCount, rec.CreatedAt); err != nil {
			return errors.New(errors.ErrCodeStorageFailed, "failed to insert extraction", err)
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE documents
			SET status = ?, doc_type = ?, file_name = ?, file_type = ?, file_size = ?,
			    extraction_cost = extraction_cost + ?, quality_score = ?, updated_at = ?
			WHERE id = ? AND is_active = 1`,
			status, fileMeta.DocType, fileMeta.FileName, fileMeta.FileType, fileMeta.FileSize,
			resp.CostUSD, quality, time.Now().UTC(), documentID)
		if err != nil {
			return errors.New(errors.ErrCodeStorageFailed, "failed to update document aggregates", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errors.New(errors.ErrCodeInputNotFound, "document "+documentID+" not found", nil)
		}
		_ = knowledgeBaseID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// GetExtraction returns the stored payload of the latest extraction
// for a document.
func (s *Store) GetExtraction(ctx context.Context, documentID string) (*extract.ExtractionResponse, *ExtractionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx, `
		SELECT id, document_id, payload, cost_usd, processing_time_ms, success, warning_count, created_at
		FROM extractions WHERE document_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`, documentID)

	var rec ExtractionRecord
	var payload string
	var success int
	err := row.Scan(&rec.ID, &rec.DocumentID, &payload, &rec.CostUSD, &rec.ProcessingTimeMS,
		&success, &rec.WarningCount, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil, errors.New(errors.ErrCodeInputNotFound, "no extraction for document "+documentID, err)
	}
	if err != nil {
		return nil, nil, errors.New(errors.ErrCodeStorageFailed, "failed to scan extraction", err)
	}
	rec.Success = success == 1

	var resp extract.ExtractionResponse
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		return nil, nil, errors.New(errors.ErrCodeStorageFailed, "failed to decode extraction payload", err)
	}
	return &resp, &rec, nil
}

// QualityScore computes the deterministic extraction quality score:
// base 0.3 for success, plus content bonuses, minus 0.1 per warning
// capped at 0.3, clamped to [0, 1].
func QualityScore(resp *extract.ExtractionResponse) float64 {
	if resp == nil || !resp.Success {
		return 0
	}
	score := 0.3
	if resp.Text != "" {
		score += 0.2
	}
	if len(resp.Tables) > 0 {
		score += 0.15
	}
	if len(resp.Layout) > 0 {
		score += 0.15
	}
	if len(resp.Entities) > 0 {
		score += 0.10
	}
	if resp.Summary != "" {
		score += 0.10
	}

	penalty := 0.1 * float64(len(resp.Warnings))
	if penalty > 0.3 {
		penalty = 0.3
	}
	score -= penalty

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}
