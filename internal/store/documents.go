package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/steeltrace/steeltrace/internal/errors"
)

// CreateDocument inserts a pending document record.
func (s *Store) CreateDocument(ctx context.Context, doc Document) (*Document, error) {
	if doc.KnowledgeBaseID == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "document requires a knowledge base id", nil)
	}
	if doc.FilePath == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "document requires a file path", nil)
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.Status == "" {
		doc.Status = StatusPending
	}
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	doc.IsActive = true

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO documents
				(id, knowledge_base_id, file_path, file_name, file_type, file_size, status, doc_type,
				 chunk_count, token_count, extraction_cost, quality_score, is_active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, 0, 0, 0, 1, ?, ?)`,
			doc.ID, doc.KnowledgeBaseID, doc.FilePath, doc.FileName, doc.FileType, doc.FileSize,
			doc.Status, doc.DocType, doc.CreatedAt, doc.UpdatedAt)
		if err != nil {
			return errors.New(errors.ErrCodeStorageFailed, "failed to insert document", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// GetDocument returns an active document by id.
func (s *Store) GetDocument(ctx context.Context, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx, selectDocument+` WHERE id = ? AND is_active = 1`, id)
	return scanDocument(row)
}

// ListDocuments returns active documents in a knowledge base, newest
// first.
func (s *Store) ListDocuments(ctx context.Context, knowledgeBaseID string) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx,
		selectDocument+` WHERE knowledge_base_id = ? AND is_active = 1 ORDER BY created_at DESC, id`,
		knowledgeBaseID)
	if err != nil {
		return nil, errors.New(errors.ErrCodeStorageFailed, "failed to list documents", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New(errors.ErrCodeStorageFailed, "failed to iterate documents", err)
	}
	return out, nil
}

// DeleteDocument soft-deletes a document and its chunks.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		res, err := tx.ExecContext(ctx,
			`UPDATE documents SET is_active = 0, updated_at = ? WHERE id = ? AND is_active = 1`, now, id)
		if err != nil {
			return errors.New(errors.ErrCodeStorageFailed, "failed to delete document", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errors.New(errors.ErrCodeInputNotFound, "document "+id+" not found", nil)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE chunks SET is_active = 0 WHERE document_id = ?`, id); err != nil {
			return errors.New(errors.ErrCodeStorageFailed, "failed to cascade to chunks", err)
		}
		return nil
	})
}

// StorePages replaces the per-page text of a document.
func (s *Store) StorePages(ctx context.Context, documentID string, pages []Page) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM pages WHERE document_id = ?`, documentID); err != nil {
			return errors.New(errors.ErrCodeStorageFailed, "failed to clear pages", err)
		}
		for _, p := range pages {
			scanned := 0
			if p.ProbablyScanned {
				scanned = 1
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO pages
					(document_id, page_number, text, word_count, token_count, image_width, image_height, probably_scanned)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				documentID, p.PageNumber, p.Text, p.WordCount, p.TokenCount,
				p.ImageWidth, p.ImageHeight, scanned); err != nil {
				return errors.New(errors.ErrCodeStorageFailed, "failed to insert page", err)
			}
		}
		return nil
	})
}

// GetPages returns a document's pages in page order.
func (s *Store) GetPages(ctx context.Context, documentID string) ([]Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `
		SELECT document_id, page_number, text, word_count, token_count, image_width, image_height, probably_scanned
		FROM pages WHERE document_id = ? ORDER BY page_number`, documentID)
	if err != nil {
		return nil, errors.New(errors.ErrCodeStorageFailed, "failed to query pages", err)
	}
	defer rows.Close()

	var out []Page
	for rows.Next() {
		var p Page
		var scanned int
		if err := rows.Scan(&p.DocumentID, &p.PageNumber, &p.Text, &p.WordCount, &p.TokenCount,
			&p.ImageWidth, &p.ImageHeight, &scanned); err != nil {
			return nil, errors.New(errors.ErrCodeStorageFailed, "failed to scan page", err)
		}
		p.ProbablyScanned = scanned == 1
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New(errors.ErrCodeStorageFailed, "failed to iterate pages", err)
	}
	return out, nil
}

const selectDocument = `
	SELECT id, knowledge_base_id, file_path, file_name, file_type, file_size, status, doc_type,
	       chunk_count, token_count, extraction_cost, quality_score, is_active, created_at, updated_at
	FROM documents`

func scanDocument(row rowScanner) (*Document, error) {
	var doc Document
	var active int
	err := row.Scan(&doc.ID, &doc.KnowledgeBaseID, &doc.FilePath, &doc.FileName, &doc.FileType,
		&doc.FileSize, &doc.Status, &doc.DocType, &doc.ChunkCount, &doc.TokenCount,
		&doc.ExtractionCost, &doc.QualityScore, &active, &doc.CreatedAt, &doc.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.ErrCodeInputNotFound, "document not found", err)
	}
	if err != nil {
		return nil, errors.New(errors.ErrCodeStorageFailed, "failed to scan document", err)
	}
	doc.IsActive = active == 1
	return &doc, nil
}
