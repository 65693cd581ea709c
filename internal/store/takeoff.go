package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/steeltrace/steeltrace/internal/errors"
)

// TakeoffElementRecord is one normalized takeoff element. Payload is
// the JSON-encoded element produced by the takeoff extractor.
type TakeoffElementRecord struct {
	ID           string
	DocumentID   string
	ElementID    string
	ElementType  string
	Page         int
	Payload      string
	Completeness float64
	CreatedAt    time.Time
}

// StoreTakeoffElements atomically replaces a document's takeoff
// elements and folds the run's cost and time into the document.
func (s *Store) StoreTakeoffElements(ctx context.Context, documentID string, elements []TakeoffElementRecord, costUSD float64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM takeoff_elements WHERE document_id = ?`, documentID); err != nil {
			return errors.New(errors.ErrCodeStorageFailed, "failed to clear takeoff elements", err)
		}
		now := time.Now().UTC()
		for _, e := range elements {
			if e.ID == "" {
				e.ID = uuid.NewString()
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO takeoff_elements
					(id, document_id, element_id, element_type, page, payload, completeness, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				e.ID, documentID, e.ElementID, e.ElementType, e.Page, e.Payload,
				e.Completeness, now); err != nil {
				return errors.New(errors.ErrCodeStorageFailed, "failed to insert takeoff element", err)
			}
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE documents SET extraction_cost = extraction_cost + ?, updated_at = ?
			WHERE id = ? AND is_active = 1`, costUSD, now, documentID); err != nil {
			return errors.New(errors.ErrCodeStorageFailed, "failed to update document cost", err)
		}
		return nil
	})
}

// GetTakeoffElements returns a document's takeoff elements ordered by
// page then element id.
func (s *Store) GetTakeoffElements(ctx context.Context, documentID string) ([]TakeoffElementRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, element_id, element_type, page, payload, completeness, created_at
		FROM takeoff_elements WHERE document_id = ? ORDER BY page, element_id`, documentID)
	if err != nil {
		return nil, errors.New(errors.ErrCodeStorageFailed, "failed to query takeoff elements", err)
	}
	defer rows.Close()

	var out []TakeoffElementRecord
	for rows.Next() {
		var e TakeoffElementRecord
		if err := rows.Scan(&e.ID, &e.DocumentID, &e.ElementID, &e.ElementType, &e.Page,
			&e.Payload, &e.Completeness, &e.CreatedAt); err != nil {
			return nil, errors.New(errors.ErrCodeStorageFailed, "failed to scan takeoff element", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New(errors.ErrCodeStorageFailed, "failed to iterate takeoff elements", err)
	}
	return out, nil
}
