// Package store persists documents, pages, chunks, extractions,
// queries, and takeoff elements in SQLite. Every multi-row mutation
// runs in a serializable transaction; the ingestion orchestrator is
// the only caller that spans multiple tables in one logical action.
package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/steeltrace/steeltrace/internal/errors"
)

// Store is the SQLite-backed document store.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// Open opens or creates the database at path. An empty path creates an
// in-memory database.
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.New(errors.ErrCodeStorageFailed, "failed to create store directory", err)
		}
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.New(errors.ErrCodeStorageFailed, "failed to open database", err)
	}

	// Single writer prevents SQLITE_BUSY under concurrent mutation.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL must be set via PRAGMA; modernc.org/sqlite ignores some DSN
	// parameters.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, errors.New(errors.ErrCodeStorageFailed, "failed to set pragma", err)
		}
	}

	s := &Store{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS knowledge_bases (
		id              TEXT PRIMARY KEY,
		name            TEXT NOT NULL,
		description     TEXT NOT NULL DEFAULT '',
		chunk_size      INTEGER NOT NULL DEFAULT 1000,
		chunk_overlap   INTEGER NOT NULL DEFAULT 200,
		embedding_model TEXT NOT NULL DEFAULT '',
		is_active       INTEGER NOT NULL DEFAULT 1,
		created_at      TIMESTAMP NOT NULL,
		updated_at      TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS documents (
		id                TEXT PRIMARY KEY,
		knowledge_base_id TEXT NOT NULL REFERENCES knowledge_bases(id),
		file_path         TEXT NOT NULL,
		file_name         TEXT NOT NULL,
		file_type         TEXT NOT NULL DEFAULT '',
		file_size         INTEGER NOT NULL DEFAULT 0,
		status            TEXT NOT NULL DEFAULT 'pending',
		doc_type          TEXT NOT NULL DEFAULT '',
		chunk_count       INTEGER NOT NULL DEFAULT 0,
		token_count       INTEGER NOT NULL DEFAULT 0,
		extraction_cost   REAL NOT NULL DEFAULT 0,
		quality_score     REAL NOT NULL DEFAULT 0,
		is_active         INTEGER NOT NULL DEFAULT 1,
		created_at        TIMESTAMP NOT NULL,
		updated_at        TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_kb ON documents(knowledge_base_id, is_active);

	CREATE TABLE IF NOT EXISTS pages (
		document_id  TEXT NOT NULL REFERENCES documents(id),
		page_number  INTEGER NOT NULL,
		text         TEXT NOT NULL DEFAULT '',
		word_count   INTEGER NOT NULL DEFAULT 0,
		token_count  INTEGER NOT NULL DEFAULT 0,
		image_width  INTEGER NOT NULL DEFAULT 0,
		image_height INTEGER NOT NULL DEFAULT 0,
		probably_scanned INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (document_id, page_number)
	);

	CREATE TABLE IF NOT EXISTS chunks (
		id              TEXT PRIMARY KEY,
		document_id     TEXT NOT NULL REFERENCES documents(id),
		chunk_index     INTEGER NOT NULL,
		kind            TEXT NOT NULL,
		content         TEXT NOT NULL,
		token_count     INTEGER NOT NULL DEFAULT 0,
		parent_id       TEXT NOT NULL DEFAULT '',
		page            INTEGER NOT NULL DEFAULT 0,
		metadata        TEXT NOT NULL DEFAULT '{}',
		vector_id       TEXT NOT NULL DEFAULT '',
		retrieval_count INTEGER NOT NULL DEFAULT 0,
		mean_relevance  REAL NOT NULL DEFAULT 0,
		is_active       INTEGER NOT NULL DEFAULT 1
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id, is_active);

	CREATE TABLE IF NOT EXISTS vector_indexes (
		id                TEXT PRIMARY KEY,
		knowledge_base_id TEXT NOT NULL REFERENCES knowledge_bases(id),
		backend           TEXT NOT NULL DEFAULT '',
		metric            TEXT NOT NULL DEFAULT '',
		dimensions        INTEGER NOT NULL DEFAULT 0,
		status            TEXT NOT NULL DEFAULT 'initializing',
		vector_count      INTEGER NOT NULL DEFAULT 0,
		is_active         INTEGER NOT NULL DEFAULT 1,
		created_at        TIMESTAMP NOT NULL,
		updated_at        TIMESTAMP NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_vector_indexes_kb_active
		ON vector_indexes(knowledge_base_id) WHERE is_active = 1;

	CREATE TABLE IF NOT EXISTS extractions (
		id                 TEXT PRIMARY KEY,
		document_id        TEXT NOT NULL REFERENCES documents(id),
		payload            TEXT NOT NULL,
		cost_usd           REAL NOT NULL DEFAULT 0,
		processing_time_ms INTEGER NOT NULL DEFAULT 0,
		success            INTEGER NOT NULL DEFAULT 0,
		warning_count      INTEGER NOT NULL DEFAULT 0,
		created_at         TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_extractions_document ON extractions(document_id);

	CREATE TABLE IF NOT EXISTS queries (
		id                TEXT PRIMARY KEY,
		knowledge_base_id TEXT NOT NULL,
		query_text        TEXT NOT NULL,
		top_k             INTEGER NOT NULL,
		fusion_mode       TEXT NOT NULL DEFAULT '',
		reranked          INTEGER NOT NULL DEFAULT 0,
		embedding_ms      INTEGER NOT NULL DEFAULT 0,
		retrieval_ms      INTEGER NOT NULL DEFAULT 0,
		rerank_ms         INTEGER NOT NULL DEFAULT 0,
		created_at        TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS query_results (
		query_id TEXT NOT NULL REFERENCES queries(id),
		chunk_id TEXT NOT NULL,
		rank     INTEGER NOT NULL,
		score    REAL NOT NULL,
		PRIMARY KEY (query_id, rank)
	);

	CREATE TABLE IF NOT EXISTS takeoff_elements (
		id           TEXT PRIMARY KEY,
		document_id  TEXT NOT NULL REFERENCES documents(id),
		element_id   TEXT NOT NULL,
		element_type TEXT NOT NULL,
		page         INTEGER NOT NULL DEFAULT 0,
		payload      TEXT NOT NULL,
		completeness REAL NOT NULL DEFAULT 0,
		created_at   TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_takeoff_document ON takeoff_elements(document_id);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return errors.New(errors.ErrCodeStorageFailed, "failed to initialize schema", err)
	}
	return nil
}

// withTx runs fn in a serializable transaction, rolling back on error.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New(errors.ErrCodeInternal, "store is closed", nil)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return errors.New(errors.ErrCodeStorageTransient, "failed to begin transaction", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.New(errors.ErrCodeStorageTransient, "failed to commit transaction", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
