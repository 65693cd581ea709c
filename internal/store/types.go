package store

import "time"

// Document statuses.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// KnowledgeBase is one isolated corpus with its own chunking policy
// and vector namespace (the KB id).
type KnowledgeBase struct {
	ID             string
	Name           string
	Description    string
	ChunkSize      int
	ChunkOverlap   int
	EmbeddingModel string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Vector index descriptor statuses.
const (
	VectorIndexInitializing = "initializing"
	VectorIndexActive       = "active"
	VectorIndexUpdating     = "updating"
	VectorIndexError        = "error"
	VectorIndexRebuilding   = "rebuilding"
)

// VectorIndexRecord describes one knowledge base's vector index: the
// backend identity and the write state. At most one active descriptor
// exists per knowledge base; every vector write transitions its status
// so a reconciliation scan can spot stale or failed indexes.
type VectorIndexRecord struct {
	ID              string
	KnowledgeBaseID string
	Backend         string
	Metric          string
	Dimensions      int
	Status          string
	VectorCount     int
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// KnowledgeBaseStats are the aggregate counters over a knowledge
// base's non-deleted documents. They are computed at read time from
// the document and chunk rows, so they reconcile with those rows by
// construction after every update or soft delete.
type KnowledgeBaseStats struct {
	Documents      int
	Chunks         int
	Tokens         int
	ExtractionCost float64
}

// Document is one ingested file.
type Document struct {
	ID              string
	KnowledgeBaseID string
	FilePath        string
	FileName        string
	FileType        string
	FileSize        int64
	Status          string
	DocType         string
	ChunkCount      int
	TokenCount      int
	ExtractionCost  float64
	QualityScore    float64
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Page is one page's extracted text, kept for page-scoped reprocessing
// such as takeoff extraction.
type Page struct {
	DocumentID string
	PageNumber int
	Text       string
	WordCount  int
	TokenCount int
	// ImageWidth and ImageHeight are the rasterized dimensions in
	// pixels; zero when the page was never rasterized.
	ImageWidth      int
	ImageHeight     int
	ProbablyScanned bool
}

// StoredChunk is a chunk row with retrieval statistics.
type StoredChunk struct {
	ID             string
	DocumentID     string
	Index          int
	Kind           string
	Content        string
	TokenCount     int
	ParentID       string
	Page           int
	Metadata       map[string]string
	VectorID       string
	RetrievalCount int
	MeanRelevance  float64
	IsActive       bool
}

// ExtractionRecord is one stored extraction run.
type ExtractionRecord struct {
	ID               string
	DocumentID       string
	CostUSD          float64
	ProcessingTimeMS int64
	Success          bool
	WarningCount     int
	CreatedAt        time.Time
}

// QueryRecord captures one retrieval request and its latency split.
type QueryRecord struct {
	ID              string
	KnowledgeBaseID string
	QueryText       string
	TopK            int
	FusionMode      string
	Reranked        bool
	EmbeddingMS     int64
	RetrievalMS     int64
	RerankMS        int64
	CreatedAt       time.Time
}

// QueryResultRecord is one ranked hit of a stored query.
type QueryResultRecord struct {
	QueryID string
	ChunkID string
	Rank    int
	Score   float64
}
