package mcp

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	KnowledgeBaseID string `json:"knowledge_base_id" jsonschema:"the knowledge base to search"`
	Query           string `json:"query" jsonschema:"the search query to execute"`
	TopK            int    `json:"top_k,omitempty" jsonschema:"maximum number of results, default 5"`
	Mode            string `json:"mode,omitempty" jsonschema:"fusion mode: rrf or weighted, default rrf"`
	Rerank          bool   `json:"rerank,omitempty" jsonschema:"apply metadata-boost reranking"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results" jsonschema:"ranked retrieval results"`
	QueryID string               `json:"query_id,omitempty" jsonschema:"id of the recorded query"`
}

// SearchResultOutput is one retrieved chunk.
type SearchResultOutput struct {
	ChunkID      string   `json:"chunk_id" jsonschema:"chunk identifier"`
	DocumentID   string   `json:"document_id" jsonschema:"owning document"`
	Content      string   `json:"content" jsonschema:"chunk content"`
	Score        float64  `json:"score" jsonschema:"fused relevance score"`
	Kind         string   `json:"kind,omitempty" jsonschema:"chunk kind: text, table, metadata"`
	Page         int      `json:"page,omitempty" jsonschema:"source page number"`
	MatchedTerms []string `json:"matched_terms,omitempty" jsonschema:"query terms matched by keyword search"`
	InBothLists  bool     `json:"in_both_lists,omitempty" jsonschema:"true when vector and keyword search both ranked this chunk"`
}

// ListKnowledgeBasesInput has no parameters.
type ListKnowledgeBasesInput struct{}

// ListKnowledgeBasesOutput lists the active knowledge bases.
type ListKnowledgeBasesOutput struct {
	KnowledgeBases []KnowledgeBaseOutput `json:"knowledge_bases"`
}

// KnowledgeBaseOutput is one knowledge base summary.
type KnowledgeBaseOutput struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	DocumentCount int    `json:"document_count"`
}

// DocumentStatusInput selects one document.
type DocumentStatusInput struct {
	DocumentID string `json:"document_id" jsonschema:"the document to inspect"`
}

// DocumentStatusOutput reports a document's processing state.
type DocumentStatusOutput struct {
	DocumentID     string  `json:"document_id"`
	FileName       string  `json:"file_name"`
	Status         string  `json:"status" jsonschema:"pending, completed, or failed"`
	DocType        string  `json:"doc_type,omitempty"`
	ChunkCount     int     `json:"chunk_count"`
	TokenCount     int     `json:"token_count"`
	QualityScore   float64 `json:"quality_score"`
	ExtractionCost float64 `json:"extraction_cost_usd"`
}

// RunTakeoffInput starts a takeoff extraction over a document's pages.
type RunTakeoffInput struct {
	DocumentID string `json:"document_id" jsonschema:"the document to run takeoff on"`
}

// RunTakeoffOutput summarizes a takeoff run.
type RunTakeoffOutput struct {
	DocumentID     string   `json:"document_id"`
	ElementCount   int      `json:"element_count"`
	PagesProcessed int      `json:"pages_processed"`
	CostUSD        float64  `json:"cost_usd"`
	Warnings       []string `json:"warnings,omitempty"`
}

// GetTakeoffElementsInput selects a document's stored elements.
type GetTakeoffElementsInput struct {
	DocumentID string `json:"document_id" jsonschema:"the document whose elements to list"`
}

// GetTakeoffElementsOutput lists stored takeoff elements.
type GetTakeoffElementsOutput struct {
	Elements []TakeoffElementOutput `json:"elements"`
}

// TakeoffElementOutput is one persisted element.
type TakeoffElementOutput struct {
	ElementID    string  `json:"element_id"`
	ElementType  string  `json:"element_type"`
	Page         int     `json:"page"`
	Completeness float64 `json:"completeness" jsonschema:"schema completeness in [0,1]"`
	Payload      string  `json:"payload" jsonschema:"JSON-encoded element specifications"`
}
