package mcp

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/steeltrace/steeltrace/internal/retrieval"
	"github.com/steeltrace/steeltrace/internal/search"
	"github.com/steeltrace/steeltrace/internal/store"
	"github.com/steeltrace/steeltrace/internal/takeoff"
	"github.com/steeltrace/steeltrace/pkg/version"
)

// TakeoffRunner runs a takeoff extraction for one document.
type TakeoffRunner interface {
	Extract(ctx context.Context, documentID string) (*takeoff.Result, error)
}

// Server bridges AI clients with the retrieval and takeoff engine.
type Server struct {
	mcp       *mcp.Server
	retriever *retrieval.Service
	store     *store.Store
	takeoff   TakeoffRunner
	logger    *slog.Logger
}

// NewServer creates the MCP server. takeoffRunner may be nil when no
// LLM provider is configured; the takeoff tool then reports an error.
func NewServer(retriever *retrieval.Service, st *store.Store, takeoffRunner TakeoffRunner, logger *slog.Logger) (*Server, error) {
	if retriever == nil {
		return nil, stderrors.New("retrieval service is required")
	}
	if st == nil {
		return nil, stderrors.New("store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		retriever: retriever,
		store:     st,
		takeoff:   takeoffRunner,
		logger:    logger,
	}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{Name: "SteelTrace", Version: version.Version},
		nil,
	)
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying SDK server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Hybrid search over a knowledge base of extracted engineering documents. Combines vector similarity with keyword matching and rank fusion; returns chunk content with scores and provenance.",
	}, s.searchHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_knowledge_bases",
		Description: "List the active knowledge bases with their document counts.",
	}, s.listKnowledgeBasesHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "document_status",
		Description: "Report a document's processing state: extraction status, chunk and token counts, quality score, and accumulated cost.",
	}, s.documentStatusHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "run_takeoff",
		Description: "Run a page-by-page takeoff extraction over a stored document, producing a schema-validated list of engineering elements with dimensions, reinforcement, and quantities.",
	}, s.runTakeoffHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_takeoff_elements",
		Description: "List the stored takeoff elements of a document, ordered by page then element id.",
	}, s.getTakeoffElementsHandler)

	s.logger.Info("MCP tools registered", slog.Int("count", 5))
}

func (s *Server) searchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult, SearchOutput, error,
) {
	if input.KnowledgeBaseID == "" {
		return nil, SearchOutput{}, NewInvalidParamsError("knowledge_base_id is required")
	}
	if input.Query == "" {
		return nil, SearchOutput{}, NewInvalidParamsError("query is required")
	}

	resp, err := s.retriever.Retrieve(ctx, retrieval.Request{
		KnowledgeBaseID: input.KnowledgeBaseID,
		Query:           input.Query,
		TopK:            input.TopK,
		Mode:            search.FusionMode(input.Mode),
		Rerank:          input.Rerank,
	})
	if err != nil {
		return nil, SearchOutput{}, MapError(err)
	}

	output := SearchOutput{
		QueryID: resp.QueryID,
		Results: make([]SearchResultOutput, 0, len(resp.Results)),
	}
	for _, r := range resp.Results {
		output.Results = append(output.Results, SearchResultOutput{
			ChunkID:      r.ID,
			DocumentID:   r.DocumentID,
			Content:      r.Content,
			Score:        r.Score,
			Kind:         r.Kind,
			Page:         r.Page,
			MatchedTerms: r.MatchedTerms,
			InBothLists:  r.InBothLists,
		})
	}
	return nil, output, nil
}

func (s *Server) listKnowledgeBasesHandler(ctx context.Context, _ *mcp.CallToolRequest, _ ListKnowledgeBasesInput) (
	*mcp.CallToolResult, ListKnowledgeBasesOutput, error,
) {
	kbs, err := s.store.ListKnowledgeBases(ctx)
	if err != nil {
		return nil, ListKnowledgeBasesOutput{}, MapError(err)
	}

	output := ListKnowledgeBasesOutput{
		KnowledgeBases: make([]KnowledgeBaseOutput, 0, len(kbs)),
	}
	for _, kb := range kbs {
		docs, err := s.store.ListDocuments(ctx, kb.ID)
		if err != nil {
			return nil, ListKnowledgeBasesOutput{}, MapError(err)
		}
		output.KnowledgeBases = append(output.KnowledgeBases, KnowledgeBaseOutput{
			ID:            kb.ID,
			Name:          kb.Name,
			Description:   kb.Description,
			DocumentCount: len(docs),
		})
	}
	return nil, output, nil
}

func (s *Server) documentStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, input DocumentStatusInput) (
	*mcp.CallToolResult, DocumentStatusOutput, error,
) {
	if input.DocumentID == "" {
		return nil, DocumentStatusOutput{}, NewInvalidParamsError("document_id is required")
	}
	doc, err := s.store.GetDocument(ctx, input.DocumentID)
	if err != nil {
		return nil, DocumentStatusOutput{}, MapError(err)
	}
	return nil, DocumentStatusOutput{
		DocumentID:     doc.ID,
		FileName:       doc.FileName,
		Status:         doc.Status,
		DocType:        doc.DocType,
		ChunkCount:     doc.ChunkCount,
		TokenCount:     doc.TokenCount,
		QualityScore:   doc.QualityScore,
		ExtractionCost: doc.ExtractionCost,
	}, nil
}

func (s *Server) runTakeoffHandler(ctx context.Context, _ *mcp.CallToolRequest, input RunTakeoffInput) (
	*mcp.CallToolResult, RunTakeoffOutput, error,
) {
	if input.DocumentID == "" {
		return nil, RunTakeoffOutput{}, NewInvalidParamsError("document_id is required")
	}
	if s.takeoff == nil {
		return nil, RunTakeoffOutput{}, &MCPError{
			Code:    ErrCodeProviderFailed,
			Message: "takeoff is unavailable: no LLM provider configured",
		}
	}

	result, err := s.takeoff.Extract(ctx, input.DocumentID)
	if err != nil {
		return nil, RunTakeoffOutput{}, MapError(err)
	}
	return nil, RunTakeoffOutput{
		DocumentID:     result.DocumentID,
		ElementCount:   len(result.Elements),
		PagesProcessed: result.PagesProcessed,
		CostUSD:        result.CostUSD,
		Warnings:       result.Warnings,
	}, nil
}

func (s *Server) getTakeoffElementsHandler(ctx context.Context, _ *mcp.CallToolRequest, input GetTakeoffElementsInput) (
	*mcp.CallToolResult, GetTakeoffElementsOutput, error,
) {
	if input.DocumentID == "" {
		return nil, GetTakeoffElementsOutput{}, NewInvalidParamsError("document_id is required")
	}
	records, err := s.store.GetTakeoffElements(ctx, input.DocumentID)
	if err != nil {
		return nil, GetTakeoffElementsOutput{}, MapError(err)
	}

	output := GetTakeoffElementsOutput{
		Elements: make([]TakeoffElementOutput, 0, len(records)),
	}
	for _, rec := range records {
		output.Elements = append(output.Elements, TakeoffElementOutput{
			ElementID:    rec.ElementID,
			ElementType:  rec.ElementType,
			Page:         rec.Page,
			Completeness: rec.Completeness,
			Payload:      rec.Payload,
		})
	}
	return nil, output, nil
}

// Serve runs the server on the given transport until the context is
// done. Only stdio is supported.
func (s *Server) Serve(ctx context.Context, transport string) error {
	switch transport {
	case "stdio":
		s.logger.Info("starting MCP server", slog.String("transport", transport))
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && err != context.Canceled {
			s.logger.Error("MCP server stopped", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("MCP server stopped")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}
