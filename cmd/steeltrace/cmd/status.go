package cmd

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/steeltrace/steeltrace/internal/output"
)

// statusInfo aggregates the health report.
type statusInfo struct {
	DataDir        string     `json:"data_dir"`
	VectorBackend  string     `json:"vector_backend"`
	TotalVectors   int        `json:"total_vectors"`
	KnowledgeBases []kbStatus `json:"knowledge_bases"`
	Document       *docStatus `json:"document,omitempty"`
}

type kbStatus struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Documents int     `json:"documents"`
	Chunks    int     `json:"chunks"`
	Tokens    int     `json:"tokens"`
	Vectors   int     `json:"vectors"`
	CostUSD   float64 `json:"cost_usd"`
}

type docStatus struct {
	ID             string  `json:"id"`
	FileName       string  `json:"file_name"`
	Status         string  `json:"status"`
	DocType        string  `json:"doc_type"`
	ChunkCount     int     `json:"chunk_count"`
	TokenCount     int     `json:"token_count"`
	QualityScore   float64 `json:"quality_score"`
	ExtractionCost float64 `json:"extraction_cost"`
}

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status [document-id]",
		Short: "Show knowledge base and document health",
		Long: `Without arguments, list every knowledge base with its document and
vector counts. With a document id, additionally report that
document's extraction state, chunk and token counts, quality score,
and accumulated cost.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			documentID := ""
			if len(args) > 0 {
				documentID = args[0]
			}
			return runStatus(cmd.Context(), cmd, documentID, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, documentID string, jsonOutput bool) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	info, err := collectStatus(ctx, a, documentID)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	out := output.New(cmd.OutOrStdout())
	out.Statusf("•", "Data dir: %s", info.DataDir)
	out.Statusf("•", "Vector backend: %s (%d vectors)", info.VectorBackend, info.TotalVectors)
	for _, kb := range info.KnowledgeBases {
		out.Statusf("•", "KB %s (%s): %d documents, %d chunks, %d vectors, $%.4f",
			kb.Name, kb.ID, kb.Documents, kb.Chunks, kb.Vectors, kb.CostUSD)
	}
	if d := info.Document; d != nil {
		out.Newline()
		out.Statusf("•", "Document %s (%s)", d.ID, d.FileName)
		out.Statusf(" ", "  status=%s type=%s chunks=%d tokens=%d quality=%.2f cost=$%.4f",
			d.Status, d.DocType, d.ChunkCount, d.TokenCount, d.QualityScore, d.ExtractionCost)
	}
	return nil
}

func collectStatus(ctx context.Context, a *app, documentID string) (*statusInfo, error) {
	stats, err := a.vectors.Stats(ctx, "")
	if err != nil {
		return nil, err
	}
	info := &statusInfo{
		DataDir:       a.cfg.DataDir,
		VectorBackend: stats.Backend,
		TotalVectors:  stats.TotalVectors,
	}

	kbs, err := a.store.ListKnowledgeBases(ctx)
	if err != nil {
		return nil, err
	}
	for _, kb := range kbs {
		kbStats, err := a.store.GetKnowledgeBaseStats(ctx, kb.ID)
		if err != nil {
			return nil, err
		}
		info.KnowledgeBases = append(info.KnowledgeBases, kbStatus{
			ID:        kb.ID,
			Name:      kb.Name,
			Documents: kbStats.Documents,
			Chunks:    kbStats.Chunks,
			Tokens:    kbStats.Tokens,
			Vectors:   stats.VectorsByNamespace[kb.ID],
			CostUSD:   kbStats.ExtractionCost,
		})
	}

	if documentID != "" {
		doc, err := a.store.GetDocument(ctx, documentID)
		if err != nil {
			return nil, err
		}
		info.Document = &docStatus{
			ID:             doc.ID,
			FileName:       doc.FileName,
			Status:         doc.Status,
			DocType:        doc.DocType,
			ChunkCount:     doc.ChunkCount,
			TokenCount:     doc.TokenCount,
			QualityScore:   doc.QualityScore,
			ExtractionCost: doc.ExtractionCost,
		}
	}
	return info, nil
}
