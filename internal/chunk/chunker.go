package chunk

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/steeltrace/steeltrace/internal/extract"
)

// Config is the chunking policy of a knowledge base.
type Config struct {
	// ChunkSize is the target size of text chunks in tokens.
	ChunkSize int
	// Overlap is the token overlap between adjacent text chunks.
	Overlap int
}

// DefaultConfig returns the standard knowledge-base policy.
func DefaultConfig() Config {
	return Config{ChunkSize: 1000, Overlap: 200}
}

// Chunker converts extraction output into chunks.
type Chunker struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a chunker.
func New(cfg Config, logger *slog.Logger) *Chunker {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.ChunkSize {
		cfg.Overlap = cfg.ChunkSize / 5
	}
	return &Chunker{cfg: cfg, logger: logger}
}

// ChunkExtraction produces the full chunk list for one document:
// overlapping text chunks, one atomic chunk per table and per drawing
// metadata record, and one chunk per visual-element group.
func (c *Chunker) ChunkExtraction(documentID string, resp *extract.ExtractionResponse) []Chunk {
	var chunks []Chunk
	next := func(kind Kind, content string, page int, meta map[string]string) {
		chunks = append(chunks, Chunk{
			ID:         uuid.NewString(),
			DocumentID: documentID,
			Index:      len(chunks),
			Kind:       kind,
			Content:    content,
			TokenCount: EstimateTokens(content),
			Page:       page,
			Metadata:   meta,
		})
	}

	for _, part := range SplitText(resp.Text, c.cfg.ChunkSize, c.cfg.Overlap) {
		next(KindText, part, 0, nil)
	}

	for i, t := range resp.Tables {
		meta := map[string]string{"table_index": fmt.Sprintf("%d", i)}
		if t.IsSchedule {
			meta["is_schedule"] = "true"
		}
		next(KindTable, renderTable(t), t.Page, meta)
	}

	for _, g := range resp.VisualElements.ElementGroups {
		next(KindVisualElementGroup, renderElementGroup(g), g.Page, map[string]string{
			"element_type": g.ElementType,
			"count":        fmt.Sprintf("%d", g.Count),
		})
	}

	if resp.DrawingMetadata != nil {
		next(KindDrawingMetadata, renderDrawingMetadata(resp.DrawingMetadata), 0, nil)
	}

	c.logger.Debug("chunking complete",
		slog.String("document_id", documentID),
		slog.Int("chunks", len(chunks)))
	return chunks
}

// SplitText splits text into chunks of roughly chunkSize tokens with
// the given overlap, breaking on paragraph boundaries when possible.
// Deterministic: identical input yields identical chunks.
func SplitText(text string, chunkSize, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	sizeChars := chunkSize * CharsPerToken
	overlapChars := overlap * CharsPerToken
	if len(text) <= sizeChars {
		return []string{text}
	}

	// Paragraphs first; oversized paragraphs fall back to hard splits.
	var units []string
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		for len(p) > sizeChars {
			units = append(units, p[:sizeChars])
			p = p[sizeChars:]
		}
		if p != "" {
			units = append(units, p)
		}
	}

	var out []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() == 0 {
			return
		}
		chunkText := strings.TrimSpace(cur.String())
		out = append(out, chunkText)
		cur.Reset()
		// Seed the next chunk with the tail of this one.
		if overlapChars > 0 && len(chunkText) > overlapChars {
			cur.WriteString(chunkText[len(chunkText)-overlapChars:])
			cur.WriteString("\n\n")
		}
	}

	for _, u := range units {
		if cur.Len() > 0 && cur.Len()+len(u) > sizeChars {
			flush()
		}
		cur.WriteString(u)
		cur.WriteString("\n\n")
	}
	if strings.TrimSpace(cur.String()) != "" {
		out = append(out, strings.TrimSpace(cur.String()))
	}
	return out
}

// renderTable serializes a table as pipe-delimited text so keyword
// search matches cell values.
func renderTable(t extract.Table) string {
	var sb strings.Builder
	if t.Caption != "" {
		sb.WriteString(t.Caption)
		sb.WriteString("\n")
	}
	if len(t.Headers) > 0 {
		sb.WriteString(strings.Join(t.Headers, " | "))
		sb.WriteString("\n")
	}
	for _, row := range t.Rows {
		sb.WriteString(strings.Join(row, " | "))
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String())
}

// renderElementGroup serializes a counted element group as a short
// textual description.
func renderElementGroup(g extract.ElementGroup) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %d instances", g.ElementType, g.Count)
	fmt.Fprintf(&sb, ", cluster center (%d, %d)", g.ClusterCenter[0], g.ClusterCenter[1])
	if len(g.Instances) > 0 {
		sb.WriteString(", positions:")
		for i, p := range g.Instances {
			if i >= 5 {
				break
			}
			fmt.Fprintf(&sb, " (%d, %d)", p[0], p[1])
		}
	}
	return sb.String()
}

func renderDrawingMetadata(m *extract.DrawingMetadata) string {
	var sb strings.Builder
	add := func(label, v string) {
		if v != "" {
			fmt.Fprintf(&sb, "%s: %s\n", label, v)
		}
	}
	add("Drawing Number", m.DrawingNumber)
	add("Title", m.Title)
	add("Revision", m.Revision)
	add("Scale", m.Scale)
	add("Date", m.Date)
	add("Drawn By", m.DrawnBy)
	add("Checked By", m.CheckedBy)
	add("Project", m.Project)
	add("Sheet", m.Sheet)
	return strings.TrimSpace(sb.String())
}
