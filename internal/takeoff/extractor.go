package takeoff

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/steeltrace/steeltrace/internal/config"
	"github.com/steeltrace/steeltrace/internal/errors"
	"github.com/steeltrace/steeltrace/internal/llm"
	"github.com/steeltrace/steeltrace/internal/progress"
	"github.com/steeltrace/steeltrace/internal/store"
)

// Extractor runs a page-by-page takeoff over a document's stored page
// text. Pages go through the model one at a time because a full
// drawing set's element table does not fit a single response.
type Extractor struct {
	client   llm.Client
	store    *store.Store
	schemas  TypeSchemas
	provider string
	model    string
	cfg      config.TakeoffConfig
	sink     progress.Sink
	logger   *slog.Logger
}

// WithProgress pushes per-page execution updates to sink during
// Extract. The document id doubles as the execution id.
func (e *Extractor) WithProgress(sink progress.Sink) *Extractor {
	e.sink = sink
	return e
}

// New wires a takeoff extractor. provider and model select the chat
// route; cfg controls pacing and the per-page token budget.
func New(client llm.Client, st *store.Store, provider, model string, cfg config.TakeoffConfig, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 8000
	}
	return &Extractor{
		client:   client,
		store:    st,
		schemas:  DefaultSchemas(),
		provider: provider,
		model:    model,
		cfg:      cfg,
		logger:   logger,
	}
}

// Extract iterates the document's pages sequentially, parses each
// response table, deduplicates elements by id across the run, applies
// the schema, and persists the result atomically.
func (e *Extractor) Extract(ctx context.Context, documentID string) (*Result, error) {
	pages, err := e.store.GetPages(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, errors.New(errors.ErrCodeInputNotFound, "document has no stored pages", nil)
	}

	start := time.Now()
	result := &Result{DocumentID: documentID}
	seen := map[string]bool{}

	tracker := progress.NewTracker(documentID, len(pages), e.sink, e.logger)
	tracker.Start(ctx)

	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			tracker.Cancel(ctx)
			return nil, errors.Cancelled(err)
		}

		elements, warn, cost, err := e.extractPage(ctx, page, len(pages))
		if err != nil {
			if errors.GetCode(err) == errors.ErrCodeCancelled {
				tracker.Cancel(ctx)
				return nil, err
			}
			// One bad page does not abort the run.
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("page %d: %s", page.PageNumber, err.Error()))
			e.logger.Warn("takeoff page failed",
				slog.String("document_id", documentID),
				slog.Int("page", page.PageNumber),
				slog.String("error", err.Error()))
		}
		if warn != "" {
			result.Warnings = append(result.Warnings, warn)
		}
		result.CostUSD += cost
		result.PagesProcessed++
		tracker.Step(ctx, 1)

		for _, el := range elements {
			if seen[el.ID] {
				continue
			}
			seen[el.ID] = true
			if el.Page == 0 {
				el.Page = page.PageNumber
			}
			result.Elements = append(result.Elements, el)
		}

		// Rate-limit pacing between pages, not after the last one.
		if i < len(pages)-1 && e.cfg.PageDelay > 0 {
			select {
			case <-ctx.Done():
				tracker.Cancel(ctx)
				return nil, errors.Cancelled(ctx.Err())
			case <-time.After(e.cfg.PageDelay):
			}
		}
	}

	records, err := e.finalize(result)
	if err != nil {
		tracker.Fail(ctx, err.Error())
		return nil, err
	}
	if err := e.store.StoreTakeoffElements(ctx, documentID, records, result.CostUSD); err != nil {
		tracker.Fail(ctx, err.Error())
		return nil, err
	}
	tracker.Complete(ctx)
	result.ProcessingTimeMS = time.Since(start).Milliseconds()

	e.logger.Info("takeoff complete",
		slog.String("document_id", documentID),
		slog.Int("elements", len(result.Elements)),
		slog.Int("pages", result.PagesProcessed),
		slog.Float64("cost_usd", result.CostUSD))
	return result, nil
}

// extractPage runs one model call and parses the response table.
func (e *Extractor) extractPage(ctx context.Context, page store.Page, totalPages int) ([]Element, string, float64, error) {
	resp, err := e.client.Complete(ctx, llm.Request{
		Provider: e.provider,
		Model:    e.model,
		Messages: []llm.Message{{
			Role: llm.RoleUser,
			Parts: []llm.ContentPart{{
				Type: llm.PartText,
				Text: pagePrompt(page.Text, page.PageNumber, totalPages),
			}},
		}},
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: 0.1,
	})
	if err != nil {
		return nil, "", 0, err
	}

	rows, ok := ParseTable(resp.Content)
	if !ok {
		return nil, fmt.Sprintf("page %d: response carried no element table", page.PageNumber),
			resp.CostUSD, nil
	}

	var elements []Element
	for _, row := range rows {
		el, valid := normalizeRow(row)
		if !valid {
			continue
		}
		if e.cfg.MinConfidence > 0 && el.Confidence < e.cfg.MinConfidence {
			continue
		}
		elements = append(elements, *el)
	}
	return elements, "", resp.CostUSD, nil
}

// finalize applies the per-type schema to every element and encodes the
// persistence records. Validation errors become element notes; the
// sanitized specifications are what get stored.
func (e *Extractor) finalize(result *Result) ([]store.TakeoffElementRecord, error) {
	records := make([]store.TakeoffElementRecord, 0, len(result.Elements))
	for i := range result.Elements {
		el := &result.Elements[i]
		schema := e.schemas.SchemaFor(el.Type)

		if ok, errs := schema.Validate(el.Specs); !ok {
			el.Notes = append(el.Notes, errs...)
		}
		el.Specs = schema.Sanitize(el.Specs)
		completeness := schema.Completeness(el.Specs)

		payload, err := json.Marshal(el)
		if err != nil {
			return nil, errors.New(errors.ErrCodeInternal, "failed to encode takeoff element", err)
		}
		records = append(records, store.TakeoffElementRecord{
			DocumentID:   result.DocumentID,
			ElementID:    el.ID,
			ElementType:  el.Type,
			Page:         el.Page,
			Payload:      string(payload),
			Completeness: completeness,
		})
	}
	return records, nil
}

// pagePrompt asks for the pipe-delimited element table for one page.
func pagePrompt(pageText string, pageNumber, totalPages int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are extracting a structural element schedule from page %d of %d of an engineering drawing set.\n\n", pageNumber, totalPages)
	sb.WriteString("List every concrete element visible on this page as one row of a pipe-delimited table with this exact header:\n\n")
	sb.WriteString(TableHeader)
	sb.WriteString("\n\nRules:\n")
	sb.WriteString("- Dimensions in integer millimeters.\n")
	sb.WriteString("- Reinforcement as bar@spacing (e.g. N12@200) or fabric type (e.g. SL82).\n")
	sb.WriteString("- Use - for any unknown cell.\n")
	sb.WriteString("- If the page contains no elements, respond with exactly: ")
	sb.WriteString(NoElementsSentinel)
	sb.WriteString("\n\nPage text:\n\n")
	sb.WriteString(pageText)
	return sb.String()
}
