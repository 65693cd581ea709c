package takeoff

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steeltrace/steeltrace/internal/config"
	"github.com/steeltrace/steeltrace/internal/errors"
	"github.com/steeltrace/steeltrace/internal/llm"
	"github.com/steeltrace/steeltrace/internal/store"
)

// scriptedClient replays one canned response per call.
type scriptedClient struct {
	responses []string
	calls     int
	requests  []llm.Request
}

func (c *scriptedClient) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	c.requests = append(c.requests, req)
	if c.calls >= len(c.responses) {
		return nil, errors.New(errors.ErrCodeProviderPermanent, "no scripted response", nil)
	}
	resp := &llm.Response{Content: c.responses[c.calls], CostUSD: 0.01}
	c.calls++
	return resp, nil
}

func newTakeoffFixture(t *testing.T, pages []store.Page, client llm.Client) (*Extractor, *store.Store, string) {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	kb, err := st.CreateKnowledgeBase(ctx, store.KnowledgeBase{Name: "drawings"})
	require.NoError(t, err)
	doc, err := st.CreateDocument(ctx, store.Document{
		KnowledgeBaseID: kb.ID, FilePath: "/tmp/set.pdf", FileName: "set.pdf",
	})
	require.NoError(t, err)
	require.NoError(t, st.StorePages(ctx, doc.ID, pages))

	ex := New(client, st, "openai", "gpt-4o", config.TakeoffConfig{MaxTokens: 8000}, nil)
	return ex, st, doc.ID
}

func fivePages() []store.Page {
	pages := make([]store.Page, 5)
	for i := range pages {
		pages[i] = store.Page{PageNumber: i + 1, Text: "page text"}
	}
	return pages
}

func elementTable(rows ...string) string {
	out := TableHeader + "\n"
	for _, r := range rows {
		out += r + "\n"
	}
	return out
}

func TestExtractFiveDrawingPages(t *testing.T) {
	client := &scriptedClient{responses: []string{
		elementTable(
			"C1|concrete-column|1|400|400|3000|4|-|-|N12@200|N40|40|-|Grid A|-|L1|-|NO",
			"B1|beam|1|300|-|600|2|N16@150|N16@150|-|N32|40|-|-|-|-|-|NO",
		),
		"NO ELEMENTS",
		elementTable(
			"C1|concrete-column|3|400|400|3000|4|-|-|N12@200|N40|40|-|Grid A|-|L1|-|NO",
			"S1|slab|3|-|-|200|-|SL82|SL82|-|N32|30|steel trowel|-|-|L2|-|-",
		),
		"NO ELEMENTS",
		elementTable(
			"F1|footing|5|1200|1200|400|6|-|N16@200|-|N32|50|-|-|-|-|-|-",
		),
	}}

	ex, st, docID := newTakeoffFixture(t, fivePages(), client)
	result, err := ex.Extract(context.Background(), docID)
	require.NoError(t, err)

	assert.Equal(t, 5, client.calls, "one model call per page")
	assert.Equal(t, 5, result.PagesProcessed)
	assert.InDelta(t, 0.05, result.CostUSD, 1e-9)

	ids := make([]string, len(result.Elements))
	for i, el := range result.Elements {
		ids[i] = el.ID
	}
	assert.Equal(t, []string{"C1", "B1", "S1", "F1"}, ids,
		"union of non-empty pages with C1 deduplicated")
	assert.Equal(t, 1, result.Elements[0].Page, "first sighting wins")

	records, err := st.GetTakeoffElements(context.Background(), docID)
	require.NoError(t, err)
	require.Len(t, records, 4)
	for _, rec := range records {
		assert.NotEmpty(t, rec.Payload)
		assert.GreaterOrEqual(t, rec.Completeness, 0.0)
		assert.LessOrEqual(t, rec.Completeness, 1.0)
	}

	doc, err := st.GetDocument(context.Background(), docID)
	require.NoError(t, err)
	assert.InDelta(t, 0.05, doc.ExtractionCost, 1e-9, "run cost folded into the document")
}

func TestExtractSendsPageContext(t *testing.T) {
	client := &scriptedClient{responses: []string{"NO ELEMENTS", "NO ELEMENTS"}}
	ex, _, docID := newTakeoffFixture(t, []store.Page{
		{PageNumber: 1, Text: "COLUMN SCHEDULE"},
		{PageNumber: 2, Text: "GENERAL NOTES"},
	}, client)

	_, err := ex.Extract(context.Background(), docID)
	require.NoError(t, err)
	require.Len(t, client.requests, 2)

	first := client.requests[0]
	assert.Equal(t, "openai", first.Provider)
	assert.Equal(t, 8000, first.MaxTokens)
	require.Len(t, first.Messages, 1)
	text := first.Messages[0].Parts[0].Text
	assert.Contains(t, text, "page 1 of 2")
	assert.Contains(t, text, TableHeader)
	assert.Contains(t, text, "COLUMN SCHEDULE")
}

func TestExtractPageFailureIsWarning(t *testing.T) {
	client := &scriptedClient{responses: []string{
		elementTable("C1|concrete-column|1|400|400|3000|4|-|-|N12@200|N40|40|-|-|-|-|-|NO"),
	}}
	ex, st, docID := newTakeoffFixture(t, fivePages()[:2], client)

	result, err := ex.Extract(context.Background(), docID)
	require.NoError(t, err, "one failed page does not abort the run")
	assert.Equal(t, 2, result.PagesProcessed)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "page 2")
	require.Len(t, result.Elements, 1)

	records, err := st.GetTakeoffElements(context.Background(), docID)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestExtractUnparseableResponseIsWarning(t *testing.T) {
	client := &scriptedClient{responses: []string{"I could not find a schedule on this page."}}
	ex, _, docID := newTakeoffFixture(t, fivePages()[:1], client)

	result, err := ex.Extract(context.Background(), docID)
	require.NoError(t, err)
	assert.Empty(t, result.Elements)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "no element table")
}

func TestExtractSanitizesAgainstSchema(t *testing.T) {
	// A column row carrying a finish value, which the column schema
	// does not declare.
	client := &scriptedClient{responses: []string{
		elementTable("C1|concrete-column|1|400|400|3000|4|-|-|N12@200|N40|40|off-form|-|-|-|-|NO"),
	}}
	ex, _, docID := newTakeoffFixture(t, fivePages()[:1], client)

	result, err := ex.Extract(context.Background(), docID)
	require.NoError(t, err)
	require.Len(t, result.Elements, 1)

	el := result.Elements[0]
	assert.Empty(t, el.Specs.Finish, "non-schema field dropped")
	require.NotEmpty(t, el.Notes)
	assert.Contains(t, el.Notes[0], "finish")
}

func TestExtractRespectsCancellation(t *testing.T) {
	client := &scriptedClient{responses: []string{"NO ELEMENTS", "NO ELEMENTS"}}
	ex, _, docID := newTakeoffFixture(t, fivePages()[:2], client)
	ex.cfg.PageDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := ex.Extract(ctx, docID)
		done <- err
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()

	err := <-done
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeCancelled, errors.GetCode(err))
}

func TestExtractRequiresPages(t *testing.T) {
	client := &scriptedClient{}
	ex, _, docID := newTakeoffFixture(t, nil, client)

	_, err := ex.Extract(context.Background(), docID)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInputNotFound, errors.GetCode(err))
}
