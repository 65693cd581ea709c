package vectorindex

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steeltrace/steeltrace/internal/errors"
)

type qdrantCall struct {
	Method string
	Path   string
	Body   map[string]any
}

// fakeQdrant records every call and serves canned responses by path.
type fakeQdrant struct {
	calls     []qdrantCall
	responses map[string]string
	status    int
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	call := qdrantCall{Method: r.Method, Path: r.URL.Path}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&call.Body)
	}
	f.calls = append(f.calls, call)

	if f.status != 0 {
		w.WriteHeader(f.status)
		w.Write([]byte(`{"status":{"error":"boom"}}`))
		return
	}
	if resp, ok := f.responses[r.Method+" "+r.URL.Path]; ok {
		w.Write([]byte(resp))
		return
	}
	w.Write([]byte(`{"result":{},"status":"ok"}`))
}

func newTestQdrant(t *testing.T, fake *fakeQdrant) *QdrantIndex {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	idx, err := NewQdrant(QdrantConfig{
		URL:        srv.URL,
		Dimensions: 3,
		Timeout:    5 * time.Second,
	}, nil)
	require.NoError(t, err)
	return idx
}

func TestQdrantInitializeDiscoversCollections(t *testing.T) {
	fake := &fakeQdrant{responses: map[string]string{
		"GET /collections": `{"result":{"collections":[{"name":"kb1"}]}}`,
	}}
	idx := newTestQdrant(t, fake)
	require.NoError(t, idx.Initialize(context.Background(), true))
	assert.True(t, idx.collections["kb1"])
}

func TestQdrantUpsertCreatesCollectionAndBatches(t *testing.T) {
	fake := &fakeQdrant{}
	idx := newTestQdrant(t, fake)

	vectors := make([]Vector, 150)
	for i := range vectors {
		vectors[i] = Vector{
			ID:       "00000000-0000-0000-0000-000000000001",
			Values:   []float32{1, 0, 0},
			Metadata: map[string]any{"kind": "text"},
		}
	}
	require.NoError(t, idx.Upsert(context.Background(), "kb1", vectors))

	require.Len(t, fake.calls, 3, "one create plus two point batches")
	assert.Equal(t, "PUT", fake.calls[0].Method)
	assert.Equal(t, "/collections/kb1", fake.calls[0].Path)
	assert.Equal(t, "Cosine", fake.calls[0].Body["vectors"].(map[string]any)["distance"])

	first := fake.calls[1].Body["points"].([]any)
	second := fake.calls[2].Body["points"].([]any)
	assert.Len(t, first, 100)
	assert.Len(t, second, 50)
}

func TestQdrantSearchDecodesResults(t *testing.T) {
	fake := &fakeQdrant{responses: map[string]string{
		"POST /collections/kb1/points/search": `{"result":[
			{"id":"a","score":0.92,"payload":{"kind":"table"}},
			{"id":"b","score":0.81,"payload":{"kind":"text"}}
		]}`,
	}}
	idx := newTestQdrant(t, fake)

	results, err := idx.Search(context.Background(), "kb1", []float32{1, 0, 0}, 5, Filter{"kind": "table"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	assert.InDelta(t, 0.92, float64(results[0].Score), 1e-6)
	assert.Equal(t, "table", results[0].Metadata["kind"])

	body := fake.calls[0].Body
	must := body["filter"].(map[string]any)["must"].([]any)
	require.Len(t, must, 1)
	clause := must[0].(map[string]any)
	assert.Equal(t, "kind", clause["key"])
	assert.Equal(t, "table", clause["match"].(map[string]any)["value"])
}

func TestQdrantSearchMissingCollectionIsEmpty(t *testing.T) {
	fake := &fakeQdrant{status: http.StatusNotFound}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"status":{"error":"Collection kb9 doesn't exist"}}`))
	}))
	t.Cleanup(srv.Close)
	_ = fake
	idx, err := NewQdrant(QdrantConfig{URL: srv.URL, Dimensions: 3}, nil)
	require.NoError(t, err)

	results, err := idx.Search(context.Background(), "kb9", []float32{1, 0, 0}, 5, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestQdrantDeleteIDsAndFilter(t *testing.T) {
	fake := &fakeQdrant{}
	idx := newTestQdrant(t, fake)
	ctx := context.Background()

	require.NoError(t, idx.DeleteIDs(ctx, "kb1", []string{"a", "b"}))
	require.NoError(t, idx.DeleteByFilter(ctx, "kb1", Filter{"document_id": "d1"}))

	require.Len(t, fake.calls, 2)
	assert.Equal(t, "/collections/kb1/points/delete", fake.calls[0].Path)
	assert.Len(t, fake.calls[0].Body["points"], 2)
	assert.Contains(t, fake.calls[1].Body, "filter")

	err := idx.DeleteByFilter(ctx, "kb1", nil)
	require.Error(t, err, "empty filter would delete everything")
}

func TestQdrantStats(t *testing.T) {
	fake := &fakeQdrant{responses: map[string]string{
		"GET /collections":     `{"result":{"collections":[{"name":"kb1"},{"name":"kb2"}]}}`,
		"GET /collections/kb1": `{"result":{"points_count":10}}`,
		"GET /collections/kb2": `{"result":{"points_count":5}}`,
	}}
	idx := newTestQdrant(t, fake)

	stats, err := idx.Stats(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 15, stats.TotalVectors)
	assert.Equal(t, 10, stats.VectorsByNamespace["kb1"])
	assert.Equal(t, "qdrant", stats.Backend)

	scoped, err := idx.Stats(context.Background(), "kb1")
	require.NoError(t, err)
	assert.Equal(t, 10, scoped.TotalVectors)
}

func TestQdrantServerErrorIsTransient(t *testing.T) {
	fake := &fakeQdrant{status: http.StatusInternalServerError}
	idx := newTestQdrant(t, fake)

	err := idx.DeleteIDs(context.Background(), "kb1", []string{"a"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeStorageTransient, errors.GetCode(err))
	assert.True(t, errors.IsRetryable(err))
}

func TestQdrantUnreachableBackend(t *testing.T) {
	idx, err := NewQdrant(QdrantConfig{URL: "http://127.0.0.1:1", Dimensions: 3, Timeout: time.Second}, nil)
	require.NoError(t, err)

	err = idx.Initialize(context.Background(), true)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeVectorBackendUnavailable, errors.GetCode(err))
}

func TestQdrantDimensionMismatch(t *testing.T) {
	fake := &fakeQdrant{}
	idx := newTestQdrant(t, fake)

	err := idx.Upsert(context.Background(), "kb1", []Vector{{ID: "a", Values: []float32{1}}})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeDimensionMismatch, errors.GetCode(err))
	assert.Empty(t, fake.calls, "nothing reaches the server")
}
