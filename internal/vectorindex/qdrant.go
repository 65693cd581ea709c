package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/steeltrace/steeltrace/internal/errors"
)

// QdrantConfig configures the remote backend. One Qdrant collection is
// created per namespace.
type QdrantConfig struct {
	URL        string
	APIKey     string
	Dimensions int
	// Metric is "cosine", "euclidean", or "dot" (default: cosine).
	Metric  string
	Timeout time.Duration
}

// QdrantIndex implements Index over the Qdrant HTTP API.
type QdrantIndex struct {
	cfg    QdrantConfig
	http   *http.Client
	logger *slog.Logger

	mu          sync.Mutex
	collections map[string]bool
}

var _ Index = (*QdrantIndex)(nil)

// NewQdrant creates the remote backend. Call Initialize before use.
func NewQdrant(cfg QdrantConfig, logger *slog.Logger) (*QdrantIndex, error) {
	if cfg.URL == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "qdrant URL is required", nil)
	}
	if cfg.Dimensions <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "vector dimensions must be positive", nil)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QdrantIndex{
		cfg:         cfg,
		http:        &http.Client{Timeout: cfg.Timeout},
		logger:      logger,
		collections: make(map[string]bool),
	}, nil
}

func (q *QdrantIndex) distanceName() string {
	switch q.cfg.Metric {
	case "euclidean":
		return "Euclid"
	case "dot":
		return "Dot"
	default:
		return "Cosine"
	}
}

// Initialize verifies the server is reachable. Collections are created
// per namespace on first upsert.
func (q *QdrantIndex) Initialize(ctx context.Context, createIfAbsent bool) error {
	var resp struct {
		Result struct {
			Collections []struct {
				Name string `json:"name"`
			} `json:"collections"`
		} `json:"result"`
	}
	if err := q.do(ctx, http.MethodGet, "/collections", nil, &resp); err != nil {
		return err
	}
	q.mu.Lock()
	for _, c := range resp.Result.Collections {
		q.collections[c.Name] = true
	}
	known := len(q.collections)
	q.mu.Unlock()
	_ = createIfAbsent
	q.logger.Debug("qdrant reachable", slog.Int("collections", known))
	return nil
}

func (q *QdrantIndex) ensureCollection(ctx context.Context, namespace string) error {
	q.mu.Lock()
	exists := q.collections[namespace]
	q.mu.Unlock()
	if exists {
		return nil
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     q.cfg.Dimensions,
			"distance": q.distanceName(),
		},
	}
	err := q.do(ctx, http.MethodPut, "/collections/"+namespace, body, nil)
	// Another writer may have created it concurrently.
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return err
	}
	q.mu.Lock()
	q.collections[namespace] = true
	q.mu.Unlock()
	return nil
}

// Upsert writes vectors in batches of MaxUpsertBatch, waiting for each
// batch to be applied.
func (q *QdrantIndex) Upsert(ctx context.Context, namespace string, vectors []Vector) error {
	if len(vectors) == 0 {
		return nil
	}
	for _, v := range vectors {
		if len(v.Values) != q.cfg.Dimensions {
			return errors.New(errors.ErrCodeDimensionMismatch,
				fmt.Sprintf("expected %d dimensions, got %d", q.cfg.Dimensions, len(v.Values)), nil)
		}
	}
	if err := q.ensureCollection(ctx, namespace); err != nil {
		return err
	}

	for start := 0; start < len(vectors); start += MaxUpsertBatch {
		end := start + MaxUpsertBatch
		if end > len(vectors) {
			end = len(vectors)
		}
		points := make([]map[string]any, 0, end-start)
		for _, v := range vectors[start:end] {
			points = append(points, map[string]any{
				"id":      v.ID,
				"vector":  v.Values,
				"payload": SanitizeMetadata(v.Metadata),
			})
		}
		body := map[string]any{"points": points}
		if err := q.do(ctx, http.MethodPut, "/collections/"+namespace+"/points?wait=true", body, nil); err != nil {
			return err
		}
	}
	return nil
}

// Search runs a scored nearest-neighbor query with an optional
// exact-match payload filter.
func (q *QdrantIndex) Search(ctx context.Context, namespace string, query []float32, topK int, filter Filter) ([]SearchResult, error) {
	if len(query) != q.cfg.Dimensions {
		return nil, errors.New(errors.ErrCodeDimensionMismatch,
			fmt.Sprintf("expected %d dimensions, got %d", q.cfg.Dimensions, len(query)), nil)
	}
	if topK <= 0 {
		topK = 10
	}

	body := map[string]any{
		"vector":       query,
		"limit":        topK,
		"with_payload": true,
	}
	if f := qdrantFilter(filter); f != nil {
		body["filter"] = f
	}

	var resp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float32        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	err := q.do(ctx, http.MethodPost, "/collections/"+namespace+"/points/search", body, &resp)
	if err != nil {
		// A namespace that never received vectors has no collection.
		if strings.Contains(err.Error(), "doesn't exist") || strings.Contains(err.Error(), "not found") {
			return []SearchResult{}, nil
		}
		return nil, err
	}

	results := make([]SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		results = append(results, SearchResult{
			ID:       fmt.Sprintf("%v", r.ID),
			Score:    r.Score,
			Metadata: r.Payload,
		})
	}
	return results, nil
}

// DeleteIDs removes the given points.
func (q *QdrantIndex) DeleteIDs(ctx context.Context, namespace string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	body := map[string]any{"points": ids}
	return q.do(ctx, http.MethodPost, "/collections/"+namespace+"/points/delete?wait=true", body, nil)
}

// DeleteByFilter removes every point whose payload matches.
func (q *QdrantIndex) DeleteByFilter(ctx context.Context, namespace string, filter Filter) error {
	f := qdrantFilter(filter)
	if f == nil {
		return errors.New(errors.ErrCodeInvalidInput, "delete-by-filter requires a non-empty filter", nil)
	}
	body := map[string]any{"filter": f}
	return q.do(ctx, http.MethodPost, "/collections/"+namespace+"/points/delete?wait=true", body, nil)
}

// DeleteNamespace drops the collection.
func (q *QdrantIndex) DeleteNamespace(ctx context.Context, namespace string) error {
	if err := q.do(ctx, http.MethodDelete, "/collections/"+namespace, nil, nil); err != nil {
		if strings.Contains(err.Error(), "doesn't exist") || strings.Contains(err.Error(), "not found") {
			return nil
		}
		return err
	}
	q.mu.Lock()
	delete(q.collections, namespace)
	q.mu.Unlock()
	return nil
}

// Stats reports point counts per collection.
func (q *QdrantIndex) Stats(ctx context.Context, namespace string) (*Stats, error) {
	stats := &Stats{
		VectorsByNamespace: make(map[string]int),
		Dimensions:         q.cfg.Dimensions,
		Backend:            "qdrant",
	}

	names := []string{namespace}
	if namespace == "" {
		var list struct {
			Result struct {
				Collections []struct {
					Name string `json:"name"`
				} `json:"collections"`
			} `json:"result"`
		}
		if err := q.do(ctx, http.MethodGet, "/collections", nil, &list); err != nil {
			return nil, err
		}
		names = names[:0]
		for _, c := range list.Result.Collections {
			names = append(names, c.Name)
		}
	}

	for _, name := range names {
		var resp struct {
			Result struct {
				PointsCount int `json:"points_count"`
			} `json:"result"`
		}
		if err := q.do(ctx, http.MethodGet, "/collections/"+name, nil, &resp); err != nil {
			return nil, err
		}
		stats.VectorsByNamespace[name] = resp.Result.PointsCount
		stats.TotalVectors += resp.Result.PointsCount
	}
	return stats, nil
}

// Close is a no-op; the HTTP client holds no persistent connections
// worth tearing down explicitly.
func (q *QdrantIndex) Close() error { return nil }

// qdrantFilter converts an exact-match filter into Qdrant's must
// clause form.
func qdrantFilter(filter Filter) map[string]any {
	if len(filter) == 0 {
		return nil
	}
	must := make([]map[string]any, 0, len(filter))
	for k, v := range filter {
		must = append(must, map[string]any{
			"key":   k,
			"match": map[string]any{"value": v},
		})
	}
	return map[string]any{"must": must}
}

// do issues one JSON request and decodes the response into out.
func (q *QdrantIndex) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.New(errors.ErrCodeInternal, "failed to encode qdrant request", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(q.cfg.URL, "/")+path, reader)
	if err != nil {
		return errors.New(errors.ErrCodeInternal, "failed to build qdrant request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if q.cfg.APIKey != "" {
		req.Header.Set("api-key", q.cfg.APIKey)
	}

	resp, err := q.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return errors.Cancelled(ctx.Err())
		}
		return errors.New(errors.ErrCodeVectorBackendUnavailable, "qdrant request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.New(errors.ErrCodeVectorBackendUnavailable, "failed to read qdrant response", err)
	}
	if resp.StatusCode >= 400 {
		msg := extractQdrantError(data)
		code := errors.ErrCodeStorageFailed
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			code = errors.ErrCodeStorageTransient
		}
		return errors.New(code, fmt.Sprintf("qdrant returned %d: %s", resp.StatusCode, msg), nil)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return errors.New(errors.ErrCodeInternal, "failed to decode qdrant response", err)
		}
	}
	return nil
}

func extractQdrantError(data []byte) string {
	var e struct {
		Status struct {
			Error string `json:"error"`
		} `json:"status"`
	}
	if json.Unmarshal(data, &e) == nil && e.Status.Error != "" {
		return e.Status.Error
	}
	s := string(data)
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
