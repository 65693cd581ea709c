package vectorindex

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/coder/hnsw"
	"github.com/gofrs/flock"

	"github.com/steeltrace/steeltrace/internal/errors"
)

// HNSWConfig configures the embedded backend.
type HNSWConfig struct {
	// Dir holds one graph plus one metadata file per namespace.
	Dir        string
	Dimensions int
	// Metric is "cosine" or "euclidean" (default: cosine).
	Metric   string
	M        int
	EfSearch int
}

// hnswNamespace is one knowledge base's graph plus its id mappings and
// payloads. Deletion is lazy: removed ids leave orphan nodes in the
// graph that are filtered out of search results.
type hnswNamespace struct {
	graph   *hnsw.Graph[uint64]
	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64
	meta    map[string]map[string]any
	vectors map[string][]float32
}

// hnswManifest is the gob-persisted state of one namespace.
type hnswManifest struct {
	IDMap   map[string]uint64
	NextKey uint64
	Meta    map[string]map[string]any
	Vectors map[string][]float32
}

// HNSWIndex implements Index with per-namespace coder/hnsw graphs
// persisted under a directory.
type HNSWIndex struct {
	mu         sync.RWMutex
	cfg        HNSWConfig
	namespaces map[string]*hnswNamespace
	logger     *slog.Logger
	closed     bool
}

var _ Index = (*HNSWIndex)(nil)

// NewHNSW creates the embedded backend. Call Initialize before use.
func NewHNSW(cfg HNSWConfig, logger *slog.Logger) (*HNSWIndex, error) {
	if cfg.Dimensions <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "vector dimensions must be positive", nil)
	}
	if cfg.Metric == "" {
		cfg.Metric = "cosine"
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HNSWIndex{
		cfg:        cfg,
		namespaces: make(map[string]*hnswNamespace),
		logger:     logger,
	}, nil
}

func (x *HNSWIndex) newGraph() *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	switch x.cfg.Metric {
	case "euclidean":
		g.Distance = hnsw.EuclideanDistance
	default:
		g.Distance = hnsw.CosineDistance
	}
	g.M = x.cfg.M
	g.EfSearch = x.cfg.EfSearch
	g.Ml = 0.25
	return g
}

// Initialize loads persisted namespaces from disk. With createIfAbsent
// false, a missing directory is an error.
func (x *HNSWIndex) Initialize(_ context.Context, createIfAbsent bool) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return errors.New(errors.ErrCodeInternal, "vector index is closed", nil)
	}

	if _, err := os.Stat(x.cfg.Dir); os.IsNotExist(err) {
		if !createIfAbsent {
			return errors.New(errors.ErrCodeVectorBackendUnavailable,
				fmt.Sprintf("vector index directory %s does not exist", x.cfg.Dir), err)
		}
		if err := os.MkdirAll(x.cfg.Dir, 0o755); err != nil {
			return errors.New(errors.ErrCodeStorageFailed, "failed to create vector index directory", err)
		}
		return nil
	}

	entries, err := os.ReadDir(x.cfg.Dir)
	if err != nil {
		return errors.New(errors.ErrCodeStorageFailed, "failed to read vector index directory", err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".hnsw") {
			continue
		}
		namespace := strings.TrimSuffix(name, ".hnsw")
		ns, err := x.loadNamespace(namespace)
		if err != nil {
			return err
		}
		x.namespaces[namespace] = ns
	}
	x.logger.Debug("vector index loaded",
		slog.String("dir", x.cfg.Dir),
		slog.Int("namespaces", len(x.namespaces)))
	return nil
}

// Upsert inserts or replaces vectors by id.
func (x *HNSWIndex) Upsert(ctx context.Context, namespace string, vectors []Vector) error {
	if len(vectors) == 0 {
		return nil
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return errors.New(errors.ErrCodeInternal, "vector index is closed", nil)
	}

	for _, v := range vectors {
		if len(v.Values) != x.cfg.Dimensions {
			return errors.New(errors.ErrCodeDimensionMismatch,
				fmt.Sprintf("expected %d dimensions, got %d", x.cfg.Dimensions, len(v.Values)), nil)
		}
	}

	ns := x.namespaces[namespace]
	if ns == nil {
		ns = &hnswNamespace{
			graph:   x.newGraph(),
			idMap:   make(map[string]uint64),
			keyMap:  make(map[uint64]string),
			meta:    make(map[string]map[string]any),
			vectors: make(map[string][]float32),
		}
		x.namespaces[namespace] = ns
	}

	for start := 0; start < len(vectors); start += MaxUpsertBatch {
		if err := ctx.Err(); err != nil {
			return errors.Cancelled(err)
		}
		end := start + MaxUpsertBatch
		if end > len(vectors) {
			end = len(vectors)
		}
		for _, v := range vectors[start:end] {
			// Replacing an id orphans the old graph node instead of
			// deleting it; deleting the last node corrupts the graph.
			if oldKey, exists := ns.idMap[v.ID]; exists {
				delete(ns.keyMap, oldKey)
			}
			key := ns.nextKey
			ns.nextKey++

			vec := make([]float32, len(v.Values))
			copy(vec, v.Values)
			if x.cfg.Metric != "euclidean" {
				normalizeInPlace(vec)
			}
			ns.graph.Add(hnsw.MakeNode(key, vec))
			ns.idMap[v.ID] = key
			ns.keyMap[key] = v.ID
			ns.meta[v.ID] = SanitizeMetadata(v.Metadata)
			ns.vectors[v.ID] = vec
		}
	}
	return x.saveNamespaceLocked(namespace, ns)
}

// Search returns the topK nearest live vectors matching the filter.
func (x *HNSWIndex) Search(_ context.Context, namespace string, query []float32, topK int, filter Filter) ([]SearchResult, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed {
		return nil, errors.New(errors.ErrCodeInternal, "vector index is closed", nil)
	}
	if len(query) != x.cfg.Dimensions {
		return nil, errors.New(errors.ErrCodeDimensionMismatch,
			fmt.Sprintf("expected %d dimensions, got %d", x.cfg.Dimensions, len(query)), nil)
	}
	if topK <= 0 {
		topK = 10
	}

	ns := x.namespaces[namespace]
	if ns == nil || ns.graph.Len() == 0 {
		return []SearchResult{}, nil
	}

	q := make([]float32, len(query))
	copy(q, query)
	if x.cfg.Metric != "euclidean" {
		normalizeInPlace(q)
	}

	// Over-fetch to survive orphaned nodes and filter misses.
	fetch := topK * 4
	if len(filter) == 0 {
		fetch = topK * 2
	}
	if fetch > ns.graph.Len() {
		fetch = ns.graph.Len()
	}

	nodes := ns.graph.Search(q, fetch)
	results := make([]SearchResult, 0, topK)
	for _, node := range nodes {
		id, live := ns.keyMap[node.Key]
		if !live {
			continue
		}
		meta := ns.meta[id]
		if len(filter) > 0 && !matchesFilter(meta, filter) {
			continue
		}
		dist := ns.graph.Distance(q, node.Value)
		results = append(results, SearchResult{
			ID:       id,
			Score:    distanceToScore(dist, x.cfg.Metric),
			Metadata: meta,
		})
		if len(results) == topK {
			break
		}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results, nil
}

// DeleteIDs removes vectors lazily: ids leave the mappings, orphan
// nodes stay in the graph.
func (x *HNSWIndex) DeleteIDs(_ context.Context, namespace string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	ns := x.namespaces[namespace]
	if ns == nil {
		return nil
	}
	for _, id := range ids {
		if key, exists := ns.idMap[id]; exists {
			delete(ns.keyMap, key)
			delete(ns.idMap, id)
			delete(ns.meta, id)
			delete(ns.vectors, id)
		}
	}
	return x.saveNamespaceLocked(namespace, ns)
}

// DeleteByFilter removes every vector whose metadata matches.
func (x *HNSWIndex) DeleteByFilter(ctx context.Context, namespace string, filter Filter) error {
	x.mu.RLock()
	ns := x.namespaces[namespace]
	var ids []string
	if ns != nil {
		for id, meta := range ns.meta {
			if matchesFilter(meta, filter) {
				ids = append(ids, id)
			}
		}
	}
	x.mu.RUnlock()
	return x.DeleteIDs(ctx, namespace, ids)
}

// DeleteNamespace drops the namespace and its on-disk files.
func (x *HNSWIndex) DeleteNamespace(_ context.Context, namespace string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.namespaces, namespace)
	for _, path := range []string{x.graphPath(namespace), x.graphPath(namespace) + ".meta"} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return errors.New(errors.ErrCodeStorageFailed, "failed to remove namespace files", err)
		}
	}
	return nil
}

// Stats reports live vector counts, excluding orphaned graph nodes.
func (x *HNSWIndex) Stats(_ context.Context, namespace string) (*Stats, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	stats := &Stats{
		VectorsByNamespace: make(map[string]int),
		Dimensions:         x.cfg.Dimensions,
		Backend:            "hnsw",
	}
	for name, ns := range x.namespaces {
		if namespace != "" && name != namespace {
			continue
		}
		stats.VectorsByNamespace[name] = len(ns.idMap)
		stats.TotalVectors += len(ns.idMap)
	}
	return stats, nil
}

// Close marks the index unusable. State is already persisted per write.
func (x *HNSWIndex) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.closed = true
	x.namespaces = nil
	return nil
}

func (x *HNSWIndex) graphPath(namespace string) string {
	return filepath.Join(x.cfg.Dir, namespace+".hnsw")
}

// saveNamespaceLocked persists one namespace with temp-file-and-rename
// writes. A file lock serializes writers across processes.
func (x *HNSWIndex) saveNamespaceLocked(namespace string, ns *hnswNamespace) error {
	if err := os.MkdirAll(x.cfg.Dir, 0o755); err != nil {
		return errors.New(errors.ErrCodeStorageFailed, "failed to create vector index directory", err)
	}

	lock := flock.New(filepath.Join(x.cfg.Dir, ".lock"))
	if err := lock.Lock(); err != nil {
		return errors.New(errors.ErrCodeStorageTransient, "failed to lock vector index directory", err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			x.logger.Warn("failed to release vector index lock", slog.String("error", err.Error()))
		}
	}()

	path := x.graphPath(namespace)
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return errors.New(errors.ErrCodeStorageFailed, "failed to create graph file", err)
	}
	if err := ns.graph.Export(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.New(errors.ErrCodeStorageFailed, "failed to export graph", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return errors.New(errors.ErrCodeStorageFailed, "failed to close graph file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.New(errors.ErrCodeStorageFailed, "failed to rename graph file", err)
	}

	metaPath := path + ".meta"
	tmpMeta := metaPath + ".tmp"
	mf, err := os.Create(tmpMeta)
	if err != nil {
		return errors.New(errors.ErrCodeStorageFailed, "failed to create graph metadata file", err)
	}
	manifest := hnswManifest{
		IDMap:   ns.idMap,
		NextKey: ns.nextKey,
		Meta:    ns.meta,
		Vectors: ns.vectors,
	}
	if err := gob.NewEncoder(mf).Encode(manifest); err != nil {
		mf.Close()
		os.Remove(tmpMeta)
		return errors.New(errors.ErrCodeStorageFailed, "failed to encode graph metadata", err)
	}
	if err := mf.Close(); err != nil {
		os.Remove(tmpMeta)
		return errors.New(errors.ErrCodeStorageFailed, "failed to close graph metadata file", err)
	}
	if err := os.Rename(tmpMeta, metaPath); err != nil {
		os.Remove(tmpMeta)
		return errors.New(errors.ErrCodeStorageFailed, "failed to rename graph metadata file", err)
	}
	return nil
}

func (x *HNSWIndex) loadNamespace(namespace string) (*hnswNamespace, error) {
	path := x.graphPath(namespace)

	mf, err := os.Open(path + ".meta")
	if err != nil {
		return nil, errors.New(errors.ErrCodeStorageFailed, "failed to open graph metadata", err)
	}
	defer mf.Close()
	var manifest hnswManifest
	if err := gob.NewDecoder(mf).Decode(&manifest); err != nil {
		return nil, errors.New(errors.ErrCodeStorageFailed, "failed to decode graph metadata", err)
	}

	ns := &hnswNamespace{
		graph:   x.newGraph(),
		idMap:   manifest.IDMap,
		keyMap:  make(map[uint64]string, len(manifest.IDMap)),
		nextKey: manifest.NextKey,
		meta:    manifest.Meta,
		vectors: manifest.Vectors,
	}
	if ns.meta == nil {
		ns.meta = make(map[string]map[string]any)
	}
	if ns.vectors == nil {
		ns.vectors = make(map[string][]float32)
	}
	for id, key := range ns.idMap {
		ns.keyMap[key] = id
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(errors.ErrCodeStorageFailed, "failed to open graph file", err)
	}
	defer f.Close()
	// Import needs an io.ByteReader.
	if err := ns.graph.Import(bufio.NewReader(f)); err != nil {
		return nil, errors.New(errors.ErrCodeStorageFailed, "failed to import graph", err)
	}
	return ns, nil
}

func normalizeInPlace(v []float32) {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}

// distanceToScore maps a distance into a similarity in [0, 1].
func distanceToScore(distance float32, metric string) float32 {
	switch metric {
	case "euclidean":
		return 1.0 / (1.0 + distance)
	default:
		// Cosine distance ranges 0 (identical) to 2 (opposite).
		return 1.0 - distance/2.0
	}
}
