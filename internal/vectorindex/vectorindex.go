package vectorindex

import (
	"log/slog"
	"path/filepath"

	"github.com/steeltrace/steeltrace/internal/config"
	"github.com/steeltrace/steeltrace/internal/errors"
)

// New builds the configured backend. The embedded backend stores its
// graphs under dataDir/vectors.
func New(cfg config.VectorIndexConfig, dataDir string, dimensions int, logger *slog.Logger) (Index, error) {
	switch cfg.Backend {
	case "", "hnsw":
		return NewHNSW(HNSWConfig{
			Dir:        filepath.Join(dataDir, "vectors"),
			Dimensions: dimensions,
			Metric:     cfg.Metric,
		}, logger)
	case "qdrant":
		return NewQdrant(QdrantConfig{
			URL:        cfg.QdrantURL,
			APIKey:     cfg.QdrantAPIKey,
			Dimensions: dimensions,
			Metric:     cfg.Metric,
			Timeout:    cfg.Timeout,
		}, logger)
	default:
		return nil, errors.New(errors.ErrCodeInvalidInput, "unknown vector backend "+cfg.Backend, nil)
	}
}
