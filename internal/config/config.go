// Package config loads and validates SteelTrace configuration.
//
// Resolution order (later wins):
//  1. Built-in defaults
//  2. Config file (steeltrace.yaml in the working directory, or explicit path)
//  3. Environment variables (STEELTRACE_*)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RetrievalStrategy selects how a knowledge base answers queries.
type RetrievalStrategy string

const (
	StrategySimilarity RetrievalStrategy = "similarity"
	StrategyMMR        RetrievalStrategy = "mmr"
	StrategyHybrid     RetrievalStrategy = "hybrid"
	StrategyReranking  RetrievalStrategy = "reranking"
)

// Config is the complete SteelTrace configuration.
type Config struct {
	DataDir    string           `yaml:"data_dir" json:"data_dir"`
	KnowledgeBase KBConfig      `yaml:"knowledge_base" json:"knowledge_base"`
	Vision     VisionConfig     `yaml:"vision" json:"vision"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	VectorIndex VectorIndexConfig `yaml:"vector_index" json:"vector_index"`
	Providers  ProvidersConfig  `yaml:"providers" json:"providers"`
	Takeoff    TakeoffConfig    `yaml:"takeoff" json:"takeoff"`
	Drawing    DrawingConfig    `yaml:"drawing" json:"drawing"`
	Watch      WatchConfig      `yaml:"watch" json:"watch"`
	LogLevel   string           `yaml:"log_level" json:"log_level"`
}

// KBConfig is the per-knowledge-base policy.
// These are defaults; each knowledge base row may override them.
type KBConfig struct {
	// ChunkSize is the target chunk size in tokens (default: 1000).
	ChunkSize int `yaml:"chunk_size" json:"chunk_size"`
	// ChunkOverlap is the overlap between adjacent text chunks in tokens (default: 200).
	ChunkOverlap int `yaml:"chunk_overlap" json:"chunk_overlap"`
	// SimilarityTopK is the number of results returned by a query (default: 5).
	SimilarityTopK int `yaml:"similarity_top_k" json:"similarity_top_k"`
	// MMRDiversityBias balances relevance vs diversity for MMR (0-1, default: 0.3).
	MMRDiversityBias float64 `yaml:"mmr_diversity_bias" json:"mmr_diversity_bias"`
	// RetrievalStrategy selects the query path (default: hybrid).
	RetrievalStrategy RetrievalStrategy `yaml:"retrieval_strategy" json:"retrieval_strategy"`
	// RerankTopK is how many candidates are fetched when reranking (default: 20).
	RerankTopK int `yaml:"rerank_top_k" json:"rerank_top_k"`
}

// VisionConfig configures rasterization for vision models.
type VisionConfig struct {
	// DPI for page rasterization (default: 300).
	DPI int `yaml:"dpi" json:"dpi"`
	// MaxWidth/MaxHeight clamp page images to provider limits (default: 4000).
	MaxWidth  int `yaml:"max_width" json:"max_width"`
	MaxHeight int `yaml:"max_height" json:"max_height"`
	// Format is "jpeg" or "png" (default: jpeg).
	Format string `yaml:"format" json:"format"`
	// JPEGQuality 1-100 (default: 85).
	JPEGQuality int `yaml:"jpeg_quality" json:"jpeg_quality"`
	// MaxPages caps pages per unified extraction (default: 10).
	MaxPages int `yaml:"max_pages" json:"max_pages"`
}

// SearchConfig configures hybrid search fusion.
type SearchConfig struct {
	// RRFConstant is the RRF smoothing parameter k (default: 60).
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`
	// VectorWeight/KeywordWeight are used by weighted fusion; must sum to 1.
	VectorWeight  float64 `yaml:"vector_weight" json:"vector_weight"`
	KeywordWeight float64 `yaml:"keyword_weight" json:"keyword_weight"`
	// Reranker selects the reranking policy: simple, cross_encoder, llm, none.
	Reranker string `yaml:"reranker" json:"reranker"`
}

// EmbeddingsConfig configures the embedding service.
type EmbeddingsConfig struct {
	Model     string        `yaml:"model" json:"model"`
	Dimensions int          `yaml:"dimensions" json:"dimensions"`
	BatchSize int           `yaml:"batch_size" json:"batch_size"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
	CacheSize int           `yaml:"cache_size" json:"cache_size"`
}

// VectorIndexConfig selects and configures the vector backend.
type VectorIndexConfig struct {
	// Backend is "hnsw" (embedded, default) or "qdrant".
	Backend string `yaml:"backend" json:"backend"`
	// Metric is "cosine", "euclidean", or "dot" (default: cosine).
	Metric string `yaml:"metric" json:"metric"`
	// QdrantURL is the Qdrant HTTP endpoint (qdrant backend only).
	QdrantURL string `yaml:"qdrant_url" json:"qdrant_url"`
	// QdrantAPIKey authenticates against Qdrant (qdrant backend only).
	QdrantAPIKey string `yaml:"qdrant_api_key" json:"qdrant_api_key"`
	// Timeout per vector operation (default: 30s).
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// ProvidersConfig holds provider credentials and routing preferences.
type ProvidersConfig struct {
	// APIKeys maps provider name -> API key. Keys may also come from
	// env vars (OPENAI_API_KEY, ANTHROPIC_API_KEY).
	APIKeys map[string]string `yaml:"api_keys" json:"api_keys"`
	// BaseURLs optionally override provider endpoints.
	BaseURLs map[string]string `yaml:"base_urls" json:"base_urls"`
	// LLMTimeout per vision/LLM call (default: 180s).
	LLMTimeout time.Duration `yaml:"llm_timeout" json:"llm_timeout"`
}

// TakeoffConfig configures the chunked takeoff extractor.
type TakeoffConfig struct {
	// PageDelay is the pause between page calls for rate limiting (default: 2s).
	PageDelay time.Duration `yaml:"page_delay" json:"page_delay"`
	// MaxTokens per page response (default: 8000).
	MaxTokens int `yaml:"max_tokens" json:"max_tokens"`
	// MinConfidence filters extracted elements (default: 0.0, keep all).
	MinConfidence float64 `yaml:"min_confidence" json:"min_confidence"`
}

// DrawingConfig configures the vector-geometric pipeline.
type DrawingConfig struct {
	// MinLineLengthMM / MaxLineLengthMM bound recovered line segments.
	MinLineLengthMM float64 `yaml:"min_line_length_mm" json:"min_line_length_mm"`
	MaxLineLengthMM float64 `yaml:"max_line_length_mm" json:"max_line_length_mm"`
	// MinStrokeWidth / MaxStrokeWidth in points (default: 0.5-6).
	MinStrokeWidth float64 `yaml:"min_stroke_width" json:"min_stroke_width"`
	MaxStrokeWidth float64 `yaml:"max_stroke_width" json:"max_stroke_width"`
	// NearThresholdMM is the text-to-shape association distance (default: 10).
	NearThresholdMM float64 `yaml:"near_threshold_mm" json:"near_threshold_mm"`
	// MinElementConfidence filters detected elements (default: 0.3).
	MinElementConfidence float64 `yaml:"min_element_confidence" json:"min_element_confidence"`
	// IncludeDashed includes non-solid strokes (default: false).
	IncludeDashed bool `yaml:"include_dashed" json:"include_dashed"`
}

// WatchConfig configures the optional drop-folder watcher.
type WatchConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Dir      string `yaml:"dir" json:"dir"`
	Debounce string `yaml:"debounce" json:"debounce"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir: defaultDataDir(),
		KnowledgeBase: KBConfig{
			ChunkSize:         1000,
			ChunkOverlap:      200,
			SimilarityTopK:    5,
			MMRDiversityBias:  0.3,
			RetrievalStrategy: StrategyHybrid,
			RerankTopK:        20,
		},
		Vision: VisionConfig{
			DPI:         300,
			MaxWidth:    4000,
			MaxHeight:   4000,
			Format:      "jpeg",
			JPEGQuality: 85,
			MaxPages:    10,
		},
		Search: SearchConfig{
			RRFConstant:   60,
			VectorWeight:  0.6,
			KeywordWeight: 0.4,
			Reranker:      "simple",
		},
		Embeddings: EmbeddingsConfig{
			Model:      "text-embedding-3-small",
			Dimensions: 1536,
			BatchSize:  32,
			Timeout:    60 * time.Second,
			CacheSize:  10000,
		},
		VectorIndex: VectorIndexConfig{
			Backend: "hnsw",
			Metric:  "cosine",
			Timeout: 30 * time.Second,
		},
		Providers: ProvidersConfig{
			APIKeys:    map[string]string{},
			BaseURLs:   map[string]string{},
			LLMTimeout: 180 * time.Second,
		},
		Takeoff: TakeoffConfig{
			PageDelay: 2 * time.Second,
			MaxTokens: 8000,
		},
		Drawing: DrawingConfig{
			MinLineLengthMM:      0.5,
			MaxLineLengthMM:      500,
			MinStrokeWidth:       0.5,
			MaxStrokeWidth:       6,
			NearThresholdMM:      10,
			MinElementConfidence: 0.3,
		},
		Watch: WatchConfig{
			Enabled:  false,
			Debounce: "500ms",
		},
		LogLevel: "info",
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".steeltrace")
	}
	return filepath.Join(home, ".steeltrace")
}

// Load reads configuration from the given path (or steeltrace.yaml when
// empty), applies environment overrides, and validates the result.
// A missing file is not an error: defaults + env are used.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = "steeltrace.yaml"
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Defaults only
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides config fields from STEELTRACE_* environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("STEELTRACE_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("STEELTRACE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("STEELTRACE_VECTOR_BACKEND"); v != "" {
		c.VectorIndex.Backend = v
	}
	if v := os.Getenv("STEELTRACE_QDRANT_URL"); v != "" {
		c.VectorIndex.QdrantURL = v
	}
	if v := os.Getenv("STEELTRACE_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.KnowledgeBase.ChunkSize = n
		}
	}
	if v := os.Getenv("STEELTRACE_TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.KnowledgeBase.SimilarityTopK = n
		}
	}
	// Provider keys follow each provider's conventional variable.
	for provider, env := range map[string]string{
		"openai":    "OPENAI_API_KEY",
		"anthropic": "ANTHROPIC_API_KEY",
	} {
		if v := os.Getenv(env); v != "" {
			if c.Providers.APIKeys == nil {
				c.Providers.APIKeys = map[string]string{}
			}
			if _, set := c.Providers.APIKeys[provider]; !set {
				c.Providers.APIKeys[provider] = v
			}
		}
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.KnowledgeBase.ChunkSize <= 0 {
		return fmt.Errorf("knowledge_base.chunk_size must be positive, got %d", c.KnowledgeBase.ChunkSize)
	}
	if c.KnowledgeBase.ChunkOverlap < 0 || c.KnowledgeBase.ChunkOverlap >= c.KnowledgeBase.ChunkSize {
		return fmt.Errorf("knowledge_base.chunk_overlap must be in [0, chunk_size), got %d", c.KnowledgeBase.ChunkOverlap)
	}
	if c.KnowledgeBase.MMRDiversityBias < 0 || c.KnowledgeBase.MMRDiversityBias > 1 {
		return fmt.Errorf("knowledge_base.mmr_diversity_bias must be in [0,1], got %f", c.KnowledgeBase.MMRDiversityBias)
	}
	switch c.KnowledgeBase.RetrievalStrategy {
	case StrategySimilarity, StrategyMMR, StrategyHybrid, StrategyReranking:
	default:
		return fmt.Errorf("unknown retrieval_strategy %q", c.KnowledgeBase.RetrievalStrategy)
	}
	if sum := c.Search.VectorWeight + c.Search.KeywordWeight; sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("search weights must sum to 1.0, got %f", sum)
	}
	switch c.VectorIndex.Backend {
	case "hnsw", "qdrant":
	default:
		return fmt.Errorf("unknown vector backend %q (use hnsw or qdrant)", c.VectorIndex.Backend)
	}
	switch c.VectorIndex.Metric {
	case "cosine", "euclidean", "dot":
	default:
		return fmt.Errorf("unknown distance metric %q", c.VectorIndex.Metric)
	}
	if c.VectorIndex.Backend == "qdrant" && c.VectorIndex.QdrantURL == "" {
		return fmt.Errorf("vector_index.qdrant_url is required for the qdrant backend")
	}
	if c.Vision.JPEGQuality < 1 || c.Vision.JPEGQuality > 100 {
		return fmt.Errorf("vision.jpeg_quality must be in [1,100], got %d", c.Vision.JPEGQuality)
	}
	switch strings.ToLower(c.Vision.Format) {
	case "jpeg", "png":
	default:
		return fmt.Errorf("vision.format must be jpeg or png, got %q", c.Vision.Format)
	}
	return nil
}

// APIKey returns the configured key for a provider, or empty string.
func (c *Config) APIKey(provider string) string {
	return c.Providers.APIKeys[strings.ToLower(provider)]
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
