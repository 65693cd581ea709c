package embed

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/steeltrace/steeltrace/internal/errors"
	"github.com/steeltrace/steeltrace/internal/llm"
)

// Config configures the OpenAI embedder.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	// BatchSize caps texts per API call (default: 32).
	BatchSize int
	// Timeout per batch (default: 60s).
	Timeout time.Duration
}

// DefaultConfig returns the standard embedding settings.
func DefaultConfig() Config {
	return Config{
		Model:      "text-embedding-3-small",
		Dimensions: 1536,
		BatchSize:  32,
		Timeout:    60 * time.Second,
	}
}

// OpenAIEmbedder implements Embedder over the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	cfg    Config
	sink   llm.UsageSink
	logger *slog.Logger
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAI creates the embedder. sink may be nil.
func NewOpenAI(cfg Config, sink llm.UsageSink, logger *slog.Logger) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New(errors.ErrCodeNoCredentials, "no API key configured for embeddings", nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = llm.NullSink{}
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(oc),
		cfg:    cfg,
		sink:   sink,
		logger: logger,
	}, nil
}

func (e *OpenAIEmbedder) Dimensions() int { return e.cfg.Dimensions }
func (e *OpenAIEmbedder) Model() string   { return e.cfg.Model }

// Embed batches texts through the API with retry on transient failures.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) (*Result, error) {
	if len(texts) == 0 {
		return &Result{ModelUsed: e.cfg.Model}, nil
	}

	out := &Result{
		Embeddings: make([][]float32, 0, len(texts)),
		ModelUsed:  e.cfg.Model,
	}

	for start := 0; start < len(texts); start += e.cfg.BatchSize {
		end := start + e.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		vectors, cost, err := e.embedBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		out.Embeddings = append(out.Embeddings, vectors...)
		out.CostUSD += cost
	}

	if len(out.Embeddings) != len(texts) {
		return nil, errors.New(errors.ErrCodeEmbeddingFailed, "embedding count does not match input count", nil)
	}
	return out, nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, batch []string) ([][]float32, float64, error) {
	start := time.Now()

	resp, err := errors.RetryWithResult(ctx, errors.DefaultRetryConfig(), func() (openai.EmbeddingResponse, error) {
		bctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()

		r, err := e.client.CreateEmbeddings(bctx, openai.EmbeddingRequest{
			Input:      batch,
			Model:      openai.EmbeddingModel(e.cfg.Model),
			Dimensions: e.cfg.Dimensions,
		})
		if err != nil {
			return openai.EmbeddingResponse{}, classifyEmbeddingError(err)
		}
		return r, nil
	})
	if err != nil {
		return nil, 0, err
	}
	if len(resp.Data) != len(batch) {
		return nil, 0, errors.New(errors.ErrCodeEmbeddingFailed, "provider returned wrong embedding count", nil)
	}

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}

	cost := llm.EstimateCost(e.cfg.Model, resp.Usage.PromptTokens, 0)
	e.sink.RecordUsage(ctx, llm.Usage{
		Provider:    "openai",
		Model:       e.cfg.Model,
		Operation:   "embedding",
		TokensInput: resp.Usage.PromptTokens,
		CostUSD:     cost,
		LatencyMS:   time.Since(start).Milliseconds(),
	})
	return vectors, cost, nil
}

func classifyEmbeddingError(err error) error {
	var apiErr *openai.APIError
	if stderrors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 401 || apiErr.HTTPStatusCode == 403:
			return errors.New(errors.ErrCodeNoCredentials, "provider rejected credentials", err)
		case apiErr.HTTPStatusCode >= 400 && apiErr.HTTPStatusCode < 429:
			return errors.New(errors.ErrCodeEmbeddingFailed, "embedding request rejected", err)
		}
	}
	// Transport, rate-limit, and 5xx failures are retryable.
	return errors.New(errors.ErrCodeProviderTransient, "embedding request failed", err)
}
