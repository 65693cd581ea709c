package extract

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/steeltrace/steeltrace/internal/errors"
	"github.com/steeltrace/steeltrace/internal/llm"
	"github.com/steeltrace/steeltrace/internal/prompt"
	"github.com/steeltrace/steeltrace/internal/raster"
)

// ClientFactory builds a completion client for a resolved provider.
type ClientFactory func(provider, apiKey, baseURL string, logger *slog.Logger) (llm.Client, error)

// DefaultClientFactory serves every provider through the
// OpenAI-compatible client; non-OpenAI providers are expected behind a
// compatible gateway endpoint.
func DefaultClientFactory(provider, apiKey, baseURL string, logger *slog.Logger) (llm.Client, error) {
	return llm.NewOpenAIClient(apiKey, baseURL, logger)
}

// UnifiedConfig controls the unified extractor.
type UnifiedConfig struct {
	// MaxPages caps pages per run (default: 10).
	MaxPages int
	// MaxTokens per page call (default: 4000).
	MaxTokens int
	// Temperature for extraction calls (default: 0.1).
	Temperature float32
	// PageParallelism bounds concurrent page calls (default: 4).
	PageParallelism int
	// BaseURLs optionally override provider endpoints.
	BaseURLs map[string]string
}

// DefaultUnifiedConfig returns the standard extractor settings.
func DefaultUnifiedConfig() UnifiedConfig {
	return UnifiedConfig{
		MaxPages:        10,
		MaxTokens:       4000,
		Temperature:     0.1,
		PageParallelism: 4,
	}
}

// PageRenderer turns a document into sized page images.
// *raster.Rasterizer satisfies it.
type PageRenderer interface {
	Render(ctx context.Context, path string, firstPage, lastPage int) ([]raster.PageImage, error)
}

// UnifiedRequest describes one extraction run.
type UnifiedRequest struct {
	Path string
	// Tasks to combine into the single per-page call.
	Tasks []prompt.Task
	// DocType selects the specialized prompt fragment and, when Tasks is
	// empty, the recommended task list.
	DocType string
	// Priority balances model cost against quality.
	Priority llm.Priority
	// Org scopes provider-key selection.
	Org string
	// FirstPage/LastPage bound the page range (1-indexed; 0 = open).
	FirstPage int
	LastPage  int
}

// UnifiedExtractor runs all requested extraction tasks in one vision
// call per page and merges the page results deterministically.
type UnifiedExtractor struct {
	cfg        UnifiedConfig
	rasterizer PageRenderer
	router     llm.Router
	resolveKey func(provider string) (string, error)
	newClient  ClientFactory
	sink       llm.UsageSink
	logger     *slog.Logger
}

// NewUnifiedExtractor wires the extractor. resolveKey maps a provider to
// its API key; sink may be nil.
func NewUnifiedExtractor(
	cfg UnifiedConfig,
	rasterizer PageRenderer,
	router llm.Router,
	resolveKey func(provider string) (string, error),
	factory ClientFactory,
	sink llm.UsageSink,
	logger *slog.Logger,
) *UnifiedExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	if factory == nil {
		factory = DefaultClientFactory
	}
	if sink == nil {
		sink = llm.NullSink{}
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 10
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4000
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.1
	}
	if cfg.PageParallelism <= 0 {
		cfg.PageParallelism = 4
	}
	return &UnifiedExtractor{
		cfg:        cfg,
		rasterizer: rasterizer,
		router:     router,
		resolveKey: resolveKey,
		newClient:  factory,
		sink:       sink,
		logger:     logger,
	}
}

// Extract rasterizes the requested pages, runs one combined-task vision
// call per page in parallel, and merges the results. A page whose JSON
// cannot be parsed becomes a warning, not a failure; routing and
// credential errors fail the whole run before anything is spent.
func (u *UnifiedExtractor) Extract(ctx context.Context, req UnifiedRequest) (*ExtractionResponse, error) {
	start := time.Now()
	fail := func(err error) (*ExtractionResponse, error) {
		return &ExtractionResponse{
			Success:          false,
			Error:            err.Error(),
			ProcessingTimeMS: time.Since(start).Milliseconds(),
		}, err
	}

	tasks := req.Tasks
	if len(tasks) == 0 {
		tasks = prompt.RecommendedTasks(req.DocType)
	}
	specialized := prompt.SpecializedFor(req.DocType)

	images, err := u.rasterizer.Render(ctx, req.Path, req.FirstPage, req.LastPage)
	if err != nil {
		return fail(err)
	}
	if len(images) > u.cfg.MaxPages {
		images = images[:u.cfg.MaxPages]
	}
	if len(images) == 0 {
		// Empty document: success with zero cost.
		return &ExtractionResponse{
			Success:          true,
			ProcessingTimeMS: time.Since(start).Milliseconds(),
		}, nil
	}

	choice, err := u.router.Route(ctx, llm.RouteRequest{
		Org:         req.Org,
		Priority:    req.Priority,
		NeedsVision: true,
		MaxTokens:   u.cfg.MaxTokens,
	})
	if err != nil {
		return fail(err)
	}
	apiKey, err := u.resolveKey(choice.Provider)
	if err != nil {
		return fail(err)
	}
	client, err := u.newClient(choice.Provider, apiKey, u.cfg.BaseURLs[choice.Provider], u.logger)
	if err != nil {
		return fail(err)
	}

	promptText := prompt.Build(tasks, specialized)
	envelope := llm.EnvelopeFor(choice.Provider)

	var (
		mu       sync.Mutex
		pages    []*PageExtraction
		warnings []string
		costUSD  float64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.cfg.PageParallelism)
	for _, img := range images {
		g.Go(func() error {
			resp, err := u.extractPage(gctx, client, choice, envelope, promptText, img)
			mu.Lock()
			defer mu.Unlock()
			if resp != nil {
				costUSD += resp.CostUSD
			}
			if err != nil {
				if errors.GetCode(err) == errors.ErrCodeParseFailure {
					warnings = append(warnings, fmt.Sprintf("page %d: %v", img.Page, err))
					return nil
				}
				return err
			}
			pages = append(pages, resp.page)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			err = errors.Cancelled(ctx.Err())
		}
		resp, _ := fail(err)
		resp.CostUSD = costUSD
		return resp, err
	}

	merged := mergePages(pages)
	merged.Success = true
	sort.Strings(warnings)
	merged.Warnings = warnings
	merged.CostUSD = costUSD
	merged.ProcessingTimeMS = time.Since(start).Milliseconds()

	u.logger.Info("unified extraction complete",
		slog.String("path", req.Path),
		slog.String("model", choice.Model),
		slog.Int("pages", merged.PagesProcessed),
		slog.Int("warnings", len(warnings)),
		slog.Float64("cost_usd", costUSD))
	return &merged, nil
}

type pageCallResult struct {
	page    *PageExtraction
	CostUSD float64
}

// extractPage runs the combined call for one page image, with retry on
// transient provider errors.
func (u *UnifiedExtractor) extractPage(
	ctx context.Context,
	client llm.Client,
	choice *llm.ModelChoice,
	envelope llm.EnvelopeStyle,
	promptText string,
	img raster.PageImage,
) (*pageCallResult, error) {
	msg := llm.BuildVisionMessage(envelope, promptText, img.DataURI(), img.MIME, img.Base64())

	resp, err := errors.RetryWithResult(ctx, errors.DefaultRetryConfig(), func() (*llm.Response, error) {
		return client.Complete(ctx, llm.Request{
			Provider:    choice.Provider,
			Model:       choice.Model,
			Messages:    []llm.Message{msg},
			MaxTokens:   u.cfg.MaxTokens,
			Temperature: u.cfg.Temperature,
		})
	})
	if err != nil {
		return nil, err
	}

	u.sink.RecordUsage(ctx, llm.Usage{
		Provider:     choice.Provider,
		Model:        choice.Model,
		Operation:    "completion",
		TokensInput:  resp.TokensInput,
		TokensOutput: resp.TokensOutput,
		CostUSD:      resp.CostUSD,
		LatencyMS:    resp.LatencyMS,
	})

	page, err := parsePageJSON(resp.Content, img.Page)
	if err != nil {
		return &pageCallResult{CostUSD: resp.CostUSD}, err
	}
	return &pageCallResult{page: page, CostUSD: resp.CostUSD}, nil
}
