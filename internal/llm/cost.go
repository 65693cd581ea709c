package llm

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// modelPricing is USD per million tokens {input, output}. Unlisted
// models cost zero; accounting is advisory, not billing.
var modelPricing = map[string][2]float64{
	"gpt-4o":                    {2.50, 10.00},
	"gpt-4o-mini":               {0.15, 0.60},
	"claude-sonnet-4-20250514":  {3.00, 15.00},
	"claude-3-5-haiku-20241022": {0.80, 4.00},
	"text-embedding-3-small":    {0.02, 0},
	"text-embedding-3-large":    {0.13, 0},
}

// EstimateCost returns the USD cost of a call from its token counts.
func EstimateCost(model string, tokensIn, tokensOut int) float64 {
	p, ok := modelPricing[model]
	if !ok {
		// Version-suffixed model ids fall back to the longest matching
		// base price (gpt-4o-mini-2024... must not match gpt-4o).
		best := ""
		for base, bp := range modelPricing {
			if strings.HasPrefix(model, base) && len(base) > len(best) {
				best, p, ok = base, bp, true
			}
		}
	}
	if !ok {
		return 0
	}
	return float64(tokensIn)/1e6*p[0] + float64(tokensOut)/1e6*p[1]
}

// Usage is one accounted LLM or embedding call.
type Usage struct {
	Provider     string
	Model        string
	Operation    string // "completion" | "embedding"
	TokensInput  int
	TokensOutput int
	CostUSD      float64
	LatencyMS    int64
}

// UsageSink receives usage records.
type UsageSink interface {
	RecordUsage(ctx context.Context, u Usage)
}

// LogSink writes usage records to the structured log and keeps running
// totals. Safe for concurrent use.
type LogSink struct {
	logger *slog.Logger

	mu          sync.Mutex
	calls       int
	totalTokens int
	totalCost   float64
}

var _ UsageSink = (*LogSink)(nil)

// NewLogSink creates a usage sink over the given logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// RecordUsage logs the record and accumulates totals.
func (s *LogSink) RecordUsage(_ context.Context, u Usage) {
	s.mu.Lock()
	s.calls++
	s.totalTokens += u.TokensInput + u.TokensOutput
	s.totalCost += u.CostUSD
	s.mu.Unlock()

	s.logger.Info("llm usage",
		slog.String("provider", u.Provider),
		slog.String("model", u.Model),
		slog.String("operation", u.Operation),
		slog.Int("tokens_in", u.TokensInput),
		slog.Int("tokens_out", u.TokensOutput),
		slog.Float64("cost_usd", u.CostUSD),
		slog.Int64("latency_ms", u.LatencyMS))
}

// Totals returns the accumulated call count, token count, and cost.
func (s *LogSink) Totals() (calls, tokens int, costUSD float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls, s.totalTokens, s.totalCost
}

// NullSink discards usage records.
type NullSink struct{}

var _ UsageSink = NullSink{}

func (NullSink) RecordUsage(context.Context, Usage) {}
