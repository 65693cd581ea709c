package llm

import (
	"context"
	"log/slog"

	"github.com/steeltrace/steeltrace/internal/errors"
)

// Priority balances cost against quality when selecting a model.
type Priority string

const (
	PriorityCost     Priority = "cost"
	PriorityBalanced Priority = "balanced"
	PriorityQuality  Priority = "quality"
)

// RouteRequest asks the router for a model. Hints pass through to the
// decision unchanged.
type RouteRequest struct {
	Org         string
	Priority    Priority
	ContentType string
	// NeedsVision restricts candidates to vision-capable models.
	NeedsVision bool
	MaxTokens   int
}

// ModelChoice is the router's answer.
type ModelChoice struct {
	Provider string
	Model    string
}

// Router selects a provider and model for a request.
type Router interface {
	Route(ctx context.Context, req RouteRequest) (*ModelChoice, error)
}

// StaticRouter picks from a fixed candidate table, filtered by vision
// capability, ordered by the requested priority. Providers without a
// resolvable key are skipped.
type StaticRouter struct {
	keys   map[string]string
	logger *slog.Logger
}

var _ Router = (*StaticRouter)(nil)

// NewStaticRouter creates a router over the configured provider keys.
func NewStaticRouter(keys map[string]string, logger *slog.Logger) *StaticRouter {
	if logger == nil {
		logger = slog.Default()
	}
	return &StaticRouter{keys: keys, logger: logger}
}

type candidate struct {
	provider string
	model    string
	vision   bool
	tier     Priority
}

// candidates in preference order within each tier.
var candidateTable = []candidate{
	{"openai", "gpt-4o", true, PriorityQuality},
	{"openai", "gpt-4o", true, PriorityBalanced},
	{"openai", "gpt-4o-mini", true, PriorityCost},
	{"openai", "gpt-4o-mini", true, PriorityBalanced},
	{"anthropic", "claude-sonnet-4-20250514", true, PriorityQuality},
	{"anthropic", "claude-3-5-haiku-20241022", true, PriorityCost},
}

// Route returns the first candidate matching the priority, the vision
// requirement, and a configured key. NoModelAvailable when nothing fits.
func (r *StaticRouter) Route(_ context.Context, req RouteRequest) (*ModelChoice, error) {
	priority := req.Priority
	if priority == "" {
		priority = PriorityBalanced
	}

	pick := func(tier Priority) *ModelChoice {
		for _, c := range candidateTable {
			if c.tier != tier {
				continue
			}
			if req.NeedsVision && !c.vision {
				continue
			}
			if r.keys[c.provider] == "" {
				continue
			}
			return &ModelChoice{Provider: c.provider, Model: c.model}
		}
		return nil
	}

	if m := pick(priority); m != nil {
		r.logger.Debug("model routed",
			slog.String("provider", m.Provider),
			slog.String("model", m.Model),
			slog.String("priority", string(priority)))
		return m, nil
	}
	// Fall back across tiers before giving up.
	for _, tier := range []Priority{PriorityBalanced, PriorityCost, PriorityQuality} {
		if tier == priority {
			continue
		}
		if m := pick(tier); m != nil {
			return m, nil
		}
	}

	return nil, errors.New(errors.ErrCodeNoModelAvailable,
		"no vision-capable model available for the requested priority", nil).
		WithDetail("priority", string(priority)).
		WithSuggestion("configure an API key for openai or anthropic")
}

// ResolveKey returns the API key for a provider.
// NoCredentials when absent.
func (r *StaticRouter) ResolveKey(provider string) (string, error) {
	key := r.keys[provider]
	if key == "" {
		return "", errors.New(errors.ErrCodeNoCredentials,
			"no API key configured for provider "+provider, nil)
	}
	return key, nil
}
