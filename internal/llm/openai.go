package llm

import (
	"context"
	stderrors "errors"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/steeltrace/steeltrace/internal/errors"
)

// OpenAIClient implements Client over the OpenAI chat completions API.
// Any OpenAI-compatible endpoint works through BaseURL.
type OpenAIClient struct {
	client *openai.Client
	logger *slog.Logger
}

var _ Client = (*OpenAIClient)(nil)

// NewOpenAIClient creates a client. baseURL is optional.
func NewOpenAIClient(apiKey, baseURL string, logger *slog.Logger) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.New(errors.ErrCodeNoCredentials, "no API key configured for provider openai", nil)
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{client: openai.NewClientWithConfig(cfg), logger: logger}, nil
}

// Complete executes one chat completion and normalizes the result.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	oreq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    toOpenAIMessages(req.Messages),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	resp, err := c.client.CreateChatCompletion(ctx, oreq)
	if err != nil {
		return nil, classifyProviderError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.ProviderError("provider returned no choices", nil, true)
	}

	out := &Response{
		Content:      resp.Choices[0].Message.Content,
		TokensInput:  resp.Usage.PromptTokens,
		TokensOutput: resp.Usage.CompletionTokens,
		CostUSD:      EstimateCost(req.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens),
		LatencyMS:    time.Since(start).Milliseconds(),
		Raw:          resp,
	}

	c.logger.Debug("completion finished",
		slog.String("model", req.Model),
		slog.Int("tokens_in", out.TokensInput),
		slog.Int("tokens_out", out.TokensOutput),
		slog.Float64("cost_usd", out.CostUSD),
		slog.Int64("latency_ms", out.LatencyMS))
	return out, nil
}

func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		om := openai.ChatCompletionMessage{Role: string(m.Role)}

		// Single text part stays a plain string message; multimodal
		// messages use MultiContent.
		if len(m.Parts) == 1 && m.Parts[0].Type == PartText {
			om.Content = m.Parts[0].Text
			out = append(out, om)
			continue
		}

		for _, p := range m.Parts {
			switch p.Type {
			case PartText:
				om.MultiContent = append(om.MultiContent, openai.ChatMessagePart{
					Type: openai.ChatMessagePartTypeText,
					Text: p.Text,
				})
			case PartImageURL:
				om.MultiContent = append(om.MultiContent, openai.ChatMessagePart{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL:    p.ImageURL,
						Detail: openai.ImageURLDetailHigh,
					},
				})
			case PartImage:
				// Anthropic-shape parts arriving here are converted to
				// a data URI so OpenAI-compatible endpoints accept them.
				om.MultiContent = append(om.MultiContent, openai.ChatMessagePart{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL:    "data:" + p.MediaType + ";base64," + p.Data,
						Detail: openai.ImageURLDetailHigh,
					},
				})
			}
		}
		out = append(out, om)
	}
	return out
}

// classifyProviderError maps SDK errors onto transient/permanent codes
// so the retry layer can decide.
func classifyProviderError(err error) error {
	var apiErr *openai.APIError
	if stderrors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 401 || apiErr.HTTPStatusCode == 403:
			return errors.New(errors.ErrCodeNoCredentials, "provider rejected credentials", err)
		case apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500:
			return errors.ProviderError("provider transient failure", err, true)
		case apiErr.HTTPStatusCode >= 400:
			return errors.ProviderError("provider rejected request", err, false)
		}
	}
	if strings.Contains(err.Error(), "context deadline exceeded") {
		return errors.ProviderError("provider timed out", err, true)
	}
	return errors.ProviderError("provider request failed", err, true)
}
