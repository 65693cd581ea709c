// Package llm defines the provider contract the extraction engine
// consumes: vision-capable chat completion, model routing, and usage
// accounting. Provider SDKs stay behind the Client interface.
package llm

import "context"

// EnvelopeStyle selects the provider-specific message shape.
type EnvelopeStyle string

const (
	// EnvelopeOpenAI uses text parts plus image_url parts.
	EnvelopeOpenAI EnvelopeStyle = "openai"
	// EnvelopeAnthropic uses image blocks (media type + base64 data)
	// followed by a text block.
	EnvelopeAnthropic EnvelopeStyle = "anthropic"
)

// Role of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// PartType discriminates content parts.
type PartType string

const (
	PartText     PartType = "text"
	PartImageURL PartType = "image_url"
	PartImage    PartType = "image"
)

// ContentPart is one piece of a multimodal message. Exactly one of the
// payload fields is set, according to Type.
type ContentPart struct {
	Type PartType `json:"type"`
	// Text payload for PartText.
	Text string `json:"text,omitempty"`
	// ImageURL payload for PartImageURL (usually a data URI).
	ImageURL string `json:"image_url,omitempty"`
	// MediaType and Data payload for PartImage (anthropic-style).
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
}

// Message is one chat turn.
type Message struct {
	Role  Role          `json:"role"`
	Parts []ContentPart `json:"parts"`
}

// Request is a provider-agnostic completion request.
type Request struct {
	Provider    string    `json:"provider"`
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float32   `json:"temperature"`
}

// Response is the normalized completion result.
type Response struct {
	Content      string  `json:"content"`
	TokensInput  int     `json:"tokens_input"`
	TokensOutput int     `json:"tokens_output"`
	CostUSD      float64 `json:"cost_usd"`
	LatencyMS    int64   `json:"latency_ms"`
	Raw          any     `json:"-"`
}

// Client executes completion requests against one provider.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// BuildVisionMessage assembles the user message carrying a page image
// and the extraction prompt in the provider's envelope shape.
// imageDataURI is the full data URI; mediaType and b64 are its parts.
func BuildVisionMessage(style EnvelopeStyle, promptText, imageDataURI, mediaType, b64 string) Message {
	switch style {
	case EnvelopeAnthropic:
		return Message{
			Role: RoleUser,
			Parts: []ContentPart{
				{Type: PartImage, MediaType: mediaType, Data: b64},
				{Type: PartText, Text: promptText},
			},
		}
	default:
		return Message{
			Role: RoleUser,
			Parts: []ContentPart{
				{Type: PartText, Text: promptText},
				{Type: PartImageURL, ImageURL: imageDataURI},
			},
		}
	}
}

// EnvelopeFor returns the message shape a provider expects.
func EnvelopeFor(provider string) EnvelopeStyle {
	if provider == "anthropic" {
		return EnvelopeAnthropic
	}
	return EnvelopeOpenAI
}
