// Package llm provides LLM client interfaces and implementations.
package llm

import (
	"context"
	"errors"
)

// ErrMissingAPIKey is returned when a provider is created without a key.
var ErrMissingAPIKey = errors.New("API key is required")

// CompletionRequest represents a completion request.
type CompletionRequest struct {
	Model       string
	System      string
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float64
}

// ChatMessage represents a chat message for LLM.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionResponse represents a completion response.
type CompletionResponse struct {
	Content    string
	Model      string
	TokensIn   int
	TokensOut  int
	StopReason string
	LatencyMs  int64
}

// Client is the interface for LLM providers.
type Client interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name.
	Name() string

	// Models returns available models.
	Models() []string
}

// Provider is the type of LLM provider.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// NewClient creates a new LLM client based on provider.
func NewClient(provider Provider, apiKey string) (Client, error) {
	switch provider {
	case ProviderAnthropic:
		return NewAnthropicClient(apiKey)
	case ProviderOpenAI:
		return NewOpenAIClient(apiKey)
	default:
		return NewAnthropicClient(apiKey)
	}
}

// FromKeys picks a provider: preferred if its key is set, otherwise
// whichever key is present.
func FromKeys(preferred Provider, anthropicKey, openAIKey string) (Client, error) {
	switch {
	case preferred == ProviderOpenAI && openAIKey != "":
		return NewOpenAIClient(openAIKey)
	case preferred == ProviderAnthropic && anthropicKey != "":
		return NewAnthropicClient(anthropicKey)
	case anthropicKey != "":
		return NewAnthropicClient(anthropicKey)
	case openAIKey != "":
		return NewOpenAIClient(openAIKey)
	default:
		return nil, ErrMissingAPIKey
	}
}
