package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hilvik/vivum-demo-v1/internal/llm"
)

// SystemPrompt frames model answers the way the canned documents are written.
const SystemPrompt = `You are Vivum AI, a research assistant for scientific literature.
Answer in markdown. When you cite papers, give each its own "## " heading followed by
**Authors**, **Journal**, **Summary** and **Key Findings** sections. If the question is
too broad, ask what aspects the user is interested in as a bulleted list.`

// ErrEmptyAnswer is returned when the model produced no text.
var ErrEmptyAnswer = errors.New("model returned an empty answer")

// LLM answers queries with a language model.
type LLM struct {
	client    llm.Client
	model     string
	maxTokens int
}

// NewLLM creates a resolver backed by client. An empty model uses the
// client's default.
func NewLLM(client llm.Client, model string) *LLM {
	return &LLM{
		client:    client,
		model:     model,
		maxTokens: 2048,
	}
}

// Name returns the resolver name.
func (r *LLM) Name() string {
	return "llm:" + r.client.Name()
}

// Resolve asks the model and returns its answer.
func (r *LLM) Resolve(ctx context.Context, query string) (string, error) {
	resp, err := r.client.Complete(ctx, &llm.CompletionRequest{
		Model:     r.model,
		System:    SystemPrompt,
		Messages:  []llm.ChatMessage{{Role: "user", Content: query}},
		MaxTokens: r.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%s completion failed: %w", r.client.Name(), err)
	}
	if strings.TrimSpace(resp.Content) == "" {
		return "", ErrEmptyAnswer
	}
	return resp.Content, nil
}
