package resolver

import (
	"context"
	"fmt"

	"github.com/hilvik/vivum-demo-v1/internal/config"
	"github.com/hilvik/vivum-demo-v1/internal/llm"
)

// Resolver answers a query.
type Resolver interface {
	Resolve(ctx context.Context, query string) (string, error)
	Name() string
}

// FromConfig builds the resolver cfg selects.
func FromConfig(cfg *config.Config) (Resolver, error) {
	switch cfg.Resolver {
	case config.ResolverCanned:
		return NewCanned(
			WithKeywords(cfg.TriggerKeywords...),
			WithDelay(cfg.AnswerDelay),
		), nil
	case config.ResolverLLM:
		client, err := llm.FromKeys(llm.Provider(cfg.DefaultLLM), cfg.AnthropicAPIKey, cfg.OpenAIAPIKey)
		if err != nil {
			return nil, err
		}
		return NewLLM(client, cfg.LLMModel), nil
	default:
		return nil, fmt.Errorf("unknown resolver %q", cfg.Resolver)
	}
}
