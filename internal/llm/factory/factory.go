package factory

import (
	"fmt"

	"github.com/newthinker/signalwatch/internal/config"
	"github.com/newthinker/signalwatch/internal/llm"
	"github.com/newthinker/signalwatch/internal/llm/claude"
	"github.com/newthinker/signalwatch/internal/llm/openai"
)

// New creates an LLM provider based on configuration. An empty provider
// disables commentary and returns nil.
func New(cfg config.LLMConfig) (llm.Provider, error) {
	switch cfg.Provider {
	case "":
		return nil, nil
	case "claude":
		return claude.New(options(cfg.Claude))
	case "openai":
		return openai.New(options(cfg.OpenAI))
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", cfg.Provider)
	}
}

func options(p config.ProviderConfig) llm.Options {
	return llm.Options{APIKey: p.APIKey, Model: p.Model, BaseURL: p.BaseURL}
}
