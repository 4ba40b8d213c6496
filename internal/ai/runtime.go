package ai

import (
	"context"
	"fmt"
	"time"
)

// Runtime is the minimal interface implemented by text-generation backends:
// the hosted OpenRouter client and the local Ollama runtime. The pipeline
// depends only on this interface.
type Runtime interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// Provider identifiers used for runtime selection.
const (
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
	ProviderLocal      = "local"
)

// RuntimeOptions carries the transport knobs shared by all runtimes.
type RuntimeOptions struct {
	APIKey      string
	OllamaHost  string
	HTTPTimeout time.Duration
	RetryMax    int
	RetryBase   time.Duration
	RetryCap    time.Duration
}

// NewRuntime selects and builds a runtime for the given provider name.
func NewRuntime(provider string, opt RuntimeOptions) (Runtime, error) {
	switch provider {
	case "", ProviderOpenRouter:
		return NewClient(opt.APIKey, opt.HTTPTimeout, opt.RetryMax, opt.RetryBase, opt.RetryCap), nil
	case ProviderOllama, ProviderLocal:
		return NewOllamaClient(opt.OllamaHost, opt.HTTPTimeout, opt.RetryMax, opt.RetryBase, opt.RetryCap), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
}
