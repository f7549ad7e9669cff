package cli

import (
	"net/http"
	"os"
	"time"

	"github.com/soyeahso/chainkit/internal/chain"
	"github.com/soyeahso/chainkit/internal/config"
	"github.com/soyeahso/chainkit/internal/llm"
	"github.com/soyeahso/chainkit/internal/logging"
)

// newRegistry builds the provider registry described by cfg.
func newRegistry(cfg config.Config, log *logging.Logger) *llm.Registry {
	reg := llm.NewRegistry(log)

	ollama := cfg.Providers.Ollama
	timeout := time.Duration(ollama.TimeoutSeconds) * time.Second
	reg.Register("ollama", llm.NewOllamaAPIClient(ollama.BaseURL,
		llm.WithHeaders(ollama.Headers),
		llm.WithHTTPClient(&http.Client{Timeout: timeout}),
	))

	anthropic := cfg.Providers.Anthropic
	if anthropic.APIKey != "" || os.Getenv("ANTHROPIC_API_KEY") != "" {
		reg.Register("anthropic", llm.NewAnthropicAPIClient(llm.AnthropicConfig{
			APIKey:     anthropic.APIKey,
			BaseURL:    anthropic.BaseURL,
			MaxTokens:  anthropic.MaxTokens,
			HTTPClient: &http.Client{Timeout: time.Duration(anthropic.TimeoutSeconds) * time.Second},
		}))
	}

	for alias, provider := range cfg.Aliases {
		reg.Alias(alias, provider)
	}
	return reg
}

// newExecutor picks the batch executor for tool calls.
func newExecutor(cfg config.Config, parallel bool) chain.Executor {
	if parallel || cfg.Tools.Parallel {
		return chain.ParallelExecutor{MaxConcurrency: cfg.Tools.MaxConcurrency}
	}
	return chain.SequentialExecutor{}
}

// callOptions maps the call section of the config onto chain options. call.stream
// is not a request option; run reads it to pick streaming mode.
func callOptions(cfg config.Config) chain.CallOptions {
	return chain.CallOptions{
		Temperature: cfg.Call.Temperature,
		MaxTokens:   cfg.Call.MaxTokens,
		Extra:       cfg.Call.Extra,
	}
}
