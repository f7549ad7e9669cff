package config

// Config is the root configuration for chainkit.
type Config struct {
	Model         string            `yaml:"model,omitempty"` // "provider:model", e.g. "ollama:llama3.1"
	MaxIterations int               `yaml:"maxIterations,omitempty"`
	Call          CallConfig        `yaml:"call,omitempty"`
	Providers     ProvidersConfig   `yaml:"providers,omitempty"`
	Aliases       map[string]string `yaml:"aliases,omitempty"` // provider alias → provider name
	Context       map[string]any    `yaml:"context,omitempty"` // default application context for tools
	Logging       LoggingConfig     `yaml:"logging,omitempty"`
	Tools         ToolsConfig       `yaml:"tools,omitempty"`
}

// CallConfig holds the call options sent with every request.
type CallConfig struct {
	Temperature *float64       `yaml:"temperature,omitempty"`
	MaxTokens   int            `yaml:"maxTokens,omitempty"`
	Stream      bool           `yaml:"stream,omitempty"`
	Extra       map[string]any `yaml:"extra,omitempty"` // provider-specific request fields
}

// ProvidersConfig configures the generation providers.
type ProvidersConfig struct {
	Ollama    OllamaConfig    `yaml:"ollama,omitempty"`
	Anthropic AnthropicConfig `yaml:"anthropic,omitempty"`
}

// OllamaConfig configures the Ollama chat API client.
type OllamaConfig struct {
	BaseURL        string            `yaml:"baseUrl,omitempty"`
	Headers        map[string]string `yaml:"headers,omitempty"` // values may reference ${ENV_VAR}
	TimeoutSeconds int               `yaml:"timeoutSeconds,omitempty"`
}

// AnthropicConfig configures the Anthropic Messages API client. The provider is
// registered only when an API key is configured here or in ANTHROPIC_API_KEY.
type AnthropicConfig struct {
	APIKey         string `yaml:"apiKey,omitempty"` // may reference ${ENV_VAR}
	BaseURL        string `yaml:"baseUrl,omitempty"`
	MaxTokens      int    `yaml:"maxTokens,omitempty"` // used when the call does not set one
	TimeoutSeconds int    `yaml:"timeoutSeconds,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"`        // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "json"
}

// ToolsConfig controls which builtin tools are offered and how they run.
type ToolsConfig struct {
	Enabled        []string `yaml:"enabled,omitempty"`
	Parallel       bool     `yaml:"parallel,omitempty"`
	MaxConcurrency int      `yaml:"maxConcurrency,omitempty"` // 0 = unbounded
}
