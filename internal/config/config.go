package config

import "fmt"

const (
	DefaultModel          = "ollama:llama3.1"
	DefaultMaxIterations  = 10
	DefaultOllamaURL      = "http://localhost:11434"
	DefaultOllamaTimeoutS = 120

	DefaultAnthropicTimeoutS = 300
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Model:         DefaultModel,
		MaxIterations: DefaultMaxIterations,
		Providers: ProvidersConfig{
			Ollama: OllamaConfig{
				BaseURL:        DefaultOllamaURL,
				TimeoutSeconds: DefaultOllamaTimeoutS,
			},
			Anthropic: AnthropicConfig{
				TimeoutSeconds: DefaultAnthropicTimeoutS,
			},
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
	}
}
