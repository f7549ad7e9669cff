package config

import (
	"fmt"
	"net/url"
	"slices"

	"github.com/soyeahso/chainkit/internal/llm"
	"github.com/soyeahso/chainkit/internal/logging"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	// Model validation
	if _, err := llm.ParseModelSpec(cfg.Model); err != nil {
		issues = append(issues, ValidationIssue{
			Path:    "model",
			Message: fmt.Sprintf("must be provider:model, got %q", cfg.Model),
		})
	}
	if cfg.MaxIterations < 1 {
		issues = append(issues, ValidationIssue{
			Path:    "maxIterations",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.MaxIterations),
		})
	}

	// Call validation
	if t := cfg.Call.Temperature; t != nil && (*t < 0 || *t > 2) {
		issues = append(issues, ValidationIssue{
			Path:    "call.temperature",
			Message: fmt.Sprintf("must be 0-2, got %g", *t),
		})
	}
	if cfg.Call.MaxTokens < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "call.maxTokens",
			Message: fmt.Sprintf("must not be negative, got %d", cfg.Call.MaxTokens),
		})
	}

	// Provider validation
	ollama := cfg.Providers.Ollama
	if ollama.BaseURL != "" {
		if u, err := url.Parse(ollama.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			issues = append(issues, ValidationIssue{
				Path:    "providers.ollama.baseUrl",
				Message: fmt.Sprintf("must be an absolute URL, got %q", ollama.BaseURL),
			})
		}
	}
	if ollama.TimeoutSeconds < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "providers.ollama.timeoutSeconds",
			Message: fmt.Sprintf("must not be negative, got %d", ollama.TimeoutSeconds),
		})
	}
	anthropic := cfg.Providers.Anthropic
	if anthropic.BaseURL != "" {
		if u, err := url.Parse(anthropic.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			issues = append(issues, ValidationIssue{
				Path:    "providers.anthropic.baseUrl",
				Message: fmt.Sprintf("must be an absolute URL, got %q", anthropic.BaseURL),
			})
		}
	}
	if anthropic.MaxTokens < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "providers.anthropic.maxTokens",
			Message: fmt.Sprintf("must not be negative, got %d", anthropic.MaxTokens),
		})
	}
	if anthropic.TimeoutSeconds < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "providers.anthropic.timeoutSeconds",
			Message: fmt.Sprintf("must not be negative, got %d", anthropic.TimeoutSeconds),
		})
	}
	for alias, target := range cfg.Aliases {
		if alias == "" || target == "" {
			issues = append(issues, ValidationIssue{
				Path:    "aliases",
				Message: fmt.Sprintf("alias %q → %q must name both sides", alias, target),
			})
		}
	}

	// Logging validation
	if _, err := logging.ParseLevel(cfg.Logging.Level); err != nil {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", logging.ValidLevels, cfg.Logging.Level),
		})
	}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(logging.ValidStyles, cfg.Logging.ConsoleStyle) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.consoleStyle",
			Message: fmt.Sprintf("must be one of %v, got %q", logging.ValidStyles, cfg.Logging.ConsoleStyle),
		})
	}

	// Tools validation
	if cfg.Tools.MaxConcurrency < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "tools.maxConcurrency",
			Message: fmt.Sprintf("must not be negative, got %d", cfg.Tools.MaxConcurrency),
		})
	}

	return issues
}
