package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const defaultBaseDir = ".chainkit"

// Paths holds resolved filesystem paths for chainkit data.
type Paths struct {
	Base        string // ~/.chainkit
	Config      string // ~/.chainkit/config.yaml
	Transcripts string // ~/.chainkit/transcripts
	History     string // ~/.chainkit/chat_history
}

// ResolvePaths computes all standard paths from the home directory.
// If CHAINKIT_HOME is set, it overrides the default base directory. The config
// file is config.yaml unless only config.toml exists.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("CHAINKIT_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, defaultBaseDir)
	}

	configPath := filepath.Join(base, "config.yaml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if _, err := os.Stat(filepath.Join(base, "config.toml")); err == nil {
			configPath = filepath.Join(base, "config.toml")
		}
	}

	return Paths{
		Base:        base,
		Config:      configPath,
		Transcripts: filepath.Join(base, "transcripts"),
		History:     filepath.Join(base, "chat_history"),
	}, nil
}

// EnsureDirs creates all standard directories if they don't exist.
func (p Paths) EnsureDirs() error {
	for _, d := range []string{p.Base, p.Transcripts} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}

// Sections lists the top-level keys of the config file. Paths passed to
// ParseConfigPath must start with one of them.
var Sections = []string{"model", "maxIterations", "call", "providers", "aliases", "context", "logging", "tools"}

// ParseConfigPath splits a dot-separated config path into segments.
// Returns an error if a segment is empty or the first one is not a known section.
func ParseConfigPath(raw string) ([]string, error) {
	if raw == "" {
		return nil, &ConfigError{Message: "empty config path"}
	}
	parts := strings.Split(raw, ".")
	for _, p := range parts {
		if p == "" {
			return nil, &ConfigError{Message: "config path contains empty segment"}
		}
	}
	if !slices.Contains(Sections, parts[0]) {
		return nil, &ConfigError{Message: fmt.Sprintf("unknown config section %q (known: %s)", parts[0], strings.Join(Sections, ", "))}
	}
	return parts, nil
}

// GetValueAtPath traverses a nested map using the given path segments.
func GetValueAtPath(root map[string]any, path []string) (any, bool) {
	current := any(root)
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// SetValueAtPath sets a value in a nested map, creating intermediate maps as needed.
func SetValueAtPath(root map[string]any, path []string, value any) {
	current := root
	for _, key := range path[:len(path)-1] {
		m, ok := current[key].(map[string]any)
		if !ok {
			m = map[string]any{}
			current[key] = m
		}
		current = m
	}
	current[path[len(path)-1]] = value
}

// UnsetValueAtPath removes a value at the given path. Returns true if removed.
func UnsetValueAtPath(root map[string]any, path []string) bool {
	current := root
	for _, key := range path[:len(path)-1] {
		m, ok := current[key].(map[string]any)
		if !ok {
			return false
		}
		current = m
	}
	last := path[len(path)-1]
	if _, ok := current[last]; !ok {
		return false
	}
	delete(current, last)
	return true
}
