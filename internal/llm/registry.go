package llm

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/soyeahso/chainkit/internal/logging"
)

// Errors returned by Registry.Resolve.
var (
	ErrMalformedModel  = errors.New("malformed model reference")
	ErrUnknownProvider = errors.New("unknown provider")
)

// ProviderError is returned when a generation provider fails.
type ProviderError struct {
	Provider string
	Message  string
	Code     int // HTTP-like status code (401, 429, 500, etc.)
}

func (e *ProviderError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s: %d %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// ModelSpec is the structured form of a model reference.
type ModelSpec struct {
	Provider string         `yaml:"provider" json:"provider"`
	Model    string         `yaml:"model" json:"model"`
	Options  map[string]any `yaml:"options,omitempty" json:"options,omitempty"`
}

// String renders the canonical "provider:model" form.
func (s ModelSpec) String() string {
	return s.Provider + ":" + s.Model
}

// ParseModelSpec splits a canonical "provider:model" string. Only the first colon
// separates provider from model, so "ollama:llama3:8b" names model "llama3:8b".
func ParseModelSpec(ref string) (ModelSpec, error) {
	provider, model, ok := strings.Cut(strings.TrimSpace(ref), ":")
	if !ok || provider == "" || model == "" {
		return ModelSpec{}, fmt.Errorf("%w: %q (want provider:model)", ErrMalformedModel, ref)
	}
	return ModelSpec{Provider: provider, Model: model}, nil
}

// Model is a resolved model handle: a provider client plus the model name and the
// per-call options that travel with it.
type Model struct {
	Provider string
	Name     string
	Options  map[string]any
	Client   Client
}

// String renders the canonical "provider:model" form.
func (m *Model) String() string {
	if m == nil {
		return ""
	}
	return m.Provider + ":" + m.Name
}

// Registry manages provider clients and resolves model references to them.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]Client // provider name → client
	aliases map[string]string // provider alias → provider name
	log     *logging.Logger
}

// NewRegistry creates an empty provider registry.
func NewRegistry(log *logging.Logger) *Registry {
	if log == nil {
		log = logging.Nop()
	}
	return &Registry{
		clients: make(map[string]Client),
		aliases: make(map[string]string),
		log:     log.Sub("llm.registry"),
	}
}

// Register adds a client under the given provider name.
func (r *Registry) Register(name string, client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[name] = client
	r.log.Debug().Str("provider", name).Msg("registered provider")
}

// Alias maps an alternative provider name to a registered provider.
// e.g., Alias("local", "ollama") makes "local:llama3" resolve to the ollama client.
func (r *Registry) Alias(alias, provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[alias] = provider
}

// Lookup returns the client registered under name, following one level of alias.
// There is no fallback: an unknown name is reported as not found.
func (r *Registry) Lookup(name string) (Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if c, ok := r.clients[name]; ok {
		return c, true
	}
	if provider, ok := r.aliases[name]; ok {
		if c, ok := r.clients[provider]; ok {
			return c, true
		}
	}
	return nil, false
}

// Resolve turns a "provider:model" reference into a Model handle.
func (r *Registry) Resolve(ref string) (*Model, error) {
	spec, err := ParseModelSpec(ref)
	if err != nil {
		return nil, err
	}
	return r.ResolveSpec(spec)
}

// ResolveSpec turns a structured ModelSpec into a Model handle.
func (r *Registry) ResolveSpec(spec ModelSpec) (*Model, error) {
	if spec.Provider == "" || spec.Model == "" {
		return nil, fmt.Errorf("%w: provider and model are required", ErrMalformedModel)
	}
	client, ok := r.Lookup(spec.Provider)
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %s)", ErrUnknownProvider, spec.Provider, strings.Join(r.List(), ", "))
	}
	return &Model{
		Provider: spec.Provider,
		Name:     spec.Model,
		Options:  maps.Clone(spec.Options),
		Client:   client,
	}, nil
}

// List returns all registered provider names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for n := range r.clients {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
