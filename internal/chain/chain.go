// Package chain builds conversations and drives the tool-calling loop in front of
// a generation client.
//
// A Chain is an immutable value. Every method that changes it returns a new Chain
// and leaves the receiver untouched, so a Chain can be forked freely:
//
//	base, err := chain.New(registry, "ollama:llama3.1", chain.CallOptions{})
//	if err != nil { ... }
//	c := base.
//		AddSystemMessage("You are helpful").
//		AddUserMessage("What's 2+2?").
//		AddTools(calculator).
//		SetContext(map[string]any{"user_id": 42})
//	c, resp, err := c.RunUntilDone(ctx, 5)
//
// The application context set with SetContext is handed to tool callbacks only and
// is never sent to the model.
package chain

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/soyeahso/chainkit/internal/llm"
)

// DefaultMaxIterations is the budget callers use when they have no better number.
const DefaultMaxIterations = 10

// CallOptions is call-time configuration sent with every request.
type CallOptions struct {
	Temperature *float64
	MaxTokens   int
	Stream      bool
	// Extra is merged over the model's own options; on key collision Extra wins.
	Extra map[string]any
}

// Option configures loop behavior that is not part of the conversation.
type Option func(*Chain)

// WithObserver sets the observer notified of dispatches and tool executions.
func WithObserver(o Observer) Option {
	return func(c *Chain) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithExecutor replaces the default SequentialExecutor.
func WithExecutor(e Executor) Option {
	return func(c *Chain) {
		if e != nil {
			c.executor = e
		}
	}
}

// Chain is an immutable conversation: model, call options, history, tools and
// application context.
type Chain struct {
	model    *llm.Model
	opts     CallOptions
	history  *transcript
	tools    []Tool
	appCtx   map[string]any
	observer Observer
	executor Executor
}

// New resolves spec and returns an empty Chain. spec may be a "provider:model"
// string, an llm.ModelSpec, or an already resolved *llm.Model (in which case reg
// may be nil).
func New(reg *llm.Registry, spec any, call CallOptions, opts ...Option) (Chain, error) {
	model, err := resolveModel(reg, spec)
	if err != nil {
		return Chain{}, err
	}
	call.Extra = maps.Clone(call.Extra)
	c := Chain{
		model:    model,
		opts:     call,
		appCtx:   map[string]any{},
		observer: nopObserver{},
		executor: SequentialExecutor{},
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c, nil
}

func resolveModel(reg *llm.Registry, spec any) (*llm.Model, error) {
	switch s := spec.(type) {
	case *llm.Model:
		if s == nil || s.Client == nil || s.Name == "" {
			return nil, &ModelSpecError{Spec: s.String(), Err: fmt.Errorf("resolved model needs a client and a name")}
		}
		m := *s
		m.Options = maps.Clone(s.Options)
		return &m, nil
	case string:
		if reg == nil {
			return nil, &ModelSpecError{Spec: s, Err: fmt.Errorf("no provider registry")}
		}
		m, err := reg.Resolve(s)
		if err != nil {
			return nil, &ModelSpecError{Spec: s, Err: err}
		}
		return m, nil
	case llm.ModelSpec:
		if reg == nil {
			return nil, &ModelSpecError{Spec: s.String(), Err: fmt.Errorf("no provider registry")}
		}
		m, err := reg.ResolveSpec(s)
		if err != nil {
			return nil, &ModelSpecError{Spec: s.String(), Err: err}
		}
		return m, nil
	default:
		return nil, &ModelSpecError{Spec: fmt.Sprintf("%v", spec), Err: fmt.Errorf("unsupported spec type %T", spec)}
	}
}

// AddMessage appends a single-part text message. role must be system, user or
// assistant; tool messages are only produced by the loop.
func (c Chain) AddMessage(role, text string) (Chain, error) {
	switch role {
	case llm.RoleSystem, llm.RoleUser, llm.RoleAssistant:
	default:
		return c, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	return c.appendMessages(llm.TextMessage(role, text)), nil
}

// AddSystemMessage appends a system message.
func (c Chain) AddSystemMessage(text string) Chain {
	return c.appendMessages(llm.TextMessage(llm.RoleSystem, text))
}

// AddUserMessage appends a user message.
func (c Chain) AddUserMessage(text string) Chain {
	return c.appendMessages(llm.TextMessage(llm.RoleUser, text))
}

// AddAssistantMessage appends an assistant message.
func (c Chain) AddAssistantMessage(text string) Chain {
	return c.appendMessages(llm.TextMessage(llm.RoleAssistant, text))
}

// AddTools appends tools after the ones already registered. Names are not
// deduplicated; lookups use the first match.
func (c Chain) AddTools(tools ...Tool) Chain {
	if len(tools) == 0 {
		return c
	}
	c.tools = append(slices.Clip(c.tools), tools...)
	return c
}

// SetContext shallow-merges m into the application context, m's values winning.
// A nil map resets the context to empty.
func (c Chain) SetContext(m map[string]any) Chain {
	if m == nil {
		c.appCtx = map[string]any{}
		return c
	}
	merged := make(map[string]any, len(c.appCtx)+len(m))
	maps.Copy(merged, c.appCtx)
	maps.Copy(merged, m)
	c.appCtx = merged
	return c
}

// AppendResponse folds a response obtained outside the loop, e.g. from Collect on
// a Stream, into history.
func (c Chain) AppendResponse(resp *llm.CompletionResponse) Chain {
	if resp == nil {
		return c
	}
	return c.appendMessages(responseMessage(resp))
}

// Messages returns the history in order. The slice is freshly allocated.
func (c Chain) Messages() []llm.Message {
	return c.history.slice()
}

// Len returns the number of messages in history.
func (c Chain) Len() int {
	return c.history.len()
}

// Tools returns a copy of the registered tools.
func (c Chain) Tools() []Tool {
	return slices.Clone(c.tools)
}

// Context returns a copy of the application context.
func (c Chain) Context() map[string]any {
	return maps.Clone(c.appCtx)
}

// Model returns the resolved model handle.
func (c Chain) Model() *llm.Model {
	return c.model
}

// Options returns the call options.
func (c Chain) Options() CallOptions {
	o := c.opts
	o.Extra = maps.Clone(o.Extra)
	return o
}

// ExtractText renders history for inspection: "[ROLE] text" per message, in
// order, separated by a blank line.
func (c Chain) ExtractText() string {
	msgs := c.Messages()
	parts := make([]string, len(msgs))
	for i, m := range msgs {
		parts[i] = "[" + strings.ToUpper(m.Role) + "] " + m.Text()
	}
	return strings.Join(parts, "\n\n")
}

func (c Chain) appendMessages(msgs ...llm.Message) Chain {
	for _, m := range msgs {
		c.history = c.history.push(m)
	}
	return c
}

// transcript is a persistent list of messages, newest first. Appending shares the
// whole previous history, so forks of a Chain never copy or alias each other.
type transcript struct {
	msg  llm.Message
	prev *transcript
	n    int
}

func (t *transcript) push(m llm.Message) *transcript {
	return &transcript{msg: m, prev: t, n: t.len() + 1}
}

func (t *transcript) len() int {
	if t == nil {
		return 0
	}
	return t.n
}

func (t *transcript) slice() []llm.Message {
	out := make([]llm.Message, t.len())
	for node := t; node != nil; node = node.prev {
		out[node.n-1] = node.msg
	}
	return out
}
