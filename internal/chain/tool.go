package chain

import (
	"context"

	"github.com/soyeahso/chainkit/internal/llm"
)

// ContextKey is the reserved key under which a UnaryFunc finds the application
// context inside its single merged argument map.
const ContextKey = "_context"

// Tool is a named callable the model may request.
type Tool struct {
	Name        string
	Description string
	// Parameters is the JSON Schema shown to the model. It is passed through as is.
	Parameters map[string]any
	Callback   Callback
}

// NewTool is shorthand for building a Tool literal.
func NewTool(name, description string, parameters map[string]any, cb Callback) Tool {
	return Tool{Name: name, Description: description, Parameters: parameters, Callback: cb}
}

// Definition returns the descriptor sent to the generation client.
func (t Tool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{Name: t.Name, Description: t.Description, Parameters: t.Parameters}
}

// Callback is the set of calling conventions a tool may use. The concrete types are
// MethodRef, UnaryFunc, BinaryFunc and DynamicFunc.
type Callback interface {
	callbackShape() string
}

// MethodRef names a method on a target value, the way a service registers a
// handler by name. The method is called with
//
//	([ctx,] Args..., input, appCtx)
//
// where the leading context.Context is passed only if the method declares it.
// It may return nothing, a value, an error, or (value, error).
type MethodRef struct {
	Target any
	Method string
	Args   []any
}

// UnaryFunc receives a single argument map: the tool input with the application
// context injected under ContextKey.
type UnaryFunc func(ctx context.Context, args map[string]any) (any, error)

// BinaryFunc receives the tool input and the application context separately.
type BinaryFunc func(ctx context.Context, input, appCtx map[string]any) (any, error)

// DynamicFunc wraps an arbitrary function value. It is called with ([ctx,] input)
// only; a function that cannot accept that is reported as a tool execution error
// wrapping ErrSignatureMismatch.
type DynamicFunc struct {
	Fn any
}

func (m MethodRef) callbackShape() string {
	if len(m.Args) > 0 {
		return "method+args"
	}
	return "method"
}

func (UnaryFunc) callbackShape() string   { return "unary" }
func (BinaryFunc) callbackShape() string  { return "binary" }
func (DynamicFunc) callbackShape() string { return "dynamic" }

var (
	_ Callback = MethodRef{}
	_ Callback = UnaryFunc(nil)
	_ Callback = BinaryFunc(nil)
	_ Callback = DynamicFunc{}
)
