package chain

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"time"

	"github.com/soyeahso/chainkit/internal/llm"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// executeCall runs one tool call against the chain's tools and application context.
// It always produces a result; failures become error-shaped result values.
func (c Chain) executeCall(ctx context.Context, iteration int, call llm.ToolCall) llm.ToolResult {
	result := llm.ToolResult{ID: call.ID, Name: call.Name}

	tool, ok := c.lookupTool(call.Name)
	if !ok {
		nf := &ToolNotFoundError{Name: call.Name, Available: c.toolNames()}
		result.Value = map[string]any{
			"error":     "tool not found",
			"tool":      call.Name,
			"available": nf.Available,
		}
		result.IsError = true
		c.observe(ctx, Event{Kind: EventToolFinish, Iteration: iteration, CallID: call.ID, Tool: call.Name, Err: nf})
		return result
	}

	c.observe(ctx, Event{Kind: EventToolStart, Iteration: iteration, CallID: call.ID, Tool: call.Name})
	start := time.Now()
	value, err := invoke(ctx, tool, call.Input, maps.Clone(c.appCtx))
	dur := time.Since(start)

	if err != nil {
		result.Value = map[string]any{
			"error": err.Error(),
			"tool":  call.Name,
		}
		result.IsError = true
	} else {
		result.Value = value
	}
	c.observe(ctx, Event{Kind: EventToolFinish, Iteration: iteration, CallID: call.ID, Tool: call.Name, Duration: dur, Err: err})
	return result
}

// lookupTool returns the first tool registered under name.
func (c Chain) lookupTool(name string) (Tool, bool) {
	i := slices.IndexFunc(c.tools, func(t Tool) bool { return t.Name == name })
	if i < 0 {
		return Tool{}, false
	}
	return c.tools[i], true
}

func (c Chain) toolNames() []string {
	names := make([]string, len(c.tools))
	for i, t := range c.tools {
		names[i] = t.Name
	}
	return names
}

// invoke calls a tool's callback according to its shape. Panics are recovered
// here so one tool can never unwind the loop.
func invoke(ctx context.Context, tool Tool, input, appCtx map[string]any) (value any, err error) {
	defer func() {
		if p := recover(); p != nil {
			value = nil
			err = &ToolExecutionError{Tool: tool.Name, Err: &panicError{p: p}, Panic: true}
		}
	}()

	// The callback gets its own copy; the original belongs to a message in history.
	input = maps.Clone(input)
	if input == nil {
		input = map[string]any{}
	}
	if appCtx == nil {
		appCtx = map[string]any{}
	}

	switch cb := tool.Callback.(type) {
	case MethodRef:
		var fn reflect.Value
		fn, err = cb.resolve()
		if err == nil {
			args := append(slices.Clone(cb.Args), input, appCtx)
			value, err = callReflect(ctx, fn, args)
		}
	case UnaryFunc:
		if cb == nil {
			err = fmt.Errorf("%w: nil unary callback", ErrSignatureMismatch)
			break
		}
		input[ContextKey] = appCtx
		value, err = cb(ctx, input)
	case BinaryFunc:
		if cb == nil {
			err = fmt.Errorf("%w: nil binary callback", ErrSignatureMismatch)
			break
		}
		value, err = cb(ctx, input, appCtx)
	case DynamicFunc:
		value, err = callReflect(ctx, reflect.ValueOf(cb.Fn), []any{input})
	default:
		err = fmt.Errorf("%w: unsupported callback %T", ErrSignatureMismatch, tool.Callback)
	}

	if err != nil {
		var te *ToolExecutionError
		if !errors.As(err, &te) {
			err = &ToolExecutionError{Tool: tool.Name, Err: err}
		}
		return nil, err
	}
	return value, nil
}

func (m MethodRef) resolve() (reflect.Value, error) {
	if m.Target == nil {
		return reflect.Value{}, fmt.Errorf("%w: method %q has no target", ErrSignatureMismatch, m.Method)
	}
	fn := reflect.ValueOf(m.Target).MethodByName(m.Method)
	if !fn.IsValid() {
		return reflect.Value{}, fmt.Errorf("%w: %T has no method %q", ErrSignatureMismatch, m.Target, m.Method)
	}
	return fn, nil
}

// callReflect calls fn with args, prepending ctx when the first parameter is a
// context.Context. Results may be (), (v), (err) or (v, err).
func callReflect(ctx context.Context, fn reflect.Value, args []any) (any, error) {
	if !fn.IsValid() || fn.Kind() != reflect.Func || fn.IsNil() {
		return nil, fmt.Errorf("%w: not a function", ErrSignatureMismatch)
	}
	t := fn.Type()
	if t.IsVariadic() {
		return nil, fmt.Errorf("%w: variadic functions are not supported", ErrSignatureMismatch)
	}
	if t.NumOut() > 2 || (t.NumOut() == 2 && t.Out(1) != errorType) {
		return nil, fmt.Errorf("%w: results must be (), (value), (error) or (value, error); got %s", ErrSignatureMismatch, t)
	}

	var in []reflect.Value
	offset := 0
	if t.NumIn() > 0 && t.In(0) == contextType {
		in = append(in, reflect.ValueOf(&ctx).Elem())
		offset = 1
	}
	if t.NumIn()-offset != len(args) {
		return nil, fmt.Errorf("%w: %s takes %d argument(s), call supplies %d", ErrSignatureMismatch, t, t.NumIn()-offset, len(args))
	}
	for i, a := range args {
		param := t.In(i + offset)
		v, err := argValue(a, param)
		if err != nil {
			return nil, fmt.Errorf("%w: argument %d: %v", ErrSignatureMismatch, i, err)
		}
		in = append(in, v)
	}

	out := fn.Call(in)
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if t.Out(0) == errorType {
			return nil, asError(out[0])
		}
		return out[0].Interface(), nil
	default:
		if err := asError(out[1]); err != nil {
			return nil, err
		}
		return out[0].Interface(), nil
	}
}

func argValue(a any, param reflect.Type) (reflect.Value, error) {
	if a == nil {
		switch param.Kind() {
		case reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(param), nil
		}
		return reflect.Value{}, fmt.Errorf("nil is not assignable to %s", param)
	}
	v := reflect.ValueOf(a)
	if !v.Type().AssignableTo(param) {
		return reflect.Value{}, fmt.Errorf("%s is not assignable to %s", v.Type(), param)
	}
	return v, nil
}

func asError(v reflect.Value) error {
	if v.IsNil() {
		return nil
	}
	return v.Interface().(error)
}
