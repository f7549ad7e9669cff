package chain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Use errors.Is to check; the typed errors below unwrap to them.
var (
	ErrInvalidModelSpec  = errors.New("invalid model spec")
	ErrInvalidRole       = errors.New("invalid message role")
	ErrBudgetExhausted   = errors.New("iteration budget exhausted")
	ErrToolNotFound      = errors.New("tool not found")
	ErrToolExecution     = errors.New("tool execution failed")
	ErrExecutor          = errors.New("tool executor failed")
	ErrSignatureMismatch = errors.New("callback signature mismatch")
)

// ModelSpecError reports a model reference that New could not resolve.
type ModelSpecError struct {
	Spec string
	Err  error
}

func (e *ModelSpecError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid model spec %q: %v", e.Spec, e.Err)
	}
	return fmt.Sprintf("invalid model spec %q", e.Spec)
}

func (e *ModelSpecError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvalidModelSpec}
	}
	return []error{ErrInvalidModelSpec, e.Err}
}

// BudgetExhaustedError is returned by RunUntilDone when every iteration ended in
// tool calls. Chain holds the conversation as it stood when the budget ran out.
type BudgetExhaustedError struct {
	Iterations int
	Chain      Chain
}

func (e *BudgetExhaustedError) Error() string {
	return fmt.Sprintf("iteration budget exhausted after %d iteration(s)", e.Iterations)
}

func (e *BudgetExhaustedError) Unwrap() error { return ErrBudgetExhausted }

// ToolNotFoundError describes a tool call naming a tool that is not registered.
// It never aborts the loop; it is folded into history as an error result.
type ToolNotFoundError struct {
	Name      string
	Available []string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("tool %q not found (available: %s)", e.Name, strings.Join(e.Available, ", "))
}

func (e *ToolNotFoundError) Unwrap() error { return ErrToolNotFound }

// ToolExecutionError wraps a callback failure: an error return, a recovered panic
// or a signature that does not fit the call.
type ToolExecutionError struct {
	Tool  string
	Err   error
	Panic bool
}

func (e *ToolExecutionError) Error() string {
	if e.Panic {
		return fmt.Sprintf("tool %q panicked: %v", e.Tool, e.Err)
	}
	return fmt.Sprintf("tool %q failed: %v", e.Tool, e.Err)
}

func (e *ToolExecutionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrToolExecution}
	}
	return []error{ErrToolExecution, e.Err}
}

// ExecutorError means the batch of tool calls could not be dispatched at all.
// Unlike per-tool failures it ends the loop.
type ExecutorError struct {
	Err error
}

func (e *ExecutorError) Error() string {
	return fmt.Sprintf("tool executor: %v", e.Err)
}

func (e *ExecutorError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrExecutor}
	}
	return []error{ErrExecutor, e.Err}
}

// panicError wraps a recovered panic value.
type panicError struct{ p any }

func (e *panicError) Error() string {
	return "panic: " + fmt.Sprint(e.p)
}
