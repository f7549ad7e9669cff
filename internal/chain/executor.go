package chain

import (
	"context"
	"fmt"
	"sync"

	"github.com/soyeahso/chainkit/internal/llm"
)

// CallFunc runs a single tool call and always yields a result.
type CallFunc func(ctx context.Context, call llm.ToolCall) llm.ToolResult

// Executor dispatches one response's batch of tool calls. It must return exactly
// one result per call, in request order. A returned error means the batch could not
// be run at all and ends the loop.
type Executor interface {
	ExecuteBatch(ctx context.Context, calls []llm.ToolCall, run CallFunc) ([]llm.ToolResult, error)
}

// SequentialExecutor runs calls one after another on the caller's goroutine.
type SequentialExecutor struct{}

func (SequentialExecutor) ExecuteBatch(ctx context.Context, calls []llm.ToolCall, run CallFunc) ([]llm.ToolResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	results := make([]llm.ToolResult, len(calls))
	for i, call := range calls {
		results[i] = run(ctx, call)
	}
	return results, nil
}

// ParallelExecutor runs all calls of a batch concurrently and returns results in
// request order. MaxConcurrency bounds in-flight calls; zero or negative means
// unbounded.
type ParallelExecutor struct {
	MaxConcurrency int
}

func (p ParallelExecutor) ExecuteBatch(ctx context.Context, calls []llm.ToolCall, run CallFunc) ([]llm.ToolResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(calls) == 0 {
		return nil, nil
	}

	var sem chan struct{}
	if p.MaxConcurrency > 0 {
		sem = make(chan struct{}, p.MaxConcurrency)
	}

	results := make([]llm.ToolResult, len(calls))
	var (
		wg       sync.WaitGroup
		firstErr error
		errMu    sync.Mutex
	)
	for i, call := range calls {
		i, call := i, call // per-iteration copies (go1.21 loop semantics)
		if sem != nil {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				wg.Wait()
				return nil, fmt.Errorf("acquiring slot for call %q: %w", call.ID, ctx.Err())
			}
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if sem != nil {
				defer func() { <-sem }()
			}
			// run recovers tool panics itself; anything reaching here is an executor fault.
			defer func() {
				if r := recover(); r != nil {
					errMu.Lock()
					if firstErr == nil {
						firstErr = &panicError{p: r}
					}
					errMu.Unlock()
				}
			}()
			results[i] = run(ctx, call)
		}()
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

var (
	_ Executor = SequentialExecutor{}
	_ Executor = ParallelExecutor{}
)
