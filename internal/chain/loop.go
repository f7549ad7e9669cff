package chain

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/soyeahso/chainkit/internal/llm"
)

// RunOnce sends the conversation to the model once and appends the reply. Tool
// calls in the reply are not executed.
func (c Chain) RunOnce(ctx context.Context) (Chain, *llm.CompletionResponse, error) {
	next, resp, err := c.dispatch(ctx, 1)
	if err != nil {
		return c, nil, err
	}
	return next, resp, nil
}

// RunUntilDone drives the dispatch and tool-execution cycle until the model
// answers without tool calls or maxIterations dispatches have been made.
//
// Provider errors are returned as the client produced them. When the budget runs
// out the returned Chain holds every completed cycle and the error is a
// *BudgetExhaustedError carrying that same Chain.
func (c Chain) RunUntilDone(ctx context.Context, maxIterations int) (Chain, *llm.CompletionResponse, error) {
	if maxIterations <= 0 {
		err := &BudgetExhaustedError{Iterations: 0, Chain: c}
		c.observe(ctx, Event{Kind: EventLoopDone, Model: c.model.String(), Err: err})
		return c, nil, err
	}

	cur := c
	for iteration := 1; iteration <= maxIterations; iteration++ {
		next, resp, err := cur.dispatch(ctx, iteration)
		if err != nil {
			cur.observe(ctx, Event{Kind: EventLoopDone, Iteration: iteration, Model: cur.model.String(), Err: err})
			return cur, nil, err
		}
		cur = next

		calls := resp.Message.ToolCalls()
		if len(calls) == 0 {
			cur.observe(ctx, Event{Kind: EventLoopDone, Iteration: iteration, Model: cur.model.String()})
			return cur, resp, nil
		}

		results, err := cur.executeBatch(ctx, iteration, calls)
		if err != nil {
			cur.observe(ctx, Event{Kind: EventLoopDone, Iteration: iteration, Model: cur.model.String(), Err: err})
			return cur, nil, err
		}
		for _, r := range results {
			cur = cur.appendMessages(llm.ToolResultMessage(r))
		}
	}

	err := &BudgetExhaustedError{Iterations: maxIterations, Chain: cur}
	cur.observe(ctx, Event{Kind: EventLoopDone, Iteration: maxIterations, Model: cur.model.String(), Err: err})
	return cur, nil, err
}

// Stream sends a single streaming request. The chain is returned unchanged; use
// llm.Collect and AppendResponse to fold the reply back in. Tool calls in a
// streamed reply are never executed.
func (c Chain) Stream(ctx context.Context) (Chain, <-chan llm.StreamEvent, error) {
	req := c.buildRequest()
	req.Stream = true
	c.observe(ctx, Event{Kind: EventDispatch, Iteration: 1, Model: c.model.String()})
	events, err := c.model.Client.Stream(ctx, req)
	if err != nil {
		c.observe(ctx, Event{Kind: EventResponse, Iteration: 1, Model: c.model.String(), Err: err})
		return c, nil, err
	}
	return c, events, nil
}

// dispatch performs one request and returns the chain with the reply appended.
func (c Chain) dispatch(ctx context.Context, iteration int) (Chain, *llm.CompletionResponse, error) {
	req := c.buildRequest()
	c.observe(ctx, Event{Kind: EventDispatch, Iteration: iteration, Model: c.model.String()})

	start := time.Now()
	resp, err := c.model.Client.Complete(ctx, req)
	dur := time.Since(start)
	if err != nil {
		c.observe(ctx, Event{Kind: EventResponse, Iteration: iteration, Model: c.model.String(), Duration: dur, Err: err})
		return c, nil, err
	}
	if resp == nil {
		err = fmt.Errorf("%s returned no response", c.model.Client.Name())
		c.observe(ctx, Event{Kind: EventResponse, Iteration: iteration, Model: c.model.String(), Duration: dur, Err: err})
		return c, nil, err
	}

	msg := responseMessage(resp)
	resp.Message = msg
	c.observe(ctx, Event{
		Kind:      EventResponse,
		Iteration: iteration,
		Model:     c.model.String(),
		ToolCalls: len(msg.ToolCalls()),
		Duration:  dur,
	})
	return c.appendMessages(msg), resp, nil
}

// executeBatch runs every call of one response through the executor and checks
// that the batch came back whole.
func (c Chain) executeBatch(ctx context.Context, iteration int, calls []llm.ToolCall) (results []llm.ToolResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			results = nil
			err = &ExecutorError{Err: &panicError{p: p}}
		}
	}()

	run := func(ctx context.Context, call llm.ToolCall) llm.ToolResult {
		return c.executeCall(ctx, iteration, call)
	}
	results, err = c.executor.ExecuteBatch(ctx, calls, run)
	if err != nil {
		return nil, &ExecutorError{Err: err}
	}
	if len(results) != len(calls) {
		return nil, &ExecutorError{Err: fmt.Errorf("got %d result(s) for %d call(s)", len(results), len(calls))}
	}
	for i := range results {
		if results[i].ID != calls[i].ID {
			return nil, &ExecutorError{Err: fmt.Errorf("result %d has id %q, want %q", i, results[i].ID, calls[i].ID)}
		}
	}
	return results, nil
}

func (c Chain) buildRequest() llm.CompletionRequest {
	var extra map[string]any
	if len(c.model.Options) > 0 || len(c.opts.Extra) > 0 {
		extra = make(map[string]any, len(c.model.Options)+len(c.opts.Extra))
		maps.Copy(extra, c.model.Options)
		maps.Copy(extra, c.opts.Extra)
	}

	var defs []llm.ToolDefinition
	if len(c.tools) > 0 {
		defs = make([]llm.ToolDefinition, len(c.tools))
		for i, t := range c.tools {
			defs[i] = t.Definition()
		}
	}

	return llm.CompletionRequest{
		Model:       c.model.Name,
		Messages:    c.Messages(),
		Tools:       defs,
		MaxTokens:   c.opts.MaxTokens,
		Temperature: c.opts.Temperature,
		Stream:      c.opts.Stream,
		Extra:       extra,
	}
}

func (c Chain) observe(ctx context.Context, e Event) {
	if c.observer == nil {
		return
	}
	c.observer.Observe(ctx, e)
}

// responseMessage normalizes a reply for history: the role defaults to assistant
// and tool calls without an id get one, so every result can be correlated.
func responseMessage(resp *llm.CompletionResponse) llm.Message {
	msg := resp.Message
	if msg.Role == "" {
		msg.Role = llm.RoleAssistant
	}
	if !msg.HasToolCalls() {
		return msg
	}
	parts := make([]llm.ContentPart, len(msg.Content))
	for i, p := range msg.Content {
		if p.Type == llm.PartToolCall && p.ToolCall != nil && p.ToolCall.ID == "" {
			call := *p.ToolCall
			call.ID = "call_" + uuid.NewString()
			p = llm.ToolCallPart(call)
		}
		parts[i] = p
	}
	msg.Content = parts
	return msg
}
