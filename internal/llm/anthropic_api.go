package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/soyeahso/chainkit/internal/version"
)

// DefaultAnthropicMaxTokens is sent when a request does not set MaxTokens; the
// Messages API requires one.
const DefaultAnthropicMaxTokens = 1024

// AnthropicAPIClient talks to the Anthropic Messages API through the official SDK.
type AnthropicAPIClient struct {
	client    anthropic.Client
	maxTokens int64
}

// AnthropicConfig configures an AnthropicAPIClient. Empty fields fall back to the
// SDK defaults (ANTHROPIC_API_KEY, the public endpoint).
type AnthropicConfig struct {
	APIKey     string
	BaseURL    string
	MaxTokens  int
	HTTPClient *http.Client
	MaxRetries *int
}

// NewAnthropicAPIClient creates a new Anthropic client.
func NewAnthropicAPIClient(cfg AnthropicConfig) *AnthropicAPIClient {
	opts := []option.RequestOption{option.WithHeader("User-Agent", version.UserAgent())}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	if cfg.MaxRetries != nil {
		opts = append(opts, option.WithMaxRetries(*cfg.MaxRetries))
	}

	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = DefaultAnthropicMaxTokens
	}
	return &AnthropicAPIClient{client: anthropic.NewClient(opts...), maxTokens: maxTokens}
}

// Name returns the provider name.
func (a *AnthropicAPIClient) Name() string {
	return "anthropic"
}

// Complete sends a non-streaming Messages request.
func (a *AnthropicAPIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	params, opts := a.buildParams(req)
	msg, err := a.client.Messages.New(ctx, params, opts...)
	if err != nil {
		return nil, a.providerError(err)
	}

	out, err := a.completion(msg)
	if err != nil {
		return nil, err
	}
	out.Duration = time.Since(start)
	return out, nil
}

// Stream sends a streaming Messages request. Text deltas are forwarded as they
// arrive; the done event carries the accumulated message, tool calls included.
func (a *AnthropicAPIClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error) {
	params, opts := a.buildParams(req)
	stream := a.client.Messages.NewStreaming(ctx, params, opts...)

	eventChan := make(chan StreamEvent)
	go func() {
		defer close(eventChan)
		defer stream.Close()

		send := func(evt StreamEvent) bool {
			select {
			case eventChan <- evt:
				return true
			case <-ctx.Done():
				return false
			}
		}

		var msg anthropic.Message
		for stream.Next() {
			event := stream.Current()
			if err := msg.Accumulate(event); err != nil {
				send(StreamEvent{Type: EventError, Error: "failed to accumulate stream: " + err.Error()})
				return
			}
			if delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
				if text, ok := delta.Delta.AsAny().(anthropic.TextDelta); ok && text.Text != "" {
					if !send(StreamEvent{Type: EventDelta, Content: text.Text}) {
						return
					}
				}
			}
		}
		if err := stream.Err(); err != nil {
			send(StreamEvent{Type: EventError, Error: a.providerError(err).Error()})
			return
		}
		out, err := a.completion(&msg)
		if err != nil {
			send(StreamEvent{Type: EventError, Error: err.Error()})
			return
		}
		send(StreamEvent{Type: EventDone, Response: out})
	}()
	return eventChan, nil
}

func (a *AnthropicAPIClient) buildParams(req CompletionRequest) (anthropic.MessageNewParams, []option.RequestOption) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: a.maxTokens,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = int64(req.MaxTokens)
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	params.System, params.Messages = messagesToAnthropic(req.Messages)

	for _, t := range req.Tools {
		schema := anthropic.ToolInputSchemaParam{Properties: t.Parameters["properties"]}
		switch names := t.Parameters["required"].(type) {
		case []string:
			schema.Required = names
		case []any:
			for _, r := range names {
				if s, ok := r.(string); ok {
					schema.Required = append(schema.Required, s)
				}
			}
		}
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: schema,
		}})
	}

	// Caller-supplied parameters are set on the JSON body as is.
	var opts []option.RequestOption
	for k, v := range req.Extra {
		opts = append(opts, option.WithJSONSet(k, v))
	}
	return params, opts
}

// messagesToAnthropic splits out system text and converts the rest. Consecutive
// tool results are grouped into one user turn, as the API expects.
func messagesToAnthropic(msgs []Message) ([]anthropic.TextBlockParam, []anthropic.MessageParam) {
	var (
		system  []anthropic.TextBlockParam
		out     []anthropic.MessageParam
		results []anthropic.ContentBlockParamUnion
	)
	flush := func() {
		if len(results) > 0 {
			out = append(out, anthropic.NewUserMessage(results...))
			results = nil
		}
	}

	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: m.Text()})
		case RoleTool:
			for _, p := range m.Content {
				if p.Type == PartToolResult && p.ToolResult != nil {
					r := p.ToolResult
					results = append(results, anthropic.NewToolResultBlock(r.ID, encodeToolValue(r.Value), r.IsError))
				}
			}
		case RoleAssistant:
			flush()
			var blocks []anthropic.ContentBlockParamUnion
			if text := m.Text(); text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(text))
			}
			for _, tc := range m.ToolCalls() {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, tc.Input, tc.Name))
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		default:
			flush()
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Text())))
		}
	}
	flush()
	return system, out
}

// completion converts an API message. A tool_use block whose input is not a JSON
// object is reported as a provider error.
func (a *AnthropicAPIClient) completion(msg *anthropic.Message) (*CompletionResponse, error) {
	var (
		text  strings.Builder
		calls []ToolCall
	)
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			input := map[string]any{}
			if len(block.Input) > 0 {
				if err := json.Unmarshal(block.Input, &input); err != nil {
					return nil, &ProviderError{
						Provider: a.Name(),
						Message:  fmt.Sprintf("malformed input for tool_use %s (%s): %v", block.ID, block.Name, err),
					}
				}
			}
			calls = append(calls, ToolCall{ID: block.ID, Name: block.Name, Input: input})
		}
	}

	return &CompletionResponse{
		Message:    assistantMessage(text.String(), calls),
		StopReason: string(msg.StopReason),
		Model:      string(msg.Model),
		Usage: Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}, nil
}

func (a *AnthropicAPIClient) providerError(err error) *ProviderError {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &ProviderError{Provider: a.Name(), Code: apiErr.StatusCode, Message: err.Error()}
	}
	return &ProviderError{Provider: a.Name(), Message: "request failed: " + err.Error()}
}
