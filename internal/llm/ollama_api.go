package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/soyeahso/chainkit/internal/version"
)

// DefaultOllamaURL is used when no base URL is configured.
const DefaultOllamaURL = "http://localhost:11434"

// OllamaAPIClient is a direct HTTP client for the Ollama chat API.
type OllamaAPIClient struct {
	baseURL string
	headers map[string]string
	client  *http.Client
}

// OllamaOption configures an OllamaAPIClient.
type OllamaOption func(*OllamaAPIClient)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(c *http.Client) OllamaOption {
	return func(o *OllamaAPIClient) { o.client = c }
}

// WithHeaders adds headers to every request (e.g. for an authenticating proxy).
func WithHeaders(h map[string]string) OllamaOption {
	return func(o *OllamaAPIClient) { o.headers = maps.Clone(h) }
}

// NewOllamaAPIClient creates a new Ollama API client.
// baseURL should be like "http://localhost:11434"
func NewOllamaAPIClient(baseURL string, opts ...OllamaOption) *OllamaAPIClient {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	o := &OllamaAPIClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Name returns the provider name.
func (o *OllamaAPIClient) Name() string {
	return "ollama"
}

// Complete sends a non-streaming chat request.
func (o *OllamaAPIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	resp, err := o.post(ctx, req, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: o.Name(), Message: "failed to read response: " + err.Error()}
	}

	var result ollamaChatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &ProviderError{Provider: o.Name(), Message: "failed to parse response: " + err.Error()}
	}

	out := result.toCompletion()
	out.Duration = time.Since(start)
	return out, nil
}

// Stream sends a streaming chat request. Ollama answers with one JSON object per line.
func (o *OllamaAPIClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error) {
	resp, err := o.post(ctx, req, true)
	if err != nil {
		return nil, err
	}

	eventChan := make(chan StreamEvent)
	go o.readStream(ctx, resp.Body, eventChan)
	return eventChan, nil
}

func (o *OllamaAPIClient) post(ctx context.Context, req CompletionRequest, stream bool) (*http.Response, error) {
	payload, err := json.Marshal(o.buildRequestBody(req, stream))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", version.UserAgent())
	for k, v := range o.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{Provider: o.Name(), Message: "request failed: " + err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, &ProviderError{Provider: o.Name(), Code: resp.StatusCode, Message: ollamaErrorMessage(body)}
	}
	return resp, nil
}

func (o *OllamaAPIClient) buildRequestBody(req CompletionRequest, stream bool) map[string]any {
	body := map[string]any{
		"model":    req.Model,
		"messages": messagesToOllama(req.Messages),
		"stream":   stream,
	}

	options := map[string]any{}
	if req.Temperature != nil {
		options["temperature"] = *req.Temperature
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	if len(options) > 0 {
		body["options"] = options
	}

	if len(req.Tools) > 0 {
		tools := make([]ollamaTool, len(req.Tools))
		for i, t := range req.Tools {
			params := t.Parameters
			if params == nil {
				params = map[string]any{"type": "object", "properties": map[string]any{}}
			}
			tools[i] = ollamaTool{
				Type: "function",
				Function: ollamaToolSchema{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  params,
				},
			}
		}
		body["tools"] = tools
	}

	// Caller-supplied parameters win over what the adapter built.
	maps.Copy(body, req.Extra)
	return body
}

func (o *OllamaAPIClient) readStream(ctx context.Context, body io.ReadCloser, eventChan chan<- StreamEvent) {
	defer close(eventChan)
	defer body.Close()

	send := func(evt StreamEvent) bool {
		select {
		case eventChan <- evt:
			return true
		case <-ctx.Done():
			return false
		}
	}

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		fullContent strings.Builder
		calls       []ToolCall
		final       ollamaChatResponse
	)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var event ollamaChatResponse
		if err := json.Unmarshal(line, &event); err != nil {
			continue
		}
		if event.Error != "" {
			send(StreamEvent{Type: EventError, Error: event.Error})
			return
		}

		if event.Message.Content != "" {
			fullContent.WriteString(event.Message.Content)
			if !send(StreamEvent{Type: EventDelta, Content: event.Message.Content}) {
				return
			}
		}
		calls = append(calls, toolCallsFromOllama(event.Message.ToolCalls)...)
		if event.Done {
			final = event
		}
	}
	if err := scanner.Err(); err != nil {
		send(StreamEvent{Type: EventError, Error: fmt.Sprintf("stream read failed: %v", err)})
		return
	}

	final.Message = ollamaMessage{}
	resp := final.toCompletion()
	resp.Message = assistantMessage(fullContent.String(), calls)
	send(StreamEvent{Type: EventDone, Response: resp})
}

func messagesToOllama(msgs []Message) []ollamaMessage {
	out := make([]ollamaMessage, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleTool:
			for _, p := range m.Content {
				if p.Type != PartToolResult || p.ToolResult == nil {
					continue
				}
				out = append(out, ollamaMessage{
					Role:     RoleTool,
					Content:  encodeToolValue(p.ToolResult.Value),
					ToolName: p.ToolResult.Name,
				})
			}
		default:
			om := ollamaMessage{Role: m.Role, Content: m.Text()}
			for _, tc := range m.ToolCalls() {
				om.ToolCalls = append(om.ToolCalls, ollamaToolCall{
					Function: ollamaFunction{Name: tc.Name, Arguments: tc.Input},
				})
			}
			out = append(out, om)
		}
	}
	return out
}

// encodeToolValue renders a tool result for the wire. Strings pass through as is.
func encodeToolValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// toolCallsFromOllama converts wire tool calls. Ollama does not assign call ids, so
// one is minted for each call to correlate the results.
func toolCallsFromOllama(calls []ollamaToolCall) []ToolCall {
	out := make([]ToolCall, 0, len(calls))
	for _, c := range calls {
		id := c.ID
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		input := c.Function.Arguments
		if input == nil {
			input = map[string]any{}
		}
		out = append(out, ToolCall{ID: id, Name: c.Function.Name, Input: input})
	}
	return out
}

func assistantMessage(text string, calls []ToolCall) Message {
	msg := Message{Role: RoleAssistant}
	if text != "" || len(calls) == 0 {
		msg.Content = append(msg.Content, TextPart(text))
	}
	for _, c := range calls {
		msg.Content = append(msg.Content, ToolCallPart(c))
	}
	return msg
}

func ollamaErrorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}

// Wire structures

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
	ToolName  string           `json:"tool_name,omitempty"`
}

type ollamaToolCall struct {
	ID       string         `json:"id,omitempty"`
	Function ollamaFunction `json:"function"`
}

type ollamaFunction struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type ollamaTool struct {
	Type     string           `json:"type"`
	Function ollamaToolSchema `json:"function"`
}

type ollamaToolSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type ollamaChatResponse struct {
	Model           string        `json:"model"`
	CreatedAt       string        `json:"created_at"`
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	DoneReason      string        `json:"done_reason"`
	TotalDuration   int64         `json:"total_duration"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
	Error           string        `json:"error,omitempty"`
}

func (r ollamaChatResponse) toCompletion() *CompletionResponse {
	return &CompletionResponse{
		Message:    assistantMessage(r.Message.Content, toolCallsFromOllama(r.Message.ToolCalls)),
		StopReason: r.DoneReason,
		Model:      r.Model,
		Usage: Usage{
			InputTokens:  r.PromptEvalCount,
			OutputTokens: r.EvalCount,
		},
	}
}
