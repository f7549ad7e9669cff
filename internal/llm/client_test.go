package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/soyeahso/chainkit/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

// --- Registry tests ---

func TestRegistryRegisterAndResolve(t *testing.T) {
	reg := NewRegistry(silentLog())

	mock := &MockClient{ProviderName: "test-provider"}
	reg.Register("test-provider", mock)

	m, err := reg.Resolve("test-provider:some-model")
	require.NoError(t, err)
	assert.Equal(t, "test-provider", m.Client.Name())
	assert.Equal(t, "some-model", m.Name)
	assert.Equal(t, "test-provider:some-model", m.String())
}

func TestRegistryAlias(t *testing.T) {
	reg := NewRegistry(silentLog())

	mock := &MockClient{ProviderName: "ollama"}
	reg.Register("ollama", mock)
	reg.Alias("local", "ollama")

	m, err := reg.Resolve("local:llama3")
	require.NoError(t, err)
	assert.Equal(t, "ollama", m.Client.Name())
	assert.Equal(t, "local", m.Provider)
}

func TestRegistryAliasToMissingProvider(t *testing.T) {
	reg := NewRegistry(silentLog())
	reg.Alias("local", "ollama")

	_, ok := reg.Lookup("local")
	assert.False(t, ok)
}

func TestRegistryUnknownProvider(t *testing.T) {
	reg := NewRegistry(silentLog())
	reg.Register("ollama", &MockClient{ProviderName: "ollama"})

	_, err := reg.Resolve("nonexistent:model")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownProvider)
	assert.Contains(t, err.Error(), "ollama")
}

func TestRegistryNoFallback(t *testing.T) {
	reg := NewRegistry(silentLog())
	reg.Register("only", &MockClient{ProviderName: "only"})

	_, err := reg.Resolve("other:model")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestRegistryResolveSpec(t *testing.T) {
	reg := NewRegistry(silentLog())
	reg.Register("ollama", &MockClient{ProviderName: "ollama"})

	opts := map[string]any{"num_ctx": 8192}
	m, err := reg.ResolveSpec(ModelSpec{Provider: "ollama", Model: "qwen2.5", Options: opts})
	require.NoError(t, err)
	assert.Equal(t, 8192, m.Options["num_ctx"])

	opts["num_ctx"] = 1
	assert.Equal(t, 8192, m.Options["num_ctx"])

	_, err = reg.ResolveSpec(ModelSpec{Provider: "ollama"})
	assert.ErrorIs(t, err, ErrMalformedModel)
}

func TestRegistryList(t *testing.T) {
	reg := NewRegistry(silentLog())
	reg.Register("b", &MockClient{ProviderName: "b"})
	reg.Register("a", &MockClient{ProviderName: "a"})

	assert.Equal(t, []string{"a", "b"}, reg.List())
}

func TestRegistryNilLogger(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Register("x", &MockClient{ProviderName: "x"})
	_, ok := reg.Lookup("x")
	assert.True(t, ok)
}

// --- ModelSpec tests ---

func TestParseModelSpec(t *testing.T) {
	tests := []struct {
		in       string
		provider string
		model    string
		wantErr  bool
	}{
		{"ollama:llama3", "ollama", "llama3", false},
		{"ollama:llama3:8b", "ollama", "llama3:8b", false},
		{"  ollama:qwen  ", "ollama", "qwen", false},
		{"llama3", "", "", true},
		{":llama3", "", "", true},
		{"ollama:", "", "", true},
		{"", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			spec, err := ParseModelSpec(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedModel)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.provider, spec.Provider)
			assert.Equal(t, tt.model, spec.Model)
			assert.Equal(t, tt.provider+":"+tt.model, spec.String())
		})
	}
}

// --- Mock client tests ---

func TestMockClientComplete(t *testing.T) {
	mock := &MockClient{ProviderName: "mock"}
	resp, err := mock.Complete(context.Background(), CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "mock response", resp.Text())
	assert.Equal(t, RoleAssistant, resp.Message.Role)
}

func TestMockClientCustomComplete(t *testing.T) {
	mock := &MockClient{
		ProviderName: "mock",
		CompleteFunc: func(_ context.Context, req CompletionRequest) (*CompletionResponse, error) {
			return &CompletionResponse{
				Message: TextMessage(RoleAssistant, "custom: "+req.Model),
				Usage:   Usage{InputTokens: 10, OutputTokens: 5},
			}, nil
		},
	}

	resp, err := mock.Complete(context.Background(), CompletionRequest{Model: "test-model"})
	require.NoError(t, err)
	assert.Equal(t, "custom: test-model", resp.Text())
	assert.Equal(t, 10, resp.Usage.InputTokens)
}

func TestMockClientStream(t *testing.T) {
	mock := &MockClient{ProviderName: "mock"}
	ch, err := mock.Stream(context.Background(), CompletionRequest{})
	require.NoError(t, err)

	var events []StreamEvent
	for evt := range ch {
		events = append(events, evt)
	}
	require.Len(t, events, 2)
	assert.Equal(t, EventDelta, events[0].Type)
	assert.Equal(t, EventDone, events[1].Type)
	assert.NotNil(t, events[1].Response)
}

func TestMockClientError(t *testing.T) {
	mock := &MockClient{
		ProviderName: "mock",
		CompleteFunc: func(_ context.Context, _ CompletionRequest) (*CompletionResponse, error) {
			return nil, fmt.Errorf("service unavailable")
		},
	}

	_, err := mock.Complete(context.Background(), CompletionRequest{})
	assert.Error(t, err)
}

func TestScriptedClient(t *testing.T) {
	s := &ScriptedClient{Responses: []*CompletionResponse{
		{Message: TextMessage(RoleAssistant, "one")},
		{Message: TextMessage(RoleAssistant, "two")},
	}}

	var got []string
	for i := 0; i < 3; i++ {
		resp, err := s.Complete(context.Background(), CompletionRequest{Model: "m"})
		require.NoError(t, err)
		got = append(got, resp.Text())
	}
	assert.Equal(t, []string{"one", "two", "two"}, got)
	assert.Len(t, s.Requests(), 3)
	assert.Equal(t, "scripted", s.Name())

	empty := &ScriptedClient{}
	_, err := empty.Complete(context.Background(), CompletionRequest{})
	assert.Error(t, err)
}

// --- Message tests ---

func TestMessageParts(t *testing.T) {
	msg := Message{
		Role: RoleAssistant,
		Content: []ContentPart{
			TextPart("a"),
			ToolCallPart(ToolCall{ID: "1", Name: "calc"}),
			TextPart("b"),
			ToolCallPart(ToolCall{ID: "2", Name: "clock"}),
		},
	}

	assert.Equal(t, "ab", msg.Text())
	assert.True(t, msg.HasToolCalls())
	calls := msg.ToolCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "calc", calls[0].Name)
	assert.Equal(t, "clock", calls[1].Name)

	assert.False(t, TextMessage(RoleUser, "hi").HasToolCalls())
}

func TestToolResultMessage(t *testing.T) {
	msg := ToolResultMessage(ToolResult{ID: "call_1", Name: "calc", Value: 4})
	assert.Equal(t, RoleTool, msg.Role)
	assert.Equal(t, "call_1", msg.ToolCallID)
	require.Len(t, msg.Content, 1)
	assert.Equal(t, PartToolResult, msg.Content[0].Type)
	assert.Equal(t, 4, msg.Content[0].ToolResult.Value)
	assert.Equal(t, "", msg.Text())
}

func TestCompletionRequestJSON(t *testing.T) {
	temp := 0.7
	req := CompletionRequest{
		Model:       "llama3",
		Messages:    []Message{TextMessage(RoleUser, "hello")},
		MaxTokens:   1024,
		Temperature: &temp,
	}

	data, err := json.Marshal(req)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "llama3", raw["model"])
	assert.Equal(t, 0.7, raw["temperature"])
	assert.NotContains(t, raw, "tools")
	assert.NotContains(t, raw, "extra")
}

func TestProviderError(t *testing.T) {
	err := &ProviderError{Provider: "ollama", Message: "rate limited", Code: 429}
	assert.Equal(t, "ollama: 429 rate limited", err.Error())

	err2 := &ProviderError{Provider: "ollama", Message: "timeout"}
	assert.Equal(t, "ollama: timeout", err2.Error())
}

func TestCompletionResponseTextNil(t *testing.T) {
	var resp *CompletionResponse
	assert.Equal(t, "", resp.Text())
}
