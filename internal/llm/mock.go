package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockClient is a test double for Client.
type MockClient struct {
	ProviderName string
	CompleteFunc func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	StreamFunc   func(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error)
}

func (m *MockClient) Name() string { return m.ProviderName }

func (m *MockClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return &CompletionResponse{Message: TextMessage(RoleAssistant, "mock response")}, nil
}

func (m *MockClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error) {
	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, req)
	}
	ch := make(chan StreamEvent, 2)
	ch <- StreamEvent{Type: EventDelta, Content: "mock "}
	ch <- StreamEvent{
		Type:     EventDone,
		Response: &CompletionResponse{Message: TextMessage(RoleAssistant, "mock stream response")},
	}
	close(ch)
	return ch, nil
}

// ScriptedClient replays a fixed sequence of responses and records every request it
// receives. Once the script runs out, the last response is repeated.
type ScriptedClient struct {
	ProviderName string
	Responses    []*CompletionResponse

	mu       sync.Mutex
	requests []CompletionRequest
}

func (s *ScriptedClient) Name() string {
	if s.ProviderName == "" {
		return "scripted"
	}
	return s.ProviderName
}

func (s *ScriptedClient) Complete(_ context.Context, req CompletionRequest) (*CompletionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Responses) == 0 {
		return nil, fmt.Errorf("scripted client has no responses")
	}
	i := min(len(s.requests), len(s.Responses)-1)
	s.requests = append(s.requests, req)
	resp := *s.Responses[i]
	return &resp, nil
}

func (s *ScriptedClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error) {
	resp, err := s.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	ch := make(chan StreamEvent, 2)
	ch <- StreamEvent{Type: EventDelta, Content: resp.Text()}
	ch <- StreamEvent{Type: EventDone, Response: resp}
	close(ch)
	return ch, nil
}

// Requests returns a copy of the requests received so far.
func (s *ScriptedClient) Requests() []CompletionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]CompletionRequest(nil), s.requests...)
}
