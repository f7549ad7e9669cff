package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feed(events ...StreamEvent) <-chan StreamEvent {
	ch := make(chan StreamEvent, len(events))
	for _, e := range events {
		ch <- e
	}
	close(ch)
	return ch
}

func TestCollect_ConcatenatesDeltas(t *testing.T) {
	resp, err := Collect(feed(
		StreamEvent{Type: EventDelta, Content: "Hello, "},
		StreamEvent{Type: EventDelta, Content: "world"},
		StreamEvent{Type: EventDone, Response: &CompletionResponse{StopReason: "stop", Usage: Usage{OutputTokens: 3}}},
	))
	require.NoError(t, err)
	assert.Equal(t, "Hello, world", resp.Text())
	assert.Equal(t, RoleAssistant, resp.Message.Role)
	assert.Equal(t, "stop", resp.StopReason)
	assert.Equal(t, 3, resp.Usage.OutputTokens)
}

func TestCollect_DoneTextWins(t *testing.T) {
	resp, err := Collect(feed(
		StreamEvent{Type: EventDelta, Content: "partial"},
		StreamEvent{Type: EventDone, Response: &CompletionResponse{Message: TextMessage(RoleAssistant, "full")}},
	))
	require.NoError(t, err)
	assert.Equal(t, "full", resp.Text())
}

func TestCollect_KeepsToolCalls(t *testing.T) {
	done := &CompletionResponse{Message: Message{
		Role:    RoleAssistant,
		Content: []ContentPart{ToolCallPart(ToolCall{ID: "c1", Name: "calc"})},
	}}
	resp, err := Collect(feed(
		StreamEvent{Type: EventDelta, Content: "thinking"},
		StreamEvent{Type: EventDone, Response: done},
	))
	require.NoError(t, err)
	assert.Equal(t, "thinking", resp.Text())
	assert.Len(t, resp.Message.ToolCalls(), 1)
}

func TestCollect_Error(t *testing.T) {
	_, err := Collect(feed(
		StreamEvent{Type: EventDelta, Content: "x"},
		StreamEvent{Type: EventError, Error: "model crashed"},
		StreamEvent{Type: EventDelta, Content: "ignored"},
	))
	assert.EqualError(t, err, "model crashed")
}

func TestCollect_Incomplete(t *testing.T) {
	_, err := Collect(feed(StreamEvent{Type: EventDelta, Content: "x"}))
	assert.ErrorIs(t, err, ErrStreamIncomplete)
}

func TestCollect_NilDoneResponse(t *testing.T) {
	resp, err := Collect(feed(StreamEvent{Type: EventDone}))
	require.NoError(t, err)
	assert.Equal(t, "", resp.Text())
	assert.Equal(t, RoleAssistant, resp.Message.Role)
}
