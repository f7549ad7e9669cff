package llm

import "strings"

// PartType identifies the kind of a ContentPart.
type PartType string

const (
	PartText       PartType = "text"
	PartToolCall   PartType = "tool_call"
	PartToolResult PartType = "tool_result"
)

// ToolCall is a model request to invoke a tool.
type ToolCall struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input,omitempty"`
}

// ToolResult is the outcome of one ToolCall. ID always equals the request ID.
type ToolResult struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Value   any    `json:"value,omitempty"`
	IsError bool   `json:"isError,omitempty"`
}

// ContentPart is one typed piece of a message. Exactly one of Text, ToolCall or
// ToolResult is meaningful, selected by Type.
type ContentPart struct {
	Type       PartType    `json:"type"`
	Text       string      `json:"text,omitempty"`
	ToolCall   *ToolCall   `json:"toolCall,omitempty"`
	ToolResult *ToolResult `json:"toolResult,omitempty"`
}

// TextPart returns a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Type: PartText, Text: text}
}

// ToolCallPart returns a tool-call request part.
func ToolCallPart(call ToolCall) ContentPart {
	return ContentPart{Type: PartToolCall, ToolCall: &call}
}

// ToolResultPart returns a tool-call result part.
func ToolResultPart(result ToolResult) ContentPart {
	return ContentPart{Type: PartToolResult, ToolResult: &result}
}

// Message is a single turn in a conversation.
type Message struct {
	Role       string        `json:"role"` // "system", "user", "assistant", "tool"
	Content    []ContentPart `json:"content"`
	ToolCallID string        `json:"toolCallId,omitempty"`
}

// TextMessage builds a single-part text message.
func TextMessage(role, text string) Message {
	return Message{Role: role, Content: []ContentPart{TextPart(text)}}
}

// ToolResultMessage builds the tool-role message that carries one result.
func ToolResultMessage(result ToolResult) Message {
	return Message{
		Role:       RoleTool,
		Content:    []ContentPart{ToolResultPart(result)},
		ToolCallID: result.ID,
	}
}

// Text concatenates the text parts of the message in order.
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.Content {
		if p.Type == PartText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// ToolCalls returns the tool-call request parts of the message in order.
func (m Message) ToolCalls() []ToolCall {
	var calls []ToolCall
	for _, p := range m.Content {
		if p.Type == PartToolCall && p.ToolCall != nil {
			calls = append(calls, *p.ToolCall)
		}
	}
	return calls
}

// HasToolCalls reports whether the message contains at least one tool-call request.
func (m Message) HasToolCalls() bool {
	for _, p := range m.Content {
		if p.Type == PartToolCall && p.ToolCall != nil {
			return true
		}
	}
	return false
}
