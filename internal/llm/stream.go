package llm

import (
	"errors"
	"strings"
)

// ErrStreamIncomplete is returned by Collect when the channel closes without a
// "done" or "error" event.
var ErrStreamIncomplete = errors.New("stream closed before completion")

// Collect drains a stream and folds it into one response. Deltas are concatenated;
// if the "done" event carries a response with empty text, the accumulated deltas
// become its text.
func Collect(events <-chan StreamEvent) (*CompletionResponse, error) {
	var text strings.Builder
	for evt := range events {
		switch evt.Type {
		case EventDelta:
			text.WriteString(evt.Content)
		case EventError:
			for range events {
			}
			return nil, errors.New(evt.Error)
		case EventDone:
			for range events {
			}
			resp := evt.Response
			if resp == nil {
				resp = &CompletionResponse{}
			}
			if resp.Message.Role == "" {
				resp.Message.Role = RoleAssistant
			}
			if resp.Message.Text() == "" && text.Len() > 0 {
				resp.Message.Content = append([]ContentPart{TextPart(text.String())}, resp.Message.Content...)
			}
			return resp, nil
		}
	}
	return nil, ErrStreamIncomplete
}
