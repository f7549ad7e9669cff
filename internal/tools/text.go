package tools

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/soyeahso/chainkit/internal/chain"
)

type WordCountInput struct {
	Text string `json:"text" jsonschema_description:"Text to measure."`
}

// TextStats is a method-style tool target. Its methods receive fixed arguments
// configured at registration before the tool input and application context.
type TextStats struct{}

// Count measures input["text"] in the given unit: "words", "lines" or "chars".
func (TextStats) Count(unit string, input, _ map[string]any) (map[string]any, error) {
	in, err := decodeInput[WordCountInput](input)
	if err != nil {
		return nil, err
	}
	text := in.Text

	var n int
	switch unit {
	case "words":
		n = len(strings.Fields(text))
	case "lines":
		if text != "" {
			n = strings.Count(strings.TrimSuffix(text, "\n"), "\n") + 1
		}
	case "chars":
		n = utf8.RuneCountInString(text)
	default:
		return nil, fmt.Errorf("unknown unit %q", unit)
	}
	return map[string]any{unit: n}, nil
}

// WordCount is registered as a MethodRef with an extra argument selecting the unit.
var WordCount = chain.NewTool(
	"word_count",
	"Count the words in a piece of text.",
	GenerateSchema[WordCountInput](),
	chain.MethodRef{Target: TextStats{}, Method: "Count", Args: []any{"words"}},
)
