package tools

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// GenerateSchema reflects T into an inline JSON Schema object suitable for
// chain.Tool.Parameters. Struct fields use their json names; descriptions come
// from jsonschema_description tags.
func GenerateSchema[T any]() map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)

	raw, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("tools: marshal schema for %T: %v", v, err))
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		panic(fmt.Sprintf("tools: decode schema for %T: %v", v, err))
	}
	delete(out, "$schema")
	delete(out, "$id")
	return out
}

// decodeInput validates a tool's loosely typed input map against the schema
// of T and converts it into T. A nil input is treated as an empty object.
func decodeInput[T any](input map[string]any) (T, error) {
	var v T
	if input == nil {
		input = map[string]any{}
	}
	raw, err := json.Marshal(input)
	if err != nil {
		return v, fmt.Errorf("encode input: %w", err)
	}
	if err := validateInput[T](raw); err != nil {
		return v, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decode input: %w", err)
	}
	return v, nil
}
