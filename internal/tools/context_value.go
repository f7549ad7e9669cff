package tools

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/soyeahso/chainkit/internal/chain"
)

type ContextValueInput struct {
	Key string `json:"key" jsonschema_description:"Name of the context value to read."`
}

// ContextValue is registered as a UnaryFunc: the application context arrives inside
// its single argument under chain.ContextKey.
var ContextValue = chain.NewTool(
	"context_value",
	"Read a value the application attached to this conversation.",
	GenerateSchema[ContextValueInput](),
	chain.UnaryFunc(contextValue),
)

func contextValue(_ context.Context, args map[string]any) (any, error) {
	appCtx, _ := args[chain.ContextKey].(map[string]any)
	input := maps.Clone(args)
	delete(input, chain.ContextKey)
	in, err := decodeInput[ContextValueInput](input)
	if err != nil {
		return nil, err
	}
	key := in.Key
	if key == "" {
		return nil, fmt.Errorf("key is required")
	}

	v, ok := appCtx[key]
	if !ok {
		keys := make([]string, 0, len(appCtx))
		for k := range appCtx {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		return nil, fmt.Errorf("no context value %q (have: %v)", key, keys)
	}
	return map[string]any{"key": key, "value": v}, nil
}
