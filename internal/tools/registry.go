package tools

import (
	"fmt"
	"strings"

	"github.com/soyeahso/chainkit/internal/chain"
)

// Builtins returns all builtin tools in a stable order.
func Builtins() []chain.Tool {
	return []chain.Tool{Calculator, CurrentTime, ContextValue, WordCount}
}

// Names returns the builtin tool names in the order of Builtins.
func Names() []string {
	all := Builtins()
	names := make([]string, len(all))
	for i, t := range all {
		names[i] = t.Name
	}
	return names
}

// Select returns the builtin tools with the given names, in the order asked.
// "all" selects every builtin.
func Select(names []string) ([]chain.Tool, error) {
	all := Builtins()
	byName := make(map[string]chain.Tool, len(all))
	for _, t := range all {
		byName[t.Name] = t
	}

	var out []chain.Tool
	for _, n := range names {
		n = strings.TrimSpace(n)
		switch n {
		case "":
			continue
		case "all":
			out = append(out, all...)
			continue
		}
		t, ok := byName[n]
		if !ok {
			return nil, fmt.Errorf("unknown tool %q (available: %s)", n, strings.Join(Names(), ", "))
		}
		out = append(out, t)
	}
	return out, nil
}
