package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/soyeahso/chainkit/internal/chain"
)

type CalculatorInput struct {
	Operation string  `json:"operation" jsonschema:"enum=add,enum=subtract,enum=multiply,enum=divide" jsonschema_description:"Arithmetic operation to apply."`
	A         float64 `json:"a" jsonschema_description:"Left operand."`
	B         float64 `json:"b" jsonschema_description:"Right operand."`
}

var ErrDivisionByZero = errors.New("division by zero")

// Calculator is registered as a DynamicFunc: it only ever sees the tool input.
var Calculator = chain.NewTool(
	"calculator",
	"Apply a basic arithmetic operation to two numbers.",
	GenerateSchema[CalculatorInput](),
	chain.DynamicFunc{Fn: calculate},
)

func calculate(_ context.Context, input map[string]any) (map[string]any, error) {
	in, err := decodeInput[CalculatorInput](input)
	if err != nil {
		return nil, err
	}

	var result float64
	switch in.Operation {
	case "add":
		result = in.A + in.B
	case "subtract":
		result = in.A - in.B
	case "multiply":
		result = in.A * in.B
	case "divide":
		if in.B == 0 {
			return nil, ErrDivisionByZero
		}
		result = in.A / in.B
	default:
		return nil, fmt.Errorf("unknown operation %q", in.Operation)
	}
	return map[string]any{"result": result}, nil
}
