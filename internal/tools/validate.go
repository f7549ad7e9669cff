package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	validator "github.com/santhosh-tekuri/jsonschema/v6"
)

// compiled caches the input validator for each input struct type.
var compiled sync.Map // reflect.Type -> *validator.Schema

// inputSchema returns the compiled schema GenerateSchema produces for T.
func inputSchema[T any]() (*validator.Schema, error) {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	if s, ok := compiled.Load(typ); ok {
		return s.(*validator.Schema), nil
	}

	raw, err := json.Marshal(GenerateSchema[T]())
	if err != nil {
		return nil, err
	}
	doc, err := validator.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	url := typ.String() + ".json"
	c := validator.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema %s: %w", url, err)
	}
	s, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", url, err)
	}
	compiled.Store(typ, s)
	return s, nil
}

// validateInput checks a tool input against the schema of T. The input is
// round-tripped through JSON so Go numeric types validate like decoded ones.
func validateInput[T any](raw []byte) error {
	s, err := inputSchema[T]()
	if err != nil {
		return err
	}
	inst, err := validator.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("decode input: %w", err)
	}
	if err := s.Validate(inst); err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	return nil
}
