// Package tools provides the builtin tools exposed by the CLI.
//
// Includes:
//   - GenerateSchema[T](): derive a tool's parameter schema from its input struct.
//   - calculator, current_time, context_value, word_count, one per callback shape
//     the chain package accepts.
//   - Builtins and Select for looking tools up by name.
package tools
