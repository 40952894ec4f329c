// Package jqfilter runs user-supplied jq programs over JSON results, for
// the --jq flag of the discover and history subcommands.
package jqfilter

import (
	"context"

	"github.com/itchyny/gojq"
)

// Query is a compiled jq program.
type Query struct {
	code *gojq.Code
}

// Parse compiles a jq program. An empty program is the identity.
func Parse(query string) (Query, error) {
	if query == "" {
		query = "."
	}

	q, err := gojq.Parse(query)
	if err != nil {
		return Query{}, err
	}

	c, err := gojq.Compile(q)
	if err != nil {
		return Query{}, err
	}

	return Query{code: c}, nil
}

// Run executes the program on input. A program yielding a single value
// returns that value; multiple values come back as a slice.
func (q Query) Run(ctx context.Context, input any) (any, error) {
	var outputs []any

	iter := q.code.RunWithContext(ctx, input)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if halt, ok := v.(*gojq.HaltError); ok {
			if halt.ExitCode() == 0 {
				break
			}
			outputs = append(outputs, map[string]any{
				"status":    "halt_error",
				"exit_code": halt.ExitCode(),
				"value":     halt.Value(),
			})
			break
		} else if err, ok := v.(error); ok {
			return nil, err
		}
		outputs = append(outputs, v)
	}

	if len(outputs) == 1 {
		return outputs[0], nil
	}
	return outputs, nil
}
