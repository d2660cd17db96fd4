package output

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/itchyny/gojq"
)

// compileJQ parses and compiles a --jq expression.
func compileJQ(expr string) (*gojq.Code, error) {
	q, err := gojq.Parse(expr)
	if err != nil {
		return nil, ErrUsageHint(fmt.Sprintf("invalid --jq expression: %v", err), "See https://jqlang.org/manual/ for the syntax")
	}
	code, err := gojq.Compile(q)
	if err != nil {
		return nil, ErrUsage(fmt.Sprintf("invalid --jq expression: %v", err))
	}
	return code, nil
}

// ValidateJQ reports a usage error for an expression that does not compile.
func ValidateJQ(expr string) error {
	_, err := compileJQ(expr)
	return err
}

// RunJQ evaluates expr against the JSON form of v.
func RunJQ(expr string, v any) ([]any, error) {
	code, err := compileJQ(expr)
	if err != nil {
		return nil, err
	}

	// gojq only accepts the types encoding/json produces.
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var input any
	if err := json.Unmarshal(b, &input); err != nil {
		return nil, err
	}

	var results []any
	iter := code.Run(input)
	for {
		result, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := result.(error); ok {
			var halt *gojq.HaltError
			if errors.As(err, &halt) && halt.Value() == nil {
				break
			}
			return nil, &Error{Code: CodeUsage, Message: "--jq: " + err.Error(), Cause: err}
		}
		results = append(results, result)
	}
	return results, nil
}

// writeJQ prints each result: strings raw, everything else as compact JSON.
func (w *Writer) writeJQ(v any) error {
	results, err := RunJQ(w.opts.JQ, v)
	if err != nil {
		return err
	}
	for _, r := range results {
		if s, ok := r.(string); ok {
			fmt.Fprintln(w.opts.Writer, s)
			continue
		}
		b, err := json.Marshal(r)
		if err != nil {
			return err
		}
		fmt.Fprintln(w.opts.Writer, string(b))
	}
	return nil
}
