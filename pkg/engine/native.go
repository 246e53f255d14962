package engine

import (
	"fmt"
	"regexp"

	jsonnet "github.com/google/go-jsonnet"
	"github.com/google/go-jsonnet/ast"
)

// NativeFunc is a host function exposed to Jsonnet via std.native(Name).
// Func receives arguments already converted to JSON-like Go values and must
// return one (string, float64, bool, nil, []any or map[string]any).
type NativeFunc struct {
	Name   string
	Params []string
	Func   func(args []any) (any, error)
}

func (f NativeFunc) jsonnet() *jsonnet.NativeFunction {
	params := make(ast.Identifiers, 0, len(f.Params))
	for _, p := range f.Params {
		params = append(params, ast.Identifier(p))
	}
	return &jsonnet.NativeFunction{Name: f.Name, Params: params, Func: f.Func}
}

// DefaultNatives returns the host functions bound into every VM.
func DefaultNatives() []NativeFunc {
	return []NativeFunc{RegexMatch}
}

// RegexMatch returns, for every non-overlapping match of pattern in subject,
// the list of capture groups (group 0 first). Groups that did not take part in
// the match are null.
var RegexMatch = NativeFunc{
	Name:   "regexMatch",
	Params: []string{"pattern", "subject"},
	Func: func(args []any) (any, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("regexMatch: expected 2 arguments, got %d", len(args))
		}
		pattern, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("regexMatch: pattern must be a string, got %T", args[0])
		}
		subject, ok := args[1].(string)
		if !ok {
			return nil, fmt.Errorf("regexMatch: subject must be a string, got %T", args[1])
		}
		return regexMatch(pattern, subject)
	},
}

func regexMatch(pattern, subject string) ([]any, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("regexMatch: invalid pattern %q: %w", pattern, err)
	}
	matches := re.FindAllStringSubmatchIndex(subject, -1)
	out := make([]any, 0, len(matches))
	for _, loc := range matches {
		groups := make([]any, 0, len(loc)/2)
		for g := 0; g+1 < len(loc); g += 2 {
			if loc[g] < 0 {
				groups = append(groups, nil)
				continue
			}
			groups = append(groups, subject[loc[g]:loc[g+1]])
		}
		out = append(out, groups)
	}
	return out, nil
}
