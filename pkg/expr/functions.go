package expr

import (
	"sort"
	"strings"
)

// arity bounds for an allow-listed function. Max of -1 means variadic.
type arity struct {
	Min int
	Max int
}

// functions is the fixed allow-list of scalar functions permitted in
// derive-column expressions, keyed by canonical upper-case name.
var functions = map[string]arity{
	"COALESCE": {Min: 2, Max: -1},
	"NULLIF":   {Min: 2, Max: 2},
	"CONCAT":   {Min: 1, Max: -1},
	"UPPER":    {Min: 1, Max: 1},
	"LOWER":    {Min: 1, Max: 1},
	"TRIM":     {Min: 1, Max: 1},
	"LENGTH":   {Min: 1, Max: 1},
	"ABS":      {Min: 1, Max: 1},
	"ROUND":    {Min: 1, Max: 2},
}

// FunctionNames returns the allow-listed function names, sorted.
func FunctionNames() []string {
	names := make([]string, 0, len(functions))
	for name := range functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// lookupFunction resolves a function name case-insensitively against the
// allow-list.
func lookupFunction(name string) (string, arity, bool) {
	canonical := strings.ToUpper(name)
	a, ok := functions[canonical]
	return canonical, a, ok
}
