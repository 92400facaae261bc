package engine

// sql.go - relation and column quoting helpers. Expression trees render via
// expr.Render; every identifier reaching these helpers was validated against
// a literal schema column set first.

import (
	"strings"

	"github.com/ameijin/quicketl/pkg/backend"
)

// quoteRelation quotes a possibly schema-qualified relation name.
func quoteRelation(d *backend.Dialect, rel string) string {
	parts := strings.Split(rel, ".")
	for i, p := range parts {
		parts[i] = d.QuoteIdent(p)
	}
	return strings.Join(parts, ".")
}

// quoteAll quotes a list of column names.
func quoteAll(d *backend.Dialect, cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = d.QuoteIdent(c)
	}
	return out
}
