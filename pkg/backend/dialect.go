package backend

import (
	"fmt"
	"strings"
)

// Dialect captures the SQL differences between backends that the engine's
// neutral SQL generation has to account for. Everything else is ANSI.
type Dialect struct {
	// Name is the dialect identifier (duckdb, postgres, sqlite).
	Name string

	// DefaultSchema is the schema assumed for unqualified relation names.
	DefaultSchema string

	// TypeMap maps neutral cast-target type names to dialect type names.
	// Cast targets outside this map are rejected before SQL is built.
	TypeMap map[string]string

	// AggTemplates maps aggregate vocabulary names to SQL templates with one
	// %s placeholder for the argument. Vocabulary names absent here are
	// unavailable on this dialect.
	AggTemplates map[string]string

	// HashTemplate is the template for hash_key over a comma-separated list
	// of already-encoded column expressions ("%s"). Empty means hashing is
	// unavailable.
	HashTemplate string

	// PlaceholderDollar selects $N placeholders instead of ?.
	PlaceholderDollar bool
}

// QuoteIdent renders an identifier with ANSI double quotes, doubling any
// embedded quote. Identifiers are validated against the literal column-name
// set before they get here; quoting is the second fence.
func (d *Dialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteString renders a string literal with doubled single quotes.
func (d *Dialect) QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// FormatPlaceholder returns the parameter placeholder for position i (1-based).
func (d *Dialect) FormatPlaceholder(i int) string {
	if d.PlaceholderDollar {
		return fmt.Sprintf("$%d", i)
	}
	return "?"
}

// CastType resolves a neutral type name to the dialect's type name.
func (d *Dialect) CastType(neutral string) (string, bool) {
	t, ok := d.TypeMap[strings.ToLower(neutral)]
	return t, ok
}

// AggTemplate resolves an aggregate vocabulary name to its SQL template.
func (d *Dialect) AggTemplate(name string) (string, bool) {
	t, ok := d.AggTemplates[name]
	return t, ok
}

// HashExpr renders the deterministic hash expression over quoted columns.
// Returns false when the dialect has no hash function.
func (d *Dialect) HashExpr(quotedCols []string) (string, bool) {
	if d.HashTemplate == "" {
		return "", false
	}
	encoded := make([]string, len(quotedCols))
	for i, col := range quotedCols {
		encoded[i] = encodeHashColumn(col)
	}
	return fmt.Sprintf(d.HashTemplate, strings.Join(encoded, ", ")), true
}

// encodeHashColumn renders one column as a self-delimiting string: NULL
// becomes a bare marker, values get a length prefix. Length-prefixing keeps
// adjacent values from running together (('a','bc') never hashes like
// ('ab','c')), and the marker keeps NULL distinct from the empty string.
func encodeHashColumn(quotedCol string) string {
	cast := fmt.Sprintf("CAST(%s AS VARCHAR)", quotedCol)
	return fmt.Sprintf("CASE WHEN %s IS NULL THEN 'n' ELSE 'v' || LENGTH(%s) || ':' || %s END",
		quotedCol, cast, cast)
}

// standardTypeMap is the ANSI-leaning type map shared by dialects.
func standardTypeMap() map[string]string {
	return map[string]string{
		"integer":   "INTEGER",
		"bigint":    "BIGINT",
		"double":    "DOUBLE PRECISION",
		"float":     "DOUBLE PRECISION",
		"varchar":   "VARCHAR",
		"text":      "VARCHAR",
		"string":    "VARCHAR",
		"boolean":   "BOOLEAN",
		"date":      "DATE",
		"timestamp": "TIMESTAMP",
	}
}

// standardAggTemplates is the aggregate vocabulary available on ANSI-ish
// dialects. The engine maps vocabulary aliases (mean, nunique, std, var)
// before lookup.
func standardAggTemplates() map[string]string {
	return map[string]string{
		"sum":            "SUM(%s)",
		"avg":            "AVG(%s)",
		"min":            "MIN(%s)",
		"max":            "MAX(%s)",
		"count":          "COUNT(%s)",
		"count_star":     "COUNT(*)",
		"count_distinct": "COUNT(DISTINCT %s)",
	}
}

// NewDuckDBDialect returns the DuckDB dialect.
func NewDuckDBDialect() *Dialect {
	aggs := standardAggTemplates()
	aggs["first"] = "FIRST(%s)"
	aggs["last"] = "LAST(%s)"
	aggs["any"] = "ANY_VALUE(%s)"
	aggs["stddev"] = "STDDEV(%s)"
	aggs["variance"] = "VARIANCE(%s)"
	aggs["median"] = "MEDIAN(%s)"
	aggs["collect"] = "LIST(%s)"
	return &Dialect{
		Name:          "duckdb",
		DefaultSchema: "main",
		TypeMap:       standardTypeMap(),
		AggTemplates:  aggs,
		HashTemplate:  "md5(concat_ws('||', %s))",
	}
}

// NewPostgresDialect returns the PostgreSQL dialect.
func NewPostgresDialect() *Dialect {
	aggs := standardAggTemplates()
	aggs["stddev"] = "STDDEV(%s)"
	aggs["variance"] = "VARIANCE(%s)"
	aggs["median"] = "PERCENTILE_CONT(0.5) WITHIN GROUP (ORDER BY %s)"
	aggs["collect"] = "ARRAY_AGG(%s)"
	return &Dialect{
		Name:              "postgres",
		DefaultSchema:     "public",
		TypeMap:           standardTypeMap(),
		AggTemplates:      aggs,
		HashTemplate:      "md5(concat_ws('||', %s))",
		PlaceholderDollar: true,
	}
}

// NewSQLiteDialect returns the SQLite dialect. SQLite has no built-in hash
// or statistical aggregates; the corresponding operations surface an
// UnsupportedOperationError from the engine.
func NewSQLiteDialect() *Dialect {
	types := standardTypeMap()
	types["double"] = "REAL"
	types["float"] = "REAL"
	types["varchar"] = "TEXT"
	types["text"] = "TEXT"
	types["string"] = "TEXT"
	return &Dialect{
		Name:          "sqlite",
		DefaultSchema: "main",
		TypeMap:       types,
		AggTemplates:  standardAggTemplates(),
	}
}
