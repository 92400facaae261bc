package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ameijin/quicketl/pkg/core"
)

// aggAliases folds the accepted aggregate spellings onto dialect vocabulary
// names before template lookup.
var aggAliases = map[string]string{
	"mean":         "avg",
	"nunique":      "count_distinct",
	"std":          "stddev",
	"var":          "variance",
	"arbitrary":    "any",
	"collect_list": "collect",
}

// resolveAgg maps one descriptor aggregate spelling to its dialect template.
// "count(*)" and the bare "count" with no column both mean count_star.
func (e *Engine) resolveAgg(fn, column string) (template, name string) {
	name = strings.ToLower(strings.TrimSpace(fn))
	if name == "count(*)" || (name == "count" && column == "") {
		name = "count_star"
	}
	if alias, ok := aggAliases[name]; ok {
		name = alias
	}
	template, ok := e.dialect.AggTemplate(name)
	if !ok {
		return "", name
	}
	return template, name
}

func (e *Engine) applyAggregate(ctx context.Context, ectx Context, desc core.TransformDescriptor, input *core.TableHandle) (*core.TableHandle, error) {
	if len(desc.Aggs) == 0 {
		return nil, &core.ConfigurationError{Field: "aggs", Reason: "aggregate requires at least one aggregation"}
	}
	if err := validateColumns(core.OpAggregate, input.Schema, desc.GroupBy); err != nil {
		return nil, err
	}

	// Aggs maps output name -> "fn(column)" or "fn" applied to the output
	// name itself. Iterate in sorted order for deterministic SQL.
	outputs := make([]string, 0, len(desc.Aggs))
	for out := range desc.Aggs {
		outputs = append(outputs, out)
	}
	sort.Strings(outputs)

	exprs := make([]string, 0, len(desc.GroupBy)+len(outputs))
	schema := make(core.Schema, 0, len(desc.GroupBy)+len(outputs))
	for _, g := range desc.GroupBy {
		exprs = append(exprs, e.dialect.QuoteIdent(g))
		col, _ := input.Schema.Column(g)
		schema = append(schema, col)
	}

	for _, out := range outputs {
		fn, column := splitAggSpec(desc.Aggs[out], out)
		if column != "" && !input.Schema.HasColumn(column) {
			return nil, &core.ColumnNotFoundError{Op: core.OpAggregate, Column: column, Schema: input.Schema}
		}

		template, name := e.resolveAgg(fn, column)
		if template == "" {
			return nil, &core.UnsupportedAggregateError{Function: name, Supported: e.supportedAggs()}
		}

		var rendered string
		if name == "count_star" {
			rendered = template
		} else {
			if column == "" {
				return nil, &core.ConfigurationError{Field: "aggs",
					Reason: fmt.Sprintf("aggregate %q for output %q needs a column", fn, out)}
			}
			rendered = fmt.Sprintf(template, e.dialect.QuoteIdent(column))
		}
		exprs = append(exprs, rendered+" AS "+e.dialect.QuoteIdent(out))
		schema = append(schema, core.Column{Name: out, Type: aggOutputType(name, column, input.Schema), Nullable: true})
	}

	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(exprs, ", "), quoteRelation(e.dialect, input.Relation))
	if len(desc.GroupBy) > 0 {
		query += " GROUP BY " + strings.Join(quoteAll(e.dialect, desc.GroupBy), ", ")
	}
	return e.materialize(ctx, ectx, query, schema)
}

// splitAggSpec splits "sum(amount)" into ("sum", "amount"). A bare function
// name applies to the column sharing the output's name, except count.
func splitAggSpec(spec, output string) (fn, column string) {
	spec = strings.TrimSpace(spec)
	open := strings.IndexByte(spec, '(')
	if open < 0 || !strings.HasSuffix(spec, ")") {
		fn = spec
		if strings.EqualFold(fn, "count") {
			return fn, ""
		}
		return fn, output
	}
	fn = strings.TrimSpace(spec[:open])
	column = strings.TrimSpace(spec[open+1 : len(spec)-1])
	if column == "*" {
		return fn + "(*)", ""
	}
	return fn, column
}

// aggOutputType estimates the aggregate's output type.
func aggOutputType(name, column string, schema core.Schema) string {
	switch name {
	case "count", "count_star", "count_distinct":
		return "bigint"
	case "avg", "stddev", "variance", "median":
		return "double"
	case "collect":
		return "list"
	}
	if col, ok := schema.Column(column); ok {
		return col.Type
	}
	return "unknown"
}

func (e *Engine) supportedAggs() []string {
	names := make([]string, 0, len(e.dialect.AggTemplates))
	for name := range e.dialect.AggTemplates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
