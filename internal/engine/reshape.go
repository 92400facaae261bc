package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/ameijin/quicketl/pkg/core"
)

// maxPivotValues caps how many distinct pivot keys become output columns.
const maxPivotValues = 1000

func (e *Engine) applyPivot(ctx context.Context, ectx Context, desc core.TransformDescriptor, input *core.TableHandle) (*core.TableHandle, error) {
	if len(desc.Columns) != 1 {
		return nil, &core.ConfigurationError{Field: "columns", Reason: "pivot requires exactly one pivot column"}
	}
	if len(desc.Index) == 0 {
		return nil, &core.ConfigurationError{Field: "index", Reason: "pivot requires at least one index column"}
	}
	if desc.Values == "" {
		return nil, &core.ConfigurationError{Field: "values", Reason: "pivot requires a values column"}
	}
	pivotCol := desc.Columns[0]
	if err := validateColumns(core.OpPivot, input.Schema, append(append([]string{}, desc.Index...), pivotCol, desc.Values)); err != nil {
		return nil, err
	}

	agg := desc.Agg
	if agg == "" {
		agg = "any"
	}
	template, name := e.resolveAgg(agg, desc.Values)
	if template == "" {
		return nil, &core.UnsupportedAggregateError{Function: name, Supported: e.supportedAggs()}
	}

	keys, err := e.distinctValues(ctx, input.Relation, pivotCol)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, &core.UnsupportedOperationError{Op: core.OpPivot, Detail: "pivot column has no values"}
	}

	valuesCol, _ := input.Schema.Column(desc.Values)
	outType := aggOutputType(name, desc.Values, core.Schema{valuesCol})

	exprs := make([]string, 0, len(desc.Index)+len(keys))
	schema := make(core.Schema, 0, len(desc.Index)+len(keys))
	for _, idx := range desc.Index {
		exprs = append(exprs, e.dialect.QuoteIdent(idx))
		col, _ := input.Schema.Column(idx)
		schema = append(schema, col)
	}
	for _, key := range keys {
		caseExpr := fmt.Sprintf("CASE WHEN %s = %s THEN %s END",
			e.dialect.QuoteIdent(pivotCol), e.dialect.QuoteString(key), e.dialect.QuoteIdent(desc.Values))
		exprs = append(exprs, fmt.Sprintf(template, caseExpr)+" AS "+e.dialect.QuoteIdent(key))
		schema = append(schema, core.Column{Name: key, Type: outType, Nullable: true})
	}

	query := fmt.Sprintf("SELECT %s FROM %s GROUP BY %s",
		strings.Join(exprs, ", "),
		quoteRelation(e.dialect, input.Relation),
		strings.Join(quoteAll(e.dialect, desc.Index), ", "))
	return e.materialize(ctx, ectx, query, schema)
}

// distinctValues fetches the distinct pivot keys. This is the one transform
// that executes a result-producing query during construction; the key set is
// required to shape the output columns.
func (e *Engine) distinctValues(ctx context.Context, relation, column string) ([]string, error) {
	query := fmt.Sprintf("SELECT DISTINCT CAST(%s AS VARCHAR) FROM %s WHERE %s IS NOT NULL ORDER BY 1 LIMIT %d",
		e.dialect.QuoteIdent(column), quoteRelation(e.dialect, relation), e.dialect.QuoteIdent(column), maxPivotValues+1)
	rows, err := e.backend.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		keys = append(keys, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(keys) > maxPivotValues {
		return nil, &core.UnsupportedOperationError{Op: core.OpPivot,
			Detail: fmt.Sprintf("pivot column %q has more than %d distinct values", column, maxPivotValues)}
	}
	return keys, nil
}

func (e *Engine) applyUnpivot(ctx context.Context, ectx Context, desc core.TransformDescriptor, input *core.TableHandle) (*core.TableHandle, error) {
	if len(desc.ValueColumns) == 0 {
		return nil, &core.ConfigurationError{Field: "value_columns", Reason: "unpivot requires at least one value column"}
	}
	nameCol := desc.NameCol
	if nameCol == "" {
		nameCol = "name"
	}
	valueCol := desc.ValueCol
	if valueCol == "" {
		valueCol = "value"
	}
	if err := validateColumns(core.OpUnpivot, input.Schema, desc.ValueColumns); err != nil {
		return nil, err
	}

	unpivoted := make(map[string]bool, len(desc.ValueColumns))
	for _, c := range desc.ValueColumns {
		unpivoted[c] = true
	}

	// Remaining columns pass through unchanged on every branch.
	var keep []string
	schema := make(core.Schema, 0, len(input.Schema))
	for _, col := range input.Schema {
		if !unpivoted[col.Name] {
			keep = append(keep, col.Name)
			schema = append(schema, col)
		}
	}
	first, _ := input.Schema.Column(desc.ValueColumns[0])
	schema = append(schema,
		core.Column{Name: nameCol, Type: "varchar", Nullable: false},
		core.Column{Name: valueCol, Type: first.Type, Nullable: true})

	selects := make([]string, len(desc.ValueColumns))
	for i, vc := range desc.ValueColumns {
		cols := make([]string, 0, len(keep)+2)
		cols = append(cols, quoteAll(e.dialect, keep)...)
		cols = append(cols,
			e.dialect.QuoteString(vc)+" AS "+e.dialect.QuoteIdent(nameCol),
			e.dialect.QuoteIdent(vc)+" AS "+e.dialect.QuoteIdent(valueCol))
		selects[i] = fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), quoteRelation(e.dialect, input.Relation))
	}

	query := strings.Join(selects, " UNION ALL ")
	return e.materialize(ctx, ectx, query, schema)
}
