package engine

// transform.go - builders for the column-shaping operations. Each builder
// validates its descriptor against the input schema, then materializes a
// view and returns the handle with the engine-computed output schema.

import (
	"context"
	"fmt"
	"strings"

	"github.com/ameijin/quicketl/pkg/core"
	"github.com/ameijin/quicketl/pkg/expr"
)

func (e *Engine) applySelect(ctx context.Context, ectx Context, desc core.TransformDescriptor, input *core.TableHandle) (*core.TableHandle, error) {
	if len(desc.Columns) == 0 {
		return nil, &core.ConfigurationError{Field: "columns", Reason: "select requires at least one column"}
	}
	if err := validateColumns(core.OpSelect, input.Schema, desc.Columns); err != nil {
		return nil, err
	}

	schema := make(core.Schema, 0, len(desc.Columns))
	for _, name := range desc.Columns {
		col, _ := input.Schema.Column(name)
		schema = append(schema, col)
	}

	query := fmt.Sprintf("SELECT %s FROM %s",
		strings.Join(quoteAll(e.dialect, desc.Columns), ", "),
		quoteRelation(e.dialect, input.Relation))
	return e.materialize(ctx, ectx, query, schema)
}

func (e *Engine) applyRename(ctx context.Context, ectx Context, desc core.TransformDescriptor, input *core.TableHandle) (*core.TableHandle, error) {
	if len(desc.Mapping) == 0 {
		return nil, &core.ConfigurationError{Field: "mapping", Reason: "rename requires a non-empty mapping"}
	}
	for old := range desc.Mapping {
		if !input.Schema.HasColumn(old) {
			return nil, &core.ColumnNotFoundError{Op: core.OpRename, Column: old, Schema: input.Schema}
		}
	}

	var exprs []string
	schema := make(core.Schema, 0, len(input.Schema))
	seen := make(map[string]bool)
	for _, col := range input.Schema {
		name := col.Name
		if renamed, ok := desc.Mapping[col.Name]; ok {
			name = renamed
			exprs = append(exprs, fmt.Sprintf("%s AS %s", e.dialect.QuoteIdent(col.Name), e.dialect.QuoteIdent(name)))
		} else {
			exprs = append(exprs, e.dialect.QuoteIdent(col.Name))
		}
		if seen[name] {
			return nil, &core.ConfigurationError{Field: "mapping", Reason: fmt.Sprintf("rename produces duplicate column %q", name)}
		}
		seen[name] = true
		renamedCol := col
		renamedCol.Name = name
		schema = append(schema, renamedCol)
	}

	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(exprs, ", "), quoteRelation(e.dialect, input.Relation))
	return e.materialize(ctx, ectx, query, schema)
}

func (e *Engine) applyFilter(ctx context.Context, ectx Context, desc core.TransformDescriptor, input *core.TableHandle) (*core.TableHandle, error) {
	node, err := expr.ParsePredicate(desc.Predicate, input.Schema)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT * FROM %s WHERE %s",
		quoteRelation(e.dialect, input.Relation),
		expr.Render(node, e.dialect))
	return e.materialize(ctx, ectx, query, input.Schema)
}

func (e *Engine) applyDeriveColumn(ctx context.Context, ectx Context, desc core.TransformDescriptor, input *core.TableHandle) (*core.TableHandle, error) {
	if desc.Name == "" {
		return nil, &core.ConfigurationError{Field: "name", Reason: "derive_column requires an output name"}
	}
	node, err := expr.ParseExpression(desc.Expr, input.Schema)
	if err != nil {
		return nil, err
	}

	rendered := fmt.Sprintf("%s AS %s", expr.Render(node, e.dialect), e.dialect.QuoteIdent(desc.Name))
	derived := core.Column{Name: desc.Name, Type: inferExprType(node, input.Schema), Nullable: true}

	// Deriving over an existing name replaces that column in place;
	// otherwise the new column is appended.
	var exprs []string
	schema := make(core.Schema, 0, len(input.Schema)+1)
	replaced := false
	for _, col := range input.Schema {
		if col.Name == desc.Name {
			exprs = append(exprs, rendered)
			schema = append(schema, derived)
			replaced = true
			continue
		}
		exprs = append(exprs, e.dialect.QuoteIdent(col.Name))
		schema = append(schema, col)
	}
	if !replaced {
		exprs = append(exprs, rendered)
		schema = append(schema, derived)
	}

	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(exprs, ", "), quoteRelation(e.dialect, input.Relation))
	return e.materialize(ctx, ectx, query, schema)
}

func (e *Engine) applyCast(ctx context.Context, ectx Context, desc core.TransformDescriptor, input *core.TableHandle) (*core.TableHandle, error) {
	if len(desc.Mapping) == 0 {
		return nil, &core.ConfigurationError{Field: "mapping", Reason: "cast requires a non-empty mapping"}
	}
	for col, typ := range desc.Mapping {
		if !input.Schema.HasColumn(col) {
			return nil, &core.ColumnNotFoundError{Op: core.OpCast, Column: col, Schema: input.Schema}
		}
		if _, ok := e.dialect.CastType(typ); !ok {
			return nil, &core.ConfigurationError{Field: "mapping", Reason: fmt.Sprintf("unknown cast type %q for column %q", typ, col)}
		}
	}

	var exprs []string
	schema := make(core.Schema, 0, len(input.Schema))
	for _, col := range input.Schema {
		if typ, ok := desc.Mapping[col.Name]; ok {
			dialectType, _ := e.dialect.CastType(typ)
			exprs = append(exprs, fmt.Sprintf("CAST(%s AS %s) AS %s",
				e.dialect.QuoteIdent(col.Name), dialectType, e.dialect.QuoteIdent(col.Name)))
			cast := col
			cast.Type = strings.ToLower(typ)
			schema = append(schema, cast)
			continue
		}
		exprs = append(exprs, e.dialect.QuoteIdent(col.Name))
		schema = append(schema, col)
	}

	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(exprs, ", "), quoteRelation(e.dialect, input.Relation))
	return e.materialize(ctx, ectx, query, schema)
}

func (e *Engine) applyFillNull(ctx context.Context, ectx Context, desc core.TransformDescriptor, input *core.TableHandle) (*core.TableHandle, error) {
	fills := desc.Mapping
	if len(fills) == 0 {
		if desc.Value == "" {
			return nil, &core.ConfigurationError{Field: "fill_null", Reason: "requires a mapping or a value"}
		}
		// Single-value form fills every column.
		fills = make(map[string]string, len(input.Schema))
		for _, col := range input.Schema {
			fills[col.Name] = desc.Value
		}
	}
	for col := range fills {
		if !input.Schema.HasColumn(col) {
			return nil, &core.ColumnNotFoundError{Op: core.OpFillNull, Column: col, Schema: input.Schema}
		}
	}

	var exprs []string
	schema := make(core.Schema, 0, len(input.Schema))
	for _, col := range input.Schema {
		if raw, ok := fills[col.Name]; ok {
			lit := expr.ParseValue(raw)
			exprs = append(exprs, fmt.Sprintf("COALESCE(%s, %s) AS %s",
				e.dialect.QuoteIdent(col.Name), expr.Render(lit, e.dialect), e.dialect.QuoteIdent(col.Name)))
			filled := col
			filled.Nullable = false
			schema = append(schema, filled)
			continue
		}
		exprs = append(exprs, e.dialect.QuoteIdent(col.Name))
		schema = append(schema, col)
	}

	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(exprs, ", "), quoteRelation(e.dialect, input.Relation))
	return e.materialize(ctx, ectx, query, schema)
}

func (e *Engine) applyDedup(ctx context.Context, ectx Context, desc core.TransformDescriptor, input *core.TableHandle) (*core.TableHandle, error) {
	if len(desc.Columns) == 0 {
		query := fmt.Sprintf("SELECT DISTINCT * FROM %s", quoteRelation(e.dialect, input.Relation))
		return e.materialize(ctx, ectx, query, input.Schema)
	}

	if err := validateColumns(core.OpDedup, input.Schema, desc.Columns); err != nil {
		return nil, err
	}

	// Keep the first row per key; the row-number column is projected away in
	// the outer select.
	inner := fmt.Sprintf("SELECT *, ROW_NUMBER() OVER (PARTITION BY %s) AS qetl_rn FROM %s",
		strings.Join(quoteAll(e.dialect, desc.Columns), ", "),
		quoteRelation(e.dialect, input.Relation))
	query := fmt.Sprintf("SELECT %s FROM (%s) qetl_dedup WHERE qetl_rn = 1",
		strings.Join(quoteAll(e.dialect, input.Schema.Names()), ", "), inner)
	return e.materialize(ctx, ectx, query, input.Schema)
}

func (e *Engine) applySort(ctx context.Context, ectx Context, desc core.TransformDescriptor, input *core.TableHandle) (*core.TableHandle, error) {
	if len(desc.Columns) == 0 {
		return nil, &core.ConfigurationError{Field: "columns", Reason: "sort requires at least one column"}
	}
	if err := validateColumns(core.OpSort, input.Schema, desc.Columns); err != nil {
		return nil, err
	}
	if len(desc.Directions) > 0 && len(desc.Directions) != len(desc.Columns) {
		return nil, &core.ConfigurationError{Field: "directions", Reason: "directions must match columns in length"}
	}

	terms := make([]string, len(desc.Columns))
	for i, col := range desc.Columns {
		dir := "ASC"
		if len(desc.Directions) > 0 {
			switch strings.ToLower(desc.Directions[i]) {
			case "asc", "":
			case "desc":
				dir = "DESC"
			default:
				return nil, &core.ConfigurationError{Field: "directions", Reason: fmt.Sprintf("invalid direction %q", desc.Directions[i])}
			}
		}
		terms[i] = e.dialect.QuoteIdent(col) + " " + dir
	}

	query := fmt.Sprintf("SELECT * FROM %s ORDER BY %s",
		quoteRelation(e.dialect, input.Relation), strings.Join(terms, ", "))
	return e.materialize(ctx, ectx, query, input.Schema)
}

func (e *Engine) applyLimit(ctx context.Context, ectx Context, desc core.TransformDescriptor, input *core.TableHandle) (*core.TableHandle, error) {
	if desc.N < 0 {
		return nil, &core.ConfigurationError{Field: "n", Reason: "limit must be non-negative"}
	}
	query := fmt.Sprintf("SELECT * FROM %s LIMIT %d", quoteRelation(e.dialect, input.Relation), desc.N)
	return e.materialize(ctx, ectx, query, input.Schema)
}

func (e *Engine) applyCoalesce(ctx context.Context, ectx Context, desc core.TransformDescriptor, input *core.TableHandle) (*core.TableHandle, error) {
	if len(desc.Columns) < 2 {
		return nil, &core.ConfigurationError{Field: "columns", Reason: "coalesce requires at least two columns"}
	}
	if desc.Output == "" {
		return nil, &core.ConfigurationError{Field: "output", Reason: "coalesce requires an output column"}
	}
	if err := validateColumns(core.OpCoalesce, input.Schema, desc.Columns); err != nil {
		return nil, err
	}

	// First non-null wins, evaluated left to right.
	coalesced := fmt.Sprintf("COALESCE(%s) AS %s",
		strings.Join(quoteAll(e.dialect, desc.Columns), ", "), e.dialect.QuoteIdent(desc.Output))

	first, _ := input.Schema.Column(desc.Columns[0])
	outCol := core.Column{Name: desc.Output, Type: first.Type, Nullable: true}

	var exprs []string
	schema := make(core.Schema, 0, len(input.Schema)+1)
	replaced := false
	for _, col := range input.Schema {
		if col.Name == desc.Output {
			exprs = append(exprs, coalesced)
			schema = append(schema, outCol)
			replaced = true
			continue
		}
		exprs = append(exprs, e.dialect.QuoteIdent(col.Name))
		schema = append(schema, col)
	}
	if !replaced {
		exprs = append(exprs, coalesced)
		schema = append(schema, outCol)
	}

	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(exprs, ", "), quoteRelation(e.dialect, input.Relation))
	return e.materialize(ctx, ectx, query, schema)
}

// inferExprType estimates the output type of a derived expression. The
// estimate is informational; backends resolve the real type at execution.
func inferExprType(n expr.Node, schema core.Schema) string {
	switch v := n.(type) {
	case *expr.ColumnRef:
		if col, ok := schema.Column(v.Name); ok {
			return col.Type
		}
		return "unknown"
	case *expr.Literal:
		switch v.Kind {
		case expr.LiteralInt:
			return "bigint"
		case expr.LiteralFloat:
			return "double"
		case expr.LiteralString:
			return "varchar"
		case expr.LiteralBool:
			return "boolean"
		}
		return "unknown"
	case *expr.BinaryOp:
		switch v.Op {
		case expr.OpAnd, expr.OpOr, expr.OpEq, expr.OpNe, expr.OpLt, expr.OpLe, expr.OpGt, expr.OpGe, expr.OpLike:
			return "boolean"
		}
		left := inferExprType(v.Left, schema)
		right := inferExprType(v.Right, schema)
		if left == "double" || right == "double" || v.Op == expr.OpDiv {
			return "double"
		}
		return left
	case *expr.UnaryOp:
		if v.Op == expr.OpNot {
			return "boolean"
		}
		return inferExprType(v.Operand, schema)
	case *expr.FunctionCall:
		switch v.Name {
		case "UPPER", "LOWER", "TRIM", "CONCAT":
			return "varchar"
		case "LENGTH":
			return "bigint"
		case "ABS", "ROUND":
			if len(v.Args) > 0 {
				return inferExprType(v.Args[0], schema)
			}
			return "double"
		case "COALESCE", "NULLIF":
			if len(v.Args) > 0 {
				return inferExprType(v.Args[0], schema)
			}
		}
		return "unknown"
	case *expr.InList, *expr.IsNull:
		return "boolean"
	}
	return "unknown"
}
