package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/ameijin/quicketl/pkg/core"
)

// rankingFns are window functions that take no argument.
var rankingFns = map[string]string{
	"row_number": "ROW_NUMBER()",
	"rank":       "RANK()",
	"dense_rank": "DENSE_RANK()",
}

// offsetFns take a single column argument.
var offsetFns = map[string]string{
	"lag":  "LAG(%s)",
	"lead": "LEAD(%s)",
}

// windowFrames is the exact-string allow-list for frame clauses. Frame text
// is user input and never interpolated outside this set.
var windowFrames = map[string]bool{
	"rows unbounded preceding":                                 true,
	"rows between unbounded preceding and current row":         true,
	"rows between current row and unbounded following":         true,
	"rows between unbounded preceding and unbounded following": true,
	"range between unbounded preceding and current row":        true,
}

func (e *Engine) applyWindow(ctx context.Context, ectx Context, desc core.TransformDescriptor, input *core.TableHandle) (*core.TableHandle, error) {
	if desc.Fn == "" {
		return nil, &core.ConfigurationError{Field: "fn", Reason: "window requires a function"}
	}
	if desc.Output == "" {
		return nil, &core.ConfigurationError{Field: "output", Reason: "window requires an output column"}
	}
	if err := validateColumns(core.OpWindow, input.Schema, desc.PartitionBy); err != nil {
		return nil, err
	}
	if err := validateColumns(core.OpWindow, input.Schema, desc.OrderBy); err != nil {
		return nil, err
	}
	if input.Schema.HasColumn(desc.Output) {
		return nil, &core.ConfigurationError{Field: "output",
			Reason: fmt.Sprintf("window output column %q already exists", desc.Output)}
	}

	call, outType, err := e.windowCall(desc, input.Schema)
	if err != nil {
		return nil, err
	}

	var over []string
	if len(desc.PartitionBy) > 0 {
		over = append(over, "PARTITION BY "+strings.Join(quoteAll(e.dialect, desc.PartitionBy), ", "))
	}
	if len(desc.OrderBy) > 0 {
		over = append(over, "ORDER BY "+strings.Join(quoteAll(e.dialect, desc.OrderBy), ", "))
	}
	if desc.Frame != "" {
		frame := strings.ToLower(strings.Join(strings.Fields(desc.Frame), " "))
		if !windowFrames[frame] {
			return nil, &core.ConfigurationError{Field: "frame", Reason: fmt.Sprintf("unsupported frame %q", desc.Frame)}
		}
		if len(desc.OrderBy) == 0 {
			return nil, &core.ConfigurationError{Field: "frame", Reason: "frame requires order_by"}
		}
		over = append(over, strings.ToUpper(frame))
	}

	windowed := fmt.Sprintf("%s OVER (%s) AS %s", call, strings.Join(over, " "), e.dialect.QuoteIdent(desc.Output))

	schema := make(core.Schema, 0, len(input.Schema)+1)
	schema = append(schema, input.Schema...)
	schema = append(schema, core.Column{Name: desc.Output, Type: outType, Nullable: true})

	query := fmt.Sprintf("SELECT *, %s FROM %s", windowed, quoteRelation(e.dialect, input.Relation))
	return e.materialize(ctx, ectx, query, schema)
}

// windowCall renders the function part of the window expression. The fn text
// follows the aggregate spelling: "row_number", "lag(ts)", "sum(amount)".
func (e *Engine) windowCall(desc core.TransformDescriptor, schema core.Schema) (call, outType string, err error) {
	fn, column := splitAggSpec(desc.Fn, "")
	lower := strings.ToLower(fn)

	if sql, ok := rankingFns[lower]; ok {
		if column != "" {
			return "", "", &core.ConfigurationError{Field: "fn", Reason: fmt.Sprintf("%s takes no argument", lower)}
		}
		return sql, "bigint", nil
	}

	if template, ok := offsetFns[lower]; ok {
		if column == "" {
			return "", "", &core.ConfigurationError{Field: "fn", Reason: fmt.Sprintf("%s requires a column", lower)}
		}
		if !schema.HasColumn(column) {
			return "", "", &core.ColumnNotFoundError{Op: core.OpWindow, Column: column, Schema: schema}
		}
		if len(desc.OrderBy) == 0 {
			return "", "", &core.ConfigurationError{Field: "order_by", Reason: fmt.Sprintf("%s requires order_by", lower)}
		}
		col, _ := schema.Column(column)
		return fmt.Sprintf(template, e.dialect.QuoteIdent(column)), col.Type, nil
	}

	// Anything else must be an aggregate from the dialect vocabulary.
	template, name := e.resolveAgg(fn, column)
	if template == "" {
		return "", "", &core.UnsupportedOperationError{Op: core.OpWindow, Detail: fmt.Sprintf("unknown window function %q", fn)}
	}
	if name == "count_star" {
		return template, "bigint", nil
	}
	if column == "" {
		return "", "", &core.ConfigurationError{Field: "fn", Reason: fmt.Sprintf("%s requires a column", name)}
	}
	if !schema.HasColumn(column) {
		return "", "", &core.ColumnNotFoundError{Op: core.OpWindow, Column: column, Schema: schema}
	}
	return fmt.Sprintf(template, e.dialect.QuoteIdent(column)), aggOutputType(name, column, schema), nil
}
