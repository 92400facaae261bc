package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/ameijin/quicketl/pkg/core"
)

// joinKinds maps descriptor join kinds to SQL join keywords. Semi and anti
// joins have no keyword; they are rewritten as EXISTS subqueries.
var joinKinds = map[string]string{
	"inner": "INNER JOIN",
	"left":  "LEFT OUTER JOIN",
	"right": "RIGHT OUTER JOIN",
	"outer": "FULL OUTER JOIN",
}

func (e *Engine) applyJoin(ctx context.Context, ectx Context, desc core.TransformDescriptor, input *core.TableHandle) (*core.TableHandle, error) {
	if desc.Right == "" {
		return nil, &core.ConfigurationError{Field: "right", Reason: "join requires a right table"}
	}
	if len(desc.On) == 0 {
		return nil, &core.ConfigurationError{Field: "on", Reason: "join requires at least one key pair"}
	}

	right, err := ectx.GetTable(desc.Right)
	if err != nil {
		return nil, err
	}

	how := desc.How
	if how == "" {
		how = "inner"
	}

	pairs := make([]core.JoinPair, len(desc.On))
	for i, p := range desc.On {
		if p.Right == "" {
			p.Right = p.Left
		}
		if !input.Schema.HasColumn(p.Left) {
			return nil, &core.ColumnNotFoundError{Op: core.OpJoin, Column: p.Left, Schema: input.Schema}
		}
		if !right.Schema.HasColumn(p.Right) {
			return nil, &core.ColumnNotFoundError{Op: core.OpJoin, Column: p.Right, Schema: right.Schema}
		}
		pairs[i] = p
	}

	conds := make([]string, len(pairs))
	for i, p := range pairs {
		conds[i] = fmt.Sprintf("l.%s = r.%s", e.dialect.QuoteIdent(p.Left), e.dialect.QuoteIdent(p.Right))
	}
	on := strings.Join(conds, " AND ")

	switch how {
	case "semi", "anti":
		// Filtering joins keep the left schema untouched.
		not := ""
		if how == "anti" {
			not = "NOT "
		}
		query := fmt.Sprintf("SELECT * FROM %s l WHERE %sEXISTS (SELECT 1 FROM %s r WHERE %s)",
			quoteRelation(e.dialect, input.Relation), not, quoteRelation(e.dialect, right.Relation), on)
		return e.materialize(ctx, ectx, query, input.Schema)

	case "inner", "left", "right", "outer":
		var exprs []string
		schema := make(core.Schema, 0, len(input.Schema)+len(right.Schema))
		for _, col := range input.Schema {
			expr := "l." + e.dialect.QuoteIdent(col.Name)
			// Right and full joins produce rows with no left match, where
			// the left key is NULL. When the colliding right key is dropped
			// the key value must come from whichever side matched.
			if how == "right" || how == "outer" {
				if rightKey, ok := pairedRightKey(pairs, col.Name); ok && input.Schema.HasColumn(rightKey) {
					expr = fmt.Sprintf("COALESCE(l.%s, r.%s) AS %s",
						e.dialect.QuoteIdent(col.Name), e.dialect.QuoteIdent(rightKey), e.dialect.QuoteIdent(col.Name))
				}
			}
			exprs = append(exprs, expr)
			schema = append(schema, col)
		}
		// Right-side name collisions get a _right suffix. Join keys from the
		// right side are redundant and dropped when their names collide.
		for _, col := range right.Schema {
			if isJoinKey(pairs, col.Name) && input.Schema.HasColumn(col.Name) {
				continue
			}
			name := col.Name
			if input.Schema.HasColumn(name) {
				name += "_right"
			}
			exprs = append(exprs, fmt.Sprintf("r.%s AS %s", e.dialect.QuoteIdent(col.Name), e.dialect.QuoteIdent(name)))
			out := col
			out.Name = name
			schema = append(schema, out)
		}

		query := fmt.Sprintf("SELECT %s FROM %s l %s %s r ON %s",
			strings.Join(exprs, ", "),
			quoteRelation(e.dialect, input.Relation),
			joinKinds[how],
			quoteRelation(e.dialect, right.Relation),
			on)
		return e.materialize(ctx, ectx, query, schema)

	default:
		return nil, &core.UnsupportedOperationError{Op: core.OpJoin, Detail: fmt.Sprintf("unknown join kind %q", how)}
	}
}

func pairedRightKey(pairs []core.JoinPair, left string) (string, bool) {
	for _, p := range pairs {
		if p.Left == left {
			return p.Right, true
		}
	}
	return "", false
}

func isJoinKey(pairs []core.JoinPair, name string) bool {
	for _, p := range pairs {
		if p.Right == name {
			return true
		}
	}
	return false
}

func (e *Engine) applyUnion(ctx context.Context, ectx Context, desc core.TransformDescriptor, input *core.TableHandle) (*core.TableHandle, error) {
	if len(desc.Others) == 0 {
		return nil, &core.ConfigurationError{Field: "others", Reason: "union requires at least one other table"}
	}

	op := "UNION ALL"
	switch desc.Mode {
	case "", "all":
	case "distinct":
		op = "UNION"
	default:
		return nil, &core.ConfigurationError{Field: "mode", Reason: fmt.Sprintf("invalid union mode %q", desc.Mode)}
	}

	// All members must share the first table's column names. Each member is
	// projected in the reference order so positional union lines up.
	cols := input.Schema.Names()
	selects := []string{fmt.Sprintf("SELECT %s FROM %s",
		strings.Join(quoteAll(e.dialect, cols), ", "), quoteRelation(e.dialect, input.Relation))}

	for _, name := range desc.Others {
		other, err := ectx.GetTable(name)
		if err != nil {
			return nil, err
		}
		for _, col := range cols {
			if !other.Schema.HasColumn(col) {
				return nil, &core.ColumnNotFoundError{Op: core.OpUnion, Column: col, Schema: other.Schema}
			}
		}
		if len(other.Schema) != len(cols) {
			return nil, &core.ConfigurationError{Field: "others",
				Reason: fmt.Sprintf("table %q has %d columns, expected %d", name, len(other.Schema), len(cols))}
		}
		selects = append(selects, fmt.Sprintf("SELECT %s FROM %s",
			strings.Join(quoteAll(e.dialect, cols), ", "), quoteRelation(e.dialect, other.Relation)))
	}

	query := strings.Join(selects, " "+op+" ")
	return e.materialize(ctx, ectx, query, input.Schema)
}
