package quality

import (
	"context"
	"fmt"
	"strings"

	"github.com/ameijin/quicketl/pkg/core"
	"github.com/ameijin/quicketl/pkg/expr"
)

func (r *Runner) checkNotNull(ctx context.Context, handle *core.TableHandle, check core.CheckDescriptor) (core.CheckResult, error) {
	if len(check.Columns) == 0 {
		return fail("not_null requires columns"), nil
	}
	if res, bad := r.requireColumns(handle, check.Columns); bad {
		return res, nil
	}

	var details []string
	for _, col := range check.Columns {
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s IS NULL",
			r.quoteRelation(handle.Relation), r.dialect.QuoteIdent(col))
		nulls, err := r.backend.QueryInt64(ctx, query)
		if err != nil {
			return core.CheckResult{}, err
		}
		if nulls > 0 {
			details = append(details, fmt.Sprintf("column %q has %d null values", col, nulls))
		}
	}

	if len(details) > 0 {
		return core.CheckResult{Passed: false, Message: "null values found", Details: details}, nil
	}
	return pass(fmt.Sprintf("no nulls in %s", strings.Join(check.Columns, ", "))), nil
}

func (r *Runner) checkUnique(ctx context.Context, handle *core.TableHandle, check core.CheckDescriptor) (core.CheckResult, error) {
	if len(check.Columns) == 0 {
		return fail("unique requires columns"), nil
	}
	if res, bad := r.requireColumns(handle, check.Columns); bad {
		return res, nil
	}

	cols := make([]string, len(check.Columns))
	for i, c := range check.Columns {
		cols[i] = r.dialect.QuoteIdent(c)
	}
	quoted := strings.Join(cols, ", ")
	query := fmt.Sprintf("SELECT COUNT(*) FROM (SELECT %s FROM %s GROUP BY %s HAVING COUNT(*) > 1) qetl_dups",
		quoted, r.quoteRelation(handle.Relation), quoted)
	dups, err := r.backend.QueryInt64(ctx, query)
	if err != nil {
		return core.CheckResult{}, err
	}

	if dups > 0 {
		return core.CheckResult{
			Passed:  false,
			Message: fmt.Sprintf("%d duplicate combinations of (%s)", dups, strings.Join(check.Columns, ", ")),
		}, nil
	}
	return pass(fmt.Sprintf("(%s) is unique", strings.Join(check.Columns, ", "))), nil
}

func (r *Runner) checkRowCount(ctx context.Context, handle *core.TableHandle, check core.CheckDescriptor) (core.CheckResult, error) {
	if check.Min == nil && check.Max == nil {
		return fail("row_count requires min or max"), nil
	}

	count, err := r.backend.QueryInt64(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", r.quoteRelation(handle.Relation)))
	if err != nil {
		return core.CheckResult{}, err
	}

	if check.Min != nil && count < *check.Min {
		return core.CheckResult{Passed: false, Message: fmt.Sprintf("row count %d below minimum %d", count, *check.Min)}, nil
	}
	if check.Max != nil && count > *check.Max {
		return core.CheckResult{Passed: false, Message: fmt.Sprintf("row count %d above maximum %d", count, *check.Max)}, nil
	}
	return pass(fmt.Sprintf("row count %d within bounds", count)), nil
}

func (r *Runner) checkAcceptedValues(ctx context.Context, handle *core.TableHandle, check core.CheckDescriptor) (core.CheckResult, error) {
	if check.Column == "" || len(check.Values) == 0 {
		return fail("accepted_values requires a column and values"), nil
	}
	if res, bad := r.requireColumns(handle, []string{check.Column}); bad {
		return res, nil
	}

	quoted := make([]string, len(check.Values))
	for i, v := range check.Values {
		quoted[i] = r.dialect.QuoteString(v)
	}
	// Nulls are not violations here; not_null covers those.
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s IS NOT NULL AND %s NOT IN (%s)",
		r.quoteRelation(handle.Relation),
		r.dialect.QuoteIdent(check.Column),
		r.dialect.QuoteIdent(check.Column),
		strings.Join(quoted, ", "))
	bad, err := r.backend.QueryInt64(ctx, query)
	if err != nil {
		return core.CheckResult{}, err
	}

	if bad > 0 {
		return core.CheckResult{
			Passed:  false,
			Message: fmt.Sprintf("column %q has %d values outside the accepted set", check.Column, bad),
		}, nil
	}
	return pass(fmt.Sprintf("all %q values accepted", check.Column)), nil
}

func (r *Runner) checkExpression(ctx context.Context, handle *core.TableHandle, check core.CheckDescriptor) (core.CheckResult, error) {
	if check.Predicate == "" {
		return fail("expression requires a predicate"), nil
	}

	node, err := expr.ParsePredicate(check.Predicate, handle.Schema)
	if err != nil {
		return core.CheckResult{Passed: false, Message: fmt.Sprintf("invalid predicate: %v", err)}, nil
	}

	// The predicate must hold for every row; count the violations. NOT(p)
	// alone misses rows where p is NULL, so test both.
	rendered := expr.Render(node, r.dialect)
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE NOT (%s) OR (%s) IS NULL",
		r.quoteRelation(handle.Relation), rendered, rendered)
	violations, err := r.backend.QueryInt64(ctx, query)
	if err != nil {
		return core.CheckResult{}, err
	}

	if violations > 0 {
		return core.CheckResult{
			Passed:  false,
			Message: fmt.Sprintf("%d rows violate %q", violations, check.Predicate),
		}, nil
	}
	return pass(fmt.Sprintf("%q holds for all rows", check.Predicate)), nil
}

func (r *Runner) checkContract(ctx context.Context, handle *core.TableHandle, check core.CheckDescriptor) (core.CheckResult, error) {
	if check.Schema == "" {
		return fail("contract requires a schema path"), nil
	}
	if r.validator == nil {
		return fail("no contract validator configured"), nil
	}

	passed, problems, err := r.validator.Validate(ctx, handle, check.Schema)
	if err != nil {
		return core.CheckResult{}, &core.ContractError{Contract: check.Schema, Err: err}
	}
	if !passed {
		return core.CheckResult{Passed: false, Message: "contract violated", Details: problems}, nil
	}
	return pass(fmt.Sprintf("contract %s satisfied", check.Schema)), nil
}

// requireColumns verifies columns exist on the snapshot schema, producing a
// failed result rather than an error so remaining checks still run.
func (r *Runner) requireColumns(handle *core.TableHandle, columns []string) (core.CheckResult, bool) {
	for _, col := range columns {
		if !handle.Schema.HasColumn(col) {
			return fail(fmt.Sprintf("column %q not in table", col)), true
		}
	}
	return core.CheckResult{}, false
}

func (r *Runner) quoteRelation(rel string) string {
	parts := strings.Split(rel, ".")
	for i, p := range parts {
		parts[i] = r.dialect.QuoteIdent(p)
	}
	return strings.Join(parts, ".")
}

func pass(msg string) core.CheckResult {
	return core.CheckResult{Passed: true, Message: msg}
}

func fail(msg string) core.CheckResult {
	return core.CheckResult{Passed: false, Message: msg}
}
