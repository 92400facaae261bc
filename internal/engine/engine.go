// Package engine provides the backend-agnostic transform engine. It
// validates transform descriptors against input schemas, builds neutral SQL
// from schema-validated identifiers, and dispatches materialization to the
// connected backend.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/ameijin/quicketl/pkg/backend"
	"github.com/ameijin/quicketl/pkg/core"
)

// Context is the slice of the execution context the engine needs: looking up
// named tables for joins and unions, publishing produced tables, and
// registering ephemeral resources. The engine only ever adds tables, never
// removes or replaces them.
type Context interface {
	GetTable(name string) (*core.TableHandle, error)
	RegisterTable(name string, handle *core.TableHandle) error
	RegisterEphemeral(name string, release core.ReleaseFunc)
}

// Engine dispatches transform descriptors to a backend. It holds no per-run
// state; everything run-scoped lives in the execution context.
type Engine struct {
	backend backend.Backend
	dialect *backend.Dialect
	logger  *slog.Logger
}

// New creates an engine over a connected backend.
// If logger is nil, a discard logger is used.
func New(b backend.Backend, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		backend: b,
		dialect: b.Dialect(),
		logger:  logger,
	}
}

// Backend returns the engine's backend.
func (e *Engine) Backend() backend.Backend {
	return e.backend
}

// Apply executes one transform descriptor against the input table and
// returns a handle for the produced table. Inputs are never mutated; every
// output is a fresh temporary view registered for release at context
// teardown.
func (e *Engine) Apply(ctx context.Context, ectx Context, desc core.TransformDescriptor, input *core.TableHandle) (*core.TableHandle, error) {
	e.logger.Debug("applying transform", "op", desc.Op, "input", input.Relation)

	var (
		out *core.TableHandle
		err error
	)

	switch desc.Op {
	case core.OpSelect:
		out, err = e.applySelect(ctx, ectx, desc, input)
	case core.OpRename:
		out, err = e.applyRename(ctx, ectx, desc, input)
	case core.OpFilter:
		out, err = e.applyFilter(ctx, ectx, desc, input)
	case core.OpDeriveColumn:
		out, err = e.applyDeriveColumn(ctx, ectx, desc, input)
	case core.OpCast:
		out, err = e.applyCast(ctx, ectx, desc, input)
	case core.OpFillNull:
		out, err = e.applyFillNull(ctx, ectx, desc, input)
	case core.OpDedup:
		out, err = e.applyDedup(ctx, ectx, desc, input)
	case core.OpSort:
		out, err = e.applySort(ctx, ectx, desc, input)
	case core.OpLimit:
		out, err = e.applyLimit(ctx, ectx, desc, input)
	case core.OpJoin:
		out, err = e.applyJoin(ctx, ectx, desc, input)
	case core.OpUnion:
		out, err = e.applyUnion(ctx, ectx, desc, input)
	case core.OpAggregate:
		out, err = e.applyAggregate(ctx, ectx, desc, input)
	case core.OpWindow:
		out, err = e.applyWindow(ctx, ectx, desc, input)
	case core.OpPivot:
		out, err = e.applyPivot(ctx, ectx, desc, input)
	case core.OpUnpivot:
		out, err = e.applyUnpivot(ctx, ectx, desc, input)
	case core.OpHashKey:
		out, err = e.applyHashKey(ctx, ectx, desc, input)
	case core.OpCoalesce:
		out, err = e.applyCoalesce(ctx, ectx, desc, input)
	default:
		return nil, &core.UnsupportedOperationError{Op: desc.Op}
	}

	if err != nil {
		return nil, fmt.Errorf("%s: %w", desc.Op, err)
	}

	e.logger.Debug("transform applied", "op", desc.Op, "output", out.Relation)
	return out, nil
}

// RowCount forces execution of the relation behind the handle and returns
// its row count. This is the engine's only result-producing call.
func (e *Engine) RowCount(ctx context.Context, handle *core.TableHandle) (int64, error) {
	return e.backend.QueryInt64(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteRelation(e.dialect, handle.Relation)))
}

// materialize creates a temporary view for the query, registers its release
// with the execution context, and wraps it in a handle carrying the
// engine-computed schema.
func (e *Engine) materialize(ctx context.Context, ectx Context, query string, schema core.Schema) (*core.TableHandle, error) {
	name := tempName()
	if err := e.backend.CreateView(ctx, name, query); err != nil {
		return nil, err
	}

	b := e.backend
	// Release uses a background context: teardown must run even after the
	// step context has been canceled.
	ectx.RegisterEphemeral(name, func() error {
		return b.DropView(context.Background(), name)
	})

	return &core.TableHandle{Relation: name, Schema: schema}, nil
}

// tempName produces a unique ephemeral relation name.
func tempName() string {
	return "qetl_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// validateColumns checks every name against the input schema, failing with a
// ColumnNotFoundError naming the first missing column.
func validateColumns(op string, schema core.Schema, columns []string) error {
	for _, col := range columns {
		if !schema.HasColumn(col) {
			return &core.ColumnNotFoundError{Op: op, Column: col, Schema: schema}
		}
	}
	return nil
}
