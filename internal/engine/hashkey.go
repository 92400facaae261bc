package engine

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/ameijin/quicketl/pkg/core"
)

// ephemeralScope collects releases for resources that must not outlive a
// single engine call. Release runs in reverse registration order and keeps
// going past failures.
type ephemeralScope struct {
	releases []core.ReleaseFunc
}

func (s *ephemeralScope) add(release core.ReleaseFunc) {
	s.releases = append(s.releases, release)
}

func (s *ephemeralScope) release() error {
	var err error
	for i := len(s.releases) - 1; i >= 0; i-- {
		err = multierr.Append(err, s.releases[i]())
	}
	s.releases = nil
	return err
}

func (e *Engine) applyHashKey(ctx context.Context, ectx Context, desc core.TransformDescriptor, input *core.TableHandle) (out *core.TableHandle, err error) {
	if len(desc.Columns) == 0 {
		return nil, &core.ConfigurationError{Field: "columns", Reason: "hash_key requires at least one column"}
	}
	if desc.Output == "" {
		return nil, &core.ConfigurationError{Field: "output", Reason: "hash_key requires an output column"}
	}
	if verr := validateColumns(core.OpHashKey, input.Schema, desc.Columns); verr != nil {
		return nil, verr
	}
	if input.Schema.HasColumn(desc.Output) {
		return nil, &core.ConfigurationError{Field: "output",
			Reason: fmt.Sprintf("hash_key output column %q already exists", desc.Output)}
	}

	hashExpr, ok := e.dialect.HashExpr(quoteAll(e.dialect, desc.Columns))
	if !ok {
		return nil, &core.UnsupportedOperationError{Op: core.OpHashKey,
			Detail: fmt.Sprintf("dialect %q has no hash function", e.dialect.Name)}
	}

	// The hash expression is validated through a zero-row scratch view
	// before the output view is built, so a dialect-level problem surfaces
	// here rather than at first read. The scratch view is call-scoped: it
	// is dropped before return whether validation passed or not.
	scope := &ephemeralScope{}
	defer func() {
		if rerr := scope.release(); rerr != nil {
			err = multierr.Append(err, &core.ResourceError{Resource: "hash_key scratch", Err: rerr})
		}
	}()

	scratch := tempName()
	scratchQuery := fmt.Sprintf("SELECT %s AS %s FROM %s LIMIT 0",
		hashExpr, e.dialect.QuoteIdent(desc.Output), quoteRelation(e.dialect, input.Relation))
	if cerr := e.backend.CreateView(ctx, scratch, scratchQuery); cerr != nil {
		return nil, cerr
	}
	b := e.backend
	scope.add(func() error { return b.DropView(context.Background(), scratch) })

	schema := make(core.Schema, 0, len(input.Schema)+1)
	schema = append(schema, input.Schema...)
	schema = append(schema, core.Column{Name: desc.Output, Type: "varchar", Nullable: false})

	query := fmt.Sprintf("SELECT *, %s AS %s FROM %s",
		hashExpr, e.dialect.QuoteIdent(desc.Output), quoteRelation(e.dialect, input.Relation))
	return e.materialize(ctx, ectx, query, schema)
}
