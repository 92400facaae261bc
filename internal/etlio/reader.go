package etlio

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/ameijin/quicketl/pkg/backend"
	"github.com/ameijin/quicketl/pkg/core"
)

// Registrar is the slice of the execution context the reader needs:
// publishing source tables and registering their teardown.
type Registrar interface {
	RegisterTable(name string, handle *core.TableHandle) error
	RegisterEphemeral(name string, release core.ReleaseFunc)
}

// SourceReader loads declared sources into the backend and registers their
// handles.
type SourceReader struct {
	backend backend.Backend
	logger  *slog.Logger
}

// NewSourceReader creates a reader over a connected backend.
func NewSourceReader(b backend.Backend, logger *slog.Logger) *SourceReader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SourceReader{backend: b, logger: logger}
}

// Read loads one source and registers it in the context under the source's
// declared name. File loads land in a run-scoped staging table that is
// dropped at context teardown; table sources reference the existing
// relation directly.
func (r *SourceReader) Read(ctx context.Context, reg Registrar, desc core.SourceDescriptor) (*core.TableHandle, error) {
	var (
		handle *core.TableHandle
		err    error
	)

	switch desc.Type {
	case "file":
		handle, err = r.readFile(ctx, reg, desc)
	case "table":
		handle, err = r.readTable(ctx, desc)
	default:
		err = fmt.Errorf("unknown source type %q", desc.Type)
	}
	if err != nil {
		return nil, &core.SourceError{Source: desc.Name, Err: err}
	}

	if err := reg.RegisterTable(desc.Name, handle); err != nil {
		return nil, &core.SourceError{Source: desc.Name, Err: err}
	}
	r.logger.Info("source read", "source", desc.Name, "relation", handle.Relation, "columns", len(handle.Schema))
	return handle, nil
}

func (r *SourceReader) readFile(ctx context.Context, reg Registrar, desc core.SourceDescriptor) (*core.TableHandle, error) {
	format := desc.Format
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(desc.Path)), ".")
	}
	if format != "csv" {
		return nil, fmt.Errorf("unsupported file format %q", format)
	}

	staging := "qetl_src_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	err := withPathRetry(ctx, desc.Path, func(ctx context.Context) error {
		return r.backend.LoadCSV(ctx, staging, desc.Path)
	})
	if err != nil {
		return nil, err
	}

	b := r.backend
	reg.RegisterEphemeral(staging, func() error {
		return b.Exec(context.Background(), fmt.Sprintf("DROP TABLE IF EXISTS %s", b.Dialect().QuoteIdent(staging)))
	})

	md, err := r.backend.TableMetadata(ctx, staging)
	if err != nil {
		return nil, err
	}
	return &core.TableHandle{Relation: staging, Schema: core.Schema(md.Columns)}, nil
}

func (r *SourceReader) readTable(ctx context.Context, desc core.SourceDescriptor) (*core.TableHandle, error) {
	md, err := r.backend.TableMetadata(ctx, desc.Table)
	if err != nil {
		return nil, err
	}
	return &core.TableHandle{Relation: desc.Table, Schema: core.Schema(md.Columns)}, nil
}
