package etlio

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ameijin/quicketl/pkg/backend"
	"github.com/ameijin/quicketl/pkg/core"
)

// fileCopier is the optional fast path for file sinks. The DuckDB backend
// implements it; others fall back to row-by-row CSV export.
type fileCopier interface {
	CopyTo(ctx context.Context, query, path string) error
}

// SinkWriter writes the final table to the configured sink.
type SinkWriter struct {
	backend backend.Backend
	dialect *backend.Dialect
	logger  *slog.Logger
}

// NewSinkWriter creates a writer over a connected backend.
func NewSinkWriter(b backend.Backend, logger *slog.Logger) *SinkWriter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SinkWriter{backend: b, dialect: b.Dialect(), logger: logger}
}

// Write materializes the table into the sink and returns the rows written.
// Table-sink modes other than append are multi-statement and therefore not
// atomic; a failure mid-write leaves the partial state behind.
func (w *SinkWriter) Write(ctx context.Context, handle *core.TableHandle, sink core.SinkDescriptor) (int64, error) {
	var (
		written int64
		err     error
	)
	switch sink.Type {
	case "file":
		written, err = w.writeFile(ctx, handle, sink)
	case "table":
		written, err = w.writeTable(ctx, handle, sink)
	default:
		err = fmt.Errorf("unknown sink type %q", sink.Type)
	}
	if err != nil {
		return 0, &core.SinkError{Sink: sinkLabel(sink), Err: err}
	}
	w.logger.Info("sink written", "sink", sinkLabel(sink), "rows", written)
	return written, nil
}

func sinkLabel(sink core.SinkDescriptor) string {
	if sink.Type == "file" {
		return sink.Path
	}
	return sink.Table
}

func (w *SinkWriter) writeFile(ctx context.Context, handle *core.TableHandle, sink core.SinkDescriptor) (int64, error) {
	rows, err := w.backend.QueryInt64(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", w.quoteRelation(handle.Relation)))
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf("SELECT * FROM %s", w.quoteRelation(handle.Relation))
	if copier, ok := w.backend.(fileCopier); ok {
		err = withPathRetry(ctx, sink.Path, func(ctx context.Context) error {
			return copier.CopyTo(ctx, query, sink.Path)
		})
		return rows, err
	}

	if isCloudPath(sink.Path) {
		return 0, fmt.Errorf("backend %q cannot write cloud path %q directly", w.backend.DialectName(), sink.Path)
	}
	return rows, w.exportCSV(ctx, handle, query, sink.Path)
}

// exportCSV is the portable file path: stream rows through database/sql and
// write a CSV with a header row.
func (w *SinkWriter) exportCSV(ctx context.Context, handle *core.TableHandle, query, path string) error {
	result, err := w.backend.Query(ctx, query)
	if err != nil {
		return err
	}
	defer result.Close()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(handle.Schema.Names()); err != nil {
		return err
	}

	values := make([]sql.NullString, len(handle.Schema))
	scan := make([]any, len(values))
	for i := range values {
		scan[i] = &values[i]
	}
	record := make([]string, len(values))

	for result.Next() {
		if err := result.Scan(scan...); err != nil {
			return err
		}
		for i, v := range values {
			if v.Valid {
				record[i] = v.String
			} else {
				record[i] = ""
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	if err := result.Err(); err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}

func (w *SinkWriter) writeTable(ctx context.Context, handle *core.TableHandle, sink core.SinkDescriptor) (int64, error) {
	mode := sink.Mode
	if mode == "" {
		mode = "append"
	}

	target := w.quoteRelation(sink.Table)
	source := w.quoteRelation(handle.Relation)
	cols := strings.Join(w.quoteColumns(handle.Schema.Names()), ", ")

	rows, err := w.backend.QueryInt64(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", source))
	if err != nil {
		return 0, err
	}

	switch mode {
	case "append":
		if err := w.ensureTarget(ctx, target, source, cols); err != nil {
			return 0, err
		}
		return rows, w.backend.Exec(ctx, fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s", target, cols, cols, source))

	case "truncate":
		if err := w.ensureTarget(ctx, target, source, cols); err != nil {
			return 0, err
		}
		if err := w.backend.Exec(ctx, fmt.Sprintf("DELETE FROM %s", target)); err != nil {
			return 0, err
		}
		return rows, w.backend.Exec(ctx, fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s", target, cols, cols, source))

	case "replace":
		if err := w.backend.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", target)); err != nil {
			return 0, err
		}
		return rows, w.backend.Exec(ctx, fmt.Sprintf("CREATE TABLE %s AS SELECT %s FROM %s", target, cols, source))

	case "upsert":
		if len(sink.Keys) == 0 {
			return 0, &core.ConfigurationError{Field: "sink.keys", Reason: "upsert requires keys"}
		}
		for _, key := range sink.Keys {
			if !handle.Schema.HasColumn(key) {
				return 0, &core.ColumnNotFoundError{Op: "upsert", Column: key, Schema: handle.Schema}
			}
		}
		if err := w.ensureTarget(ctx, target, source, cols); err != nil {
			return 0, err
		}
		// Delete-then-insert keyed upsert. Two statements, not atomic.
		conds := make([]string, len(sink.Keys))
		for i, key := range sink.Keys {
			q := w.dialect.QuoteIdent(key)
			conds[i] = fmt.Sprintf("t.%s = s.%s", q, q)
		}
		del := fmt.Sprintf("DELETE FROM %s t WHERE EXISTS (SELECT 1 FROM %s s WHERE %s)",
			target, source, strings.Join(conds, " AND "))
		if err := w.backend.Exec(ctx, del); err != nil {
			return 0, err
		}
		return rows, w.backend.Exec(ctx, fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s", target, cols, cols, source))

	default:
		return 0, fmt.Errorf("unknown sink mode %q", mode)
	}
}

// ensureTarget creates the target table from the source's shape when it does
// not exist yet, so first runs of append/truncate/upsert pipelines work
// without a migration step.
func (w *SinkWriter) ensureTarget(ctx context.Context, target, source, cols string) error {
	return w.backend.Exec(ctx, fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s AS SELECT %s FROM %s LIMIT 0", target, cols, source))
}

func (w *SinkWriter) quoteRelation(rel string) string {
	parts := strings.Split(rel, ".")
	for i, p := range parts {
		parts[i] = w.dialect.QuoteIdent(p)
	}
	return strings.Join(parts, ".")
}

func (w *SinkWriter) quoteColumns(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = w.dialect.QuoteIdent(n)
	}
	return out
}
