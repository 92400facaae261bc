// Package duckdb provides a DuckDB compute backend for QuickETL.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/ameijin/quicketl/pkg/backend"
	"github.com/ameijin/quicketl/pkg/core"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// Backend implements the backend.Backend interface for DuckDB.
type Backend struct {
	backend.BaseSQLBackend
	dialect *backend.Dialect
}

// New creates a new DuckDB backend instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Backend{
		BaseSQLBackend: backend.BaseSQLBackend{Logger: logger},
		dialect:        backend.NewDuckDBDialect(),
	}
}

// DialectName returns the SQL dialect for this backend.
func (b *Backend) DialectName() string {
	return "duckdb"
}

// Dialect returns the SQL dialect configuration.
func (b *Backend) Dialect() *backend.Dialect {
	return b.dialect
}

// Connect establishes a connection to DuckDB.
// An empty path means an in-memory database.
func (b *Backend) Connect(ctx context.Context, cfg core.BackendConfig) error {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	b.Logger.Debug("connecting to duckdb", slog.String("path", path))

	db, err := sql.Open("duckdb", pathArg(path))
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	b.DB = db
	b.Cfg = cfg

	return nil
}

// pathArg normalizes the DSN; ":memory:" maps to the driver's default.
func pathArg(path string) string {
	if path == ":memory:" {
		return ""
	}
	return path
}

// TableMetadata retrieves metadata for a specified relation using DuckDB's
// information_schema.
func (b *Backend) TableMetadata(ctx context.Context, table string) (*core.TableMetadata, error) {
	return b.TableMetadataCommon(ctx, table, b.dialect)
}

// LoadCSV loads data from a CSV file into a table. DuckDB infers the schema
// from the file.
func (b *Backend) LoadCSV(ctx context.Context, tableName string, filePath string) error {
	if b.DB == nil {
		return fmt.Errorf("backend connection not established")
	}

	// Object-store URLs (s3://, gs://) go to read_csv_auto verbatim; only
	// local paths are anchored to the working directory.
	path := filePath
	if !core.IsRemotePath(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = abs
	}

	query := fmt.Sprintf(
		"CREATE OR REPLACE TABLE %s AS SELECT * FROM read_csv_auto(%s, header=true)",
		b.dialect.QuoteIdent(tableName),
		b.dialect.QuoteString(path),
	)

	if err := b.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to load CSV: %w", err)
	}

	return nil
}

// CopyTo writes the result of a query to a file using DuckDB's COPY.
// Format is inferred from the file extension (csv, parquet, json).
func (b *Backend) CopyTo(ctx context.Context, query, path string) error {
	format := "CSV, HEADER"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		format = "PARQUET"
	case ".json", ".ndjson":
		format = "JSON"
	}
	stmt := fmt.Sprintf("COPY (%s) TO %s (FORMAT %s)", query, b.dialect.QuoteString(path), format)
	return b.Exec(ctx, stmt)
}

// Ensure Backend implements the backend.Backend interface
var _ backend.Backend = (*Backend)(nil)
