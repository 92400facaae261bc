// Package sqlite provides a SQLite compute backend for QuickETL.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // sqlite driver

	"github.com/ameijin/quicketl/pkg/backend"
	"github.com/ameijin/quicketl/pkg/core"
)

// insertBatchSize bounds the number of rows per INSERT statement when
// loading CSV data.
const insertBatchSize = 500

// Backend implements the backend.Backend interface for SQLite.
type Backend struct {
	backend.BaseSQLBackend
	dialect *backend.Dialect
}

// New creates a new SQLite backend instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Backend{
		BaseSQLBackend: backend.BaseSQLBackend{Logger: logger},
		dialect:        backend.NewSQLiteDialect(),
	}
}

// DialectName returns the SQL dialect for this backend.
func (b *Backend) DialectName() string {
	return "sqlite"
}

// Dialect returns the SQL dialect configuration.
func (b *Backend) Dialect() *backend.Dialect {
	return b.dialect
}

// Connect establishes a connection to SQLite.
// An empty path means an in-memory database.
func (b *Backend) Connect(ctx context.Context, cfg core.BackendConfig) error {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	b.Logger.Debug("connecting to sqlite", slog.String("path", path))

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite connection: %w", err)
	}

	// In-memory SQLite databases exist per connection; pin the pool to one
	// connection so views and tables stay visible across calls.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite: %w", err)
	}

	b.DB = db
	b.Cfg = cfg
	return nil
}

// TableMetadata retrieves metadata for a specified relation using
// PRAGMA table_info, since SQLite has no information_schema.
func (b *Backend) TableMetadata(ctx context.Context, table string) (*core.TableMetadata, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("backend connection not established")
	}

	_, tableName := backend.ParseQualifiedName(table, b.dialect)

	query := fmt.Sprintf("PRAGMA table_info(%s)", b.dialect.QuoteIdent(tableName))
	rows, err := b.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query table info: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var columns []core.Column
	for rows.Next() {
		var (
			cid        int
			name       string
			typ        string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultVal, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan table info: %w", err)
		}
		columns = append(columns, core.Column{
			Name:     name,
			Type:     typ,
			Nullable: notNull == 0,
			Position: cid + 1,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating table info: %w", err)
	}

	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s not found", table)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s", b.dialect.QuoteIdent(tableName))
	var rowCount int64
	if err := b.DB.QueryRowContext(ctx, countQuery).Scan(&rowCount); err != nil {
		rowCount = 0
	}

	return &core.TableMetadata{
		Schema:   "main",
		Name:     tableName,
		Columns:  columns,
		RowCount: rowCount,
	}, nil
}

// LoadCSV loads data from a CSV file into a table with TEXT columns using
// batched inserts.
func (b *Backend) LoadCSV(ctx context.Context, tableName string, filePath string) error {
	if b.DB == nil {
		return fmt.Errorf("backend connection not established")
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	file, err := os.Open(absPath) //nolint:gosec // path comes from pipeline config
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer func() { _ = file.Close() }()

	reader := csv.NewReader(file)
	headers, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read CSV header: %w", err)
	}

	if err := b.createTextTable(ctx, tableName, headers); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	quoted := make([]string, len(headers))
	placeholders := make([]string, len(headers))
	for i, h := range headers {
		quoted[i] = b.dialect.QuoteIdent(h)
		placeholders[i] = "?"
	}
	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		b.dialect.QuoteIdent(tableName), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))

	tx, err := b.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	batched := 0
	for {
		record, err := reader.Read()
		if err != nil {
			break // io.EOF or malformed tail; partial loads roll back below
		}
		args := make([]any, len(record))
		for i, v := range record {
			args[i] = v
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert row: %w", err)
		}
		batched++
		if batched%insertBatchSize == 0 {
			b.Logger.Debug("csv load progress", slog.Int("rows", batched))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit CSV load: %w", err)
	}
	return nil
}

// createTextTable creates or replaces a table with all TEXT columns.
func (b *Backend) createTextTable(ctx context.Context, tableName string, columns []string) error {
	dropSQL := fmt.Sprintf("DROP TABLE IF EXISTS %s", b.dialect.QuoteIdent(tableName))
	if _, err := b.DB.ExecContext(ctx, dropSQL); err != nil {
		return err
	}

	var colDefs []string
	for _, col := range columns {
		colDefs = append(colDefs, fmt.Sprintf("%s TEXT", b.dialect.QuoteIdent(col)))
	}

	createSQL := fmt.Sprintf("CREATE TABLE %s (%s)", b.dialect.QuoteIdent(tableName), strings.Join(colDefs, ", "))
	_, err := b.DB.ExecContext(ctx, createSQL)
	return err
}

// Ensure Backend implements the backend.Backend interface
var _ backend.Backend = (*Backend)(nil)
