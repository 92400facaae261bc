package backend

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ameijin/quicketl/pkg/core"
)

// BaseSQLBackend provides common database/sql functionality for backends.
// Embed this struct in concrete backend implementations to get standard
// Close, Exec, Query, and view-lifecycle implementations.
type BaseSQLBackend struct {
	DB     *sql.DB
	Cfg    core.BackendConfig
	Logger *slog.Logger
}

// Close closes the database connection.
func (b *BaseSQLBackend) Close() error {
	if b.DB != nil {
		if b.Logger != nil {
			b.Logger.Debug("closing backend connection")
		}
		return b.DB.Close()
	}
	return nil
}

// Exec executes a SQL statement that doesn't return rows.
func (b *BaseSQLBackend) Exec(ctx context.Context, sqlStr string) error {
	if b.DB == nil {
		return fmt.Errorf("backend connection not established")
	}
	_, err := b.DB.ExecContext(ctx, sqlStr)
	if err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

// Query executes a SQL statement that returns rows.
func (b *BaseSQLBackend) Query(ctx context.Context, sqlStr string) (*core.Rows, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("backend connection not established")
	}
	//nolint:rowserrcheck // rows.Err() must be checked by caller after iteration completes
	rows, err := b.DB.QueryContext(ctx, sqlStr)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return &core.Rows{Rows: rows}, nil
}

// QueryInt64 executes a single-value query and scans the result as int64.
func (b *BaseSQLBackend) QueryInt64(ctx context.Context, sqlStr string) (int64, error) {
	if b.DB == nil {
		return 0, fmt.Errorf("backend connection not established")
	}
	var v int64
	if err := b.DB.QueryRowContext(ctx, sqlStr).Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to scan query value: %w", err)
	}
	return v, nil
}

// CreateView creates a temporary view over the given query.
func (b *BaseSQLBackend) CreateView(ctx context.Context, name, query string) error {
	stmt := fmt.Sprintf("CREATE TEMPORARY VIEW %q AS %s", name, query)
	if err := b.Exec(ctx, stmt); err != nil {
		return &core.ResourceError{Resource: name, Err: err}
	}
	return nil
}

// DropView drops a view created by CreateView.
func (b *BaseSQLBackend) DropView(ctx context.Context, name string) error {
	stmt := fmt.Sprintf("DROP VIEW IF EXISTS %q", name)
	if err := b.Exec(ctx, stmt); err != nil {
		return &core.ResourceError{Resource: name, Err: err}
	}
	return nil
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLBackend) IsConnected() bool {
	return b.DB != nil
}

// ParseQualifiedName splits a table reference into schema and name.
// Uses the dialect's default schema if not specified.
func ParseQualifiedName(table string, d *Dialect) (schema, name string) {
	if parts := strings.Split(table, "."); len(parts) == 2 {
		return parts[0], parts[1]
	}
	return d.DefaultSchema, table
}

// TableMetadataCommon provides a shared implementation of TableMetadata
// using information_schema.columns with dialect-appropriate placeholders.
func (b *BaseSQLBackend) TableMetadataCommon(ctx context.Context, table string, d *Dialect) (*core.TableMetadata, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("backend connection not established")
	}

	schema, tableName := ParseQualifiedName(table, d)

	//nolint:gosec // Placeholders come from dialect.FormatPlaceholder and are safe
	query := fmt.Sprintf(`
		SELECT
			column_name,
			data_type,
			is_nullable,
			ordinal_position
		FROM information_schema.columns
		WHERE table_schema = %s AND table_name = %s
		ORDER BY ordinal_position
	`, d.FormatPlaceholder(1), d.FormatPlaceholder(2))

	rows, err := b.DB.QueryContext(ctx, query, schema, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var columns []core.Column
	for rows.Next() {
		var col core.Column
		var nullable string
		if err := rows.Scan(&col.Name, &col.Type, &nullable, &col.Position); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		col.Nullable = nullable == "YES"
		columns = append(columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}

	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s not found", table)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s.%s", d.QuoteIdent(schema), d.QuoteIdent(tableName))
	var rowCount int64
	if err := b.DB.QueryRowContext(ctx, countQuery).Scan(&rowCount); err != nil {
		// Non-fatal, leave at 0
		rowCount = 0
	}

	return &core.TableMetadata{
		Schema:   schema,
		Name:     tableName,
		Columns:  columns,
		RowCount: rowCount,
	}, nil
}
