// Package postgres provides a PostgreSQL compute backend for QuickETL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/ameijin/quicketl/pkg/backend"
	"github.com/ameijin/quicketl/pkg/core"
)

// Backend implements the backend.Backend interface for PostgreSQL.
type Backend struct {
	backend.BaseSQLBackend
	dialect *backend.Dialect
}

// New creates a new PostgreSQL backend instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Backend{
		BaseSQLBackend: backend.BaseSQLBackend{Logger: logger},
		dialect:        backend.NewPostgresDialect(),
	}
}

// DialectName returns the SQL dialect for this backend.
func (b *Backend) DialectName() string {
	return "postgres"
}

// Dialect returns the SQL dialect configuration.
func (b *Backend) Dialect() *backend.Dialect {
	return b.dialect
}

// Connect establishes a connection to PostgreSQL.
func (b *Backend) Connect(ctx context.Context, cfg core.BackendConfig) error {
	dsn := buildDSN(cfg)

	b.Logger.Debug("connecting to postgres", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	b.DB = db
	b.Cfg = cfg
	return nil
}

// buildDSN builds a PostgreSQL connection string from the config.
func buildDSN(cfg core.BackendConfig) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	var parts []string
	parts = append(parts, fmt.Sprintf("host=%s", host))
	parts = append(parts, fmt.Sprintf("port=%d", port))
	if cfg.Database != "" {
		parts = append(parts, fmt.Sprintf("dbname=%s", cfg.Database))
	}
	if cfg.Username != "" {
		parts = append(parts, fmt.Sprintf("user=%s", cfg.Username))
	}
	if cfg.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", cfg.Password))
	}
	for k, v := range cfg.Options {
		parts = append(parts, fmt.Sprintf("%s=%s", k, v))
	}
	return strings.Join(parts, " ")
}

// TableMetadata retrieves metadata for a specified relation.
func (b *Backend) TableMetadata(ctx context.Context, table string) (*core.TableMetadata, error) {
	return b.TableMetadataCommon(ctx, table, b.dialect)
}

// LoadCSV loads data from a CSV file into a table using COPY FROM STDIN.
// All columns are created as TEXT for robustness; casts are a transform
// concern.
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

	if _, err := file.Seek(0, 0); err != nil {
		return fmt.Errorf("failed to reset file: %w", err)
	}

	if err := b.copyFromCSV(ctx, tableName, file); err != nil {
		return fmt.Errorf("failed to copy data: %w", err)
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

// copyFromCSV uses PostgreSQL COPY to load CSV data.
func (b *Backend) copyFromCSV(ctx context.Context, tableName string, file *os.File) error {
	conn, err := b.DB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	return conn.Raw(func(driverConn any) error {
		pgxConn := driverConn.(*stdlib.Conn).Conn()

		content, err := io.ReadAll(file)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}

		copySQL := fmt.Sprintf("COPY %s FROM STDIN WITH (FORMAT csv, HEADER true)", b.dialect.QuoteIdent(tableName))
		_, err = pgxConn.PgConn().CopyFrom(ctx, strings.NewReader(string(content)), copySQL)
		return err
	})
}

// Ensure Backend implements the backend.Backend interface
var _ backend.Backend = (*Backend)(nil)
