// Package backend defines the table-operations capability set that every
// compute backend implements, plus the factory registry used to construct
// backends by name.
//
// The engine and orchestrators depend only on the Backend interface, never on
// a concrete backend's identity. Concrete implementations live in
// pkg/backends/ subdirectories and register themselves in their init()
// functions.
package backend

import (
	"context"

	"github.com/ameijin/quicketl/pkg/core"
)

// Backend is the capability set the transform engine dispatches to. All SQL
// reaching a backend is assembled by the engine from schema-validated, quoted
// identifiers and escaped literals.
type Backend interface {
	// Connect establishes a connection using the provided config.
	Connect(ctx context.Context, cfg core.BackendConfig) error

	// Close closes the connection and releases resources.
	Close() error

	// DialectName returns the registered dialect name for this backend.
	DialectName() string

	// Dialect returns the SQL dialect configuration for this backend.
	Dialect() *Dialect

	// Exec executes a statement that doesn't return rows.
	Exec(ctx context.Context, sql string) error

	// Query executes a statement that returns rows.
	Query(ctx context.Context, sql string) (*core.Rows, error)

	// QueryInt64 executes a single-value query and returns it as int64.
	QueryInt64(ctx context.Context, sql string) (int64, error)

	// CreateView creates a temporary view over the given query. Views are
	// metadata only; no compute materializes until a result-producing call.
	CreateView(ctx context.Context, name, query string) error

	// DropView drops a view created by CreateView. Dropping a view that no
	// longer exists is not an error.
	DropView(ctx context.Context, name string) error

	// TableMetadata retrieves metadata for an existing relation.
	TableMetadata(ctx context.Context, table string) (*core.TableMetadata, error)

	// LoadCSV loads a CSV file into a new table, inferring or defaulting the
	// schema as the backend allows.
	LoadCSV(ctx context.Context, tableName, filePath string) error
}
