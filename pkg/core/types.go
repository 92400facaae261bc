// Package core defines the shared types used across QuickETL's pipeline
// engine: schemas, table handles, backend configuration, descriptors,
// results, and the error taxonomy.
//
// This package is a leaf: it imports nothing from the rest of the module so
// that backends, the engine, and the orchestrators can all depend on it.
package core

import (
	"database/sql"
	"strings"
)

// Column describes a single column of a table's logical schema.
type Column struct {
	Name     string
	Type     string
	Nullable bool
	Position int
}

// Schema is the ordered logical schema of a table. Column names are unique
// within a schema.
type Schema []Column

// Names returns the column names in declaration order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

// Column returns the column with the given name.
func (s Schema) Column(name string) (Column, bool) {
	for _, c := range s {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// HasColumn reports whether the schema contains a column with the given name.
func (s Schema) HasColumn(name string) bool {
	_, ok := s.Column(name)
	return ok
}

// String renders the schema as "name type, name type, ...".
func (s Schema) String() string {
	parts := make([]string, len(s))
	for i, c := range s {
		parts[i] = c.Name + " " + c.Type
	}
	return strings.Join(parts, ", ")
}

// TableHandle is an opaque reference to a backend-resident relation plus its
// logical schema. Handles are immutable once created: transforms produce new
// handles rather than modifying inputs.
type TableHandle struct {
	// Relation is the backend-side name of the relation (table or view).
	Relation string
	// Schema is the logical schema of the relation.
	Schema Schema
}

// BackendConfig holds connection configuration for a compute backend.
type BackendConfig struct {
	Type     string            `koanf:"type"`
	Path     string            `koanf:"path"`
	Host     string            `koanf:"host"`
	Port     int               `koanf:"port"`
	Database string            `koanf:"database"`
	Username string            `koanf:"username"`
	Password string            `koanf:"password"`
	Schema   string            `koanf:"schema"`
	Options  map[string]string `koanf:"options"`
}

// TableMetadata holds backend-reported metadata about a relation.
type TableMetadata struct {
	Schema   string
	Name     string
	Columns  []Column
	RowCount int64
}

// Rows wraps sql.Rows to keep database/sql out of component signatures.
type Rows struct {
	*sql.Rows
}

// ReleaseFunc releases one ephemeral backend resource (temp view, open
// connection). It must be safe to call exactly once.
type ReleaseFunc func() error

// IsRemotePath reports whether path carries a URL scheme (s3://, gs://,
// https://) rather than naming a local file. Remote paths must never be
// passed through filesystem normalization.
func IsRemotePath(path string) bool {
	return strings.Contains(path, "://")
}
