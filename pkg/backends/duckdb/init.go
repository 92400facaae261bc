// Package duckdb provides a DuckDB compute backend for QuickETL.
//
// This file registers the backend with the backend registry. Import this
// package with a blank identifier to register it:
//
//	import _ "github.com/ameijin/quicketl/pkg/backends/duckdb"
package duckdb

import (
	"log/slog"

	"github.com/ameijin/quicketl/pkg/backend"
)

func init() {
	backend.Register("duckdb", "Fast in-process analytical database", func(logger *slog.Logger) backend.Backend {
		return New(logger)
	})
}
