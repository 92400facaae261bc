// Package postgres provides a PostgreSQL compute backend for QuickETL.
//
// This file registers the backend with the backend registry. Import this
// package with a blank identifier to register it:
//
//	import _ "github.com/ameijin/quicketl/pkg/backends/postgres"
package postgres

import (
	"log/slog"

	"github.com/ameijin/quicketl/pkg/backend"
)

func init() {
	backend.Register("postgres", "Open source relational database", func(logger *slog.Logger) backend.Backend {
		return New(logger)
	})
}
