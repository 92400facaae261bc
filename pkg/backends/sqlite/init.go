// Package sqlite provides a SQLite compute backend for QuickETL.
//
// This file registers the backend with the backend registry. Import this
// package with a blank identifier to register it:
//
//	import _ "github.com/ameijin/quicketl/pkg/backends/sqlite"
package sqlite

import (
	"log/slog"

	"github.com/ameijin/quicketl/pkg/backend"
)

func init() {
	backend.Register("sqlite", "Embedded relational database", func(logger *slog.Logger) backend.Backend {
		return New(logger)
	})
}
