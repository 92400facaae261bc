// Package main provides the quicketl CLI.
package main

import (
	"os"

	"github.com/ameijin/quicketl/internal/cli"

	// Registered backends.
	_ "github.com/ameijin/quicketl/pkg/backends/duckdb"
	_ "github.com/ameijin/quicketl/pkg/backends/postgres"
	_ "github.com/ameijin/quicketl/pkg/backends/sqlite"
)

func main() {
	os.Exit(cli.Execute())
}
