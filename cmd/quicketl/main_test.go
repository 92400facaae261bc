// Package main provides tests for the quicketl CLI.
package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ameijin/quicketl/internal/cli"
)

func writePipeline(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orders.yml")
	content := `name: orders_daily
backend:
  type: duckdb
  path: ":memory:"
variables:
  min_amount: "0"
sources:
  - name: orders
    type: file
    path: orders.csv
    format: csv
transforms:
  - op: filter
    predicate: amount > ${min_amount}
  - op: select
    columns: [order_id, amount]
checks:
  - kind: row_count
    min: 1
sink:
  type: table
  table: orders_clean
  mode: replace
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write pipeline: %v", err)
	}
	return path
}

func TestVersionCommand(t *testing.T) {
	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Errorf("version command error = %v", err)
	}
	if !strings.Contains(buf.String(), "QuickETL") {
		t.Errorf("version output should contain 'QuickETL', got: %s", buf.String())
	}
}

func TestHelpCommand(t *testing.T) {
	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--help"})

	if err := cmd.Execute(); err != nil {
		t.Errorf("help command error = %v", err)
	}
	for _, expected := range []string{"run", "workflow", "validate", "backends", "version"} {
		if !strings.Contains(buf.String(), expected) {
			t.Errorf("help output should contain %q, got: %s", expected, buf.String())
		}
	}
}

func TestBackendsCommand(t *testing.T) {
	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"backends"})

	if err := cmd.Execute(); err != nil {
		t.Errorf("backends command error = %v", err)
	}
	for _, name := range []string{"duckdb", "postgres", "sqlite"} {
		if !strings.Contains(buf.String(), name) {
			t.Errorf("backends output should contain %q, got: %s", name, buf.String())
		}
	}
}

func TestValidateCommand(t *testing.T) {
	path := writePipeline(t)

	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"validate", path})

	if err := cmd.Execute(); err != nil {
		t.Errorf("validate command error = %v", err)
	}
	if !strings.Contains(buf.String(), "OK") {
		t.Errorf("validate output should contain 'OK', got: %s", buf.String())
	}
}

func TestValidateCommandBadPredicate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yml")
	content := `name: bad
backend:
  type: duckdb
sources:
  - name: orders
    type: file
    path: orders.csv
transforms:
  - op: filter
    predicate: "amount >"
sink:
  type: table
  table: out
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write pipeline: %v", err)
	}

	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"validate", path})

	if err := cmd.Execute(); err == nil {
		t.Error("validate should fail on an unparsable predicate")
	}
}

func TestUnknownCommand(t *testing.T) {
	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"unknown-command"})

	if err := cmd.Execute(); err == nil {
		t.Error("unknown command should return an error")
	}
}
