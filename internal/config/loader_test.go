package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ameijin/quicketl/pkg/backend"
	"github.com/ameijin/quicketl/pkg/core"
)

func init() {
	// Validation only needs the backend name to resolve.
	backend.Register("filedb", "Stub backend for loader tests", func(*slog.Logger) backend.Backend { return nil })
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadPipeline(t *testing.T) {
	path := writeConfig(t, `name: orders_daily
backend:
  type: filedb
  path: warehouse.db
variables:
  env: dev
sources:
  - name: orders
    type: file
    path: data/${env}/orders.csv
    format: csv
  - name: customers
    type: table
    table: raw.customers
transforms:
  - op: filter
    predicate: amount > 0
  - op: join
    right: customers
    on:
      - left: customer_id
    how: left
checks:
  - kind: not_null
    columns: [order_id]
  - kind: row_count
    min: 1
    max: 100000
sink:
  type: table
  table: marts.orders
  mode: upsert
  keys: [order_id]
`)

	cfg, err := LoadPipeline(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "orders_daily", cfg.Name)
	assert.Equal(t, "filedb", cfg.Backend.Type)
	require.Len(t, cfg.Sources, 2)
	assert.Equal(t, "data/dev/orders.csv", cfg.Sources[0].Path)
	assert.Equal(t, "raw.customers", cfg.Sources[1].Table)

	require.Len(t, cfg.Transforms, 2)
	assert.Equal(t, core.OpFilter, cfg.Transforms[0].Op)
	assert.Equal(t, "amount > 0", cfg.Transforms[0].Predicate)
	assert.Equal(t, "customers", cfg.Transforms[1].Right)
	require.Len(t, cfg.Transforms[1].On, 1)
	assert.Equal(t, "customer_id", cfg.Transforms[1].On[0].Left)

	require.Len(t, cfg.Checks, 2)
	require.NotNil(t, cfg.Checks[1].Min)
	assert.EqualValues(t, 1, *cfg.Checks[1].Min)
	require.NotNil(t, cfg.Checks[1].Max)
	assert.EqualValues(t, 100000, *cfg.Checks[1].Max)

	require.NotNil(t, cfg.Sink)
	assert.Equal(t, "upsert", cfg.Sink.Mode)
	assert.Equal(t, []string{"order_id"}, cfg.Sink.Keys)
	assert.True(t, cfg.ShouldFailOnChecks())
}

func TestLoadPipelineCallerVariablesWin(t *testing.T) {
	path := writeConfig(t, `name: orders
backend:
  type: filedb
variables:
  env: dev
sources:
  - name: orders
    type: file
    path: data/${env}/orders.csv
`)

	cfg, err := LoadPipeline(path, map[string]string{"env": "prod"})
	require.NoError(t, err)
	assert.Equal(t, "data/prod/orders.csv", cfg.Sources[0].Path)
	assert.Equal(t, "prod", cfg.Variables["env"])
}

func TestLoadPipelineSeedsPrefixedEnvVariables(t *testing.T) {
	t.Setenv("QUICKETL_env", "staging")
	t.Setenv("QUICKETL_region", "eu")
	t.Setenv("UNPREFIXED", "ignored")

	path := writeConfig(t, `name: orders
backend:
  type: filedb
variables:
  env: dev
sources:
  - name: orders
    type: file
    path: data/${env}/${region}/orders.csv
`)

	// Environment wins over the file's block; explicit variables win over
	// both. Unprefixed environment names are not seeded.
	cfg, err := LoadPipeline(path, map[string]string{"region": "us"})
	require.NoError(t, err)
	assert.Equal(t, "data/staging/us/orders.csv", cfg.Sources[0].Path)
}

func TestLoadPipelineMissingFile(t *testing.T) {
	_, err := LoadPipeline(filepath.Join(t.TempDir(), "nope.yml"), nil)
	var cerr *core.ConfigurationError
	require.ErrorAs(t, err, &cerr)
}

func TestLoadPipelineUnknownBackend(t *testing.T) {
	path := writeConfig(t, `name: orders
backend:
  type: oracle
sources:
  - name: orders
    type: file
    path: orders.csv
`)

	_, err := LoadPipeline(path, nil)
	var cerr *core.ConfigurationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "backend.type", cerr.Field)
}

func TestLoadPipelineUpsertRequiresKeys(t *testing.T) {
	path := writeConfig(t, `name: orders
backend:
  type: filedb
sources:
  - name: orders
    type: file
    path: orders.csv
sink:
  type: table
  table: out
  mode: upsert
`)

	_, err := LoadPipeline(path, nil)
	var cerr *core.ConfigurationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "sink.keys", cerr.Field)
}

func TestLoadPipelineDuplicateSource(t *testing.T) {
	path := writeConfig(t, `name: orders
backend:
  type: filedb
sources:
  - name: orders
    type: file
    path: a.csv
  - name: orders
    type: file
    path: b.csv
`)

	_, err := LoadPipeline(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate source")
}

func TestLoadWorkflow(t *testing.T) {
	path := writeConfig(t, `name: nightly
on_failure: continue
pipelines:
  staging: pipelines/staging.yml
  marts: pipelines/marts.yml
stages:
  - name: staging
    parallel: true
    pipelines: [staging]
  - name: marts
    pipelines: [marts]
`)

	cfg, err := LoadWorkflow(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "nightly", cfg.Name)
	assert.Equal(t, OnFailureContinue, cfg.Policy())
	require.Len(t, cfg.Stages, 2)
	assert.True(t, cfg.Stages[0].Parallel)
	assert.Equal(t, "pipelines/marts.yml", cfg.Pipelines["marts"])
}

func TestLoadWorkflowUnknownPipelineRef(t *testing.T) {
	path := writeConfig(t, `name: nightly
pipelines:
  staging: pipelines/staging.yml
stages:
  - name: staging
    pipelines: [staging, ghost]
`)

	_, err := LoadWorkflow(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}
