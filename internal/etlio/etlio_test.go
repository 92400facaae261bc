package etlio

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ameijin/quicketl/pkg/backend"
	"github.com/ameijin/quicketl/pkg/core"
)

// ioBackend records statements and serves canned metadata.
type ioBackend struct {
	dialect  *backend.Dialect
	execs    []string
	loads    []string
	metadata map[string]*core.TableMetadata

	loadErr error
	execErr error
}

func newIOBackend() *ioBackend {
	return &ioBackend{
		dialect:  backend.NewDuckDBDialect(),
		metadata: map[string]*core.TableMetadata{},
	}
}

func (b *ioBackend) Connect(ctx context.Context, cfg core.BackendConfig) error { return nil }
func (b *ioBackend) Close() error                                              { return nil }
func (b *ioBackend) DialectName() string                                       { return b.dialect.Name }
func (b *ioBackend) Dialect() *backend.Dialect                                 { return b.dialect }

func (b *ioBackend) Exec(ctx context.Context, q string) error {
	b.execs = append(b.execs, q)
	return b.execErr
}

func (b *ioBackend) Query(ctx context.Context, q string) (*core.Rows, error) {
	return nil, errors.New("not implemented")
}

func (b *ioBackend) QueryInt64(ctx context.Context, q string) (int64, error) { return 42, nil }

func (b *ioBackend) CreateView(ctx context.Context, name, query string) error { return nil }
func (b *ioBackend) DropView(ctx context.Context, name string) error          { return nil }

func (b *ioBackend) TableMetadata(ctx context.Context, table string) (*core.TableMetadata, error) {
	if md, ok := b.metadata[table]; ok {
		return md, nil
	}
	// File loads land in generated staging tables; serve a default shape.
	return &core.TableMetadata{
		Name:    table,
		Columns: []core.Column{{Name: "id", Type: "bigint"}, {Name: "name", Type: "varchar"}},
	}, nil
}

func (b *ioBackend) LoadCSV(ctx context.Context, tableName, filePath string) error {
	b.loads = append(b.loads, filePath)
	return b.loadErr
}

type recordingRegistrar struct {
	tables     map[string]*core.TableHandle
	ephemerals []string
}

func newRecordingRegistrar() *recordingRegistrar {
	return &recordingRegistrar{tables: map[string]*core.TableHandle{}}
}

func (r *recordingRegistrar) RegisterTable(name string, handle *core.TableHandle) error {
	if _, exists := r.tables[name]; exists {
		return errors.New("duplicate")
	}
	r.tables[name] = handle
	return nil
}

func (r *recordingRegistrar) RegisterEphemeral(name string, release core.ReleaseFunc) {
	r.ephemerals = append(r.ephemerals, name)
}

func TestIsCloudPath(t *testing.T) {
	assert.True(t, isCloudPath("s3://bucket/key.csv"))
	assert.True(t, isCloudPath("GS://bucket/key.csv"))
	assert.True(t, isCloudPath("abfss://container@account/path"))
	assert.False(t, isCloudPath("/tmp/data.csv"))
	assert.False(t, isCloudPath("data/s3.csv"))
}

func TestWithPathRetryLocalRunsOnce(t *testing.T) {
	calls := 0
	err := withPathRetry(context.Background(), "/tmp/data.csv", func(ctx context.Context) error {
		calls++
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithPathRetryCloudSucceeds(t *testing.T) {
	calls := 0
	err := withPathRetry(context.Background(), "s3://bucket/data.csv", func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestReadFileSource(t *testing.T) {
	b := newIOBackend()
	reg := newRecordingRegistrar()
	r := NewSourceReader(b, nil)

	handle, err := r.Read(context.Background(), reg, core.SourceDescriptor{
		Name: "raw_users", Type: "file", Path: "testdata/users.csv",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"testdata/users.csv"}, b.loads)
	assert.True(t, strings.HasPrefix(handle.Relation, "qetl_src_"))
	assert.Equal(t, []string{"id", "name"}, handle.Schema.Names())
	assert.Contains(t, reg.tables, "raw_users")
	assert.Len(t, reg.ephemerals, 1)
}

func TestReadFileSourceUnsupportedFormat(t *testing.T) {
	r := NewSourceReader(newIOBackend(), nil)

	_, err := r.Read(context.Background(), newRecordingRegistrar(), core.SourceDescriptor{
		Name: "raw", Type: "file", Path: "data.xlsx",
	})

	var srcErr *core.SourceError
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, "raw", srcErr.Source)
}

func TestReadFileSourceLoadFailure(t *testing.T) {
	b := newIOBackend()
	b.loadErr = errors.New("no such file")
	r := NewSourceReader(b, nil)

	_, err := r.Read(context.Background(), newRecordingRegistrar(), core.SourceDescriptor{
		Name: "raw", Type: "file", Path: "missing.csv",
	})

	var srcErr *core.SourceError
	require.ErrorAs(t, err, &srcErr)
}

func TestReadTableSource(t *testing.T) {
	b := newIOBackend()
	b.metadata["analytics.users"] = &core.TableMetadata{
		Name:    "users",
		Columns: []core.Column{{Name: "id", Type: "bigint"}},
	}
	reg := newRecordingRegistrar()
	r := NewSourceReader(b, nil)

	handle, err := r.Read(context.Background(), reg, core.SourceDescriptor{
		Name: "users", Type: "table", Table: "analytics.users",
	})
	require.NoError(t, err)

	assert.Equal(t, "analytics.users", handle.Relation)
	// Existing tables are not ephemeral.
	assert.Empty(t, reg.ephemerals)
}

func finalHandle() *core.TableHandle {
	return &core.TableHandle{
		Relation: "qetl_final",
		Schema:   core.Schema{{Name: "id", Type: "bigint"}, {Name: "total", Type: "double"}},
	}
}

func TestWriteTableAppend(t *testing.T) {
	b := newIOBackend()
	w := NewSinkWriter(b, nil)

	written, err := w.Write(context.Background(), finalHandle(), core.SinkDescriptor{
		Type: "table", Table: "marts.orders", Mode: "append",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), written)

	require.Len(t, b.execs, 2)
	assert.Contains(t, b.execs[0], "CREATE TABLE IF NOT EXISTS")
	assert.Contains(t, b.execs[1], `INSERT INTO "marts"."orders" ("id", "total")`)
}

func TestWriteTableTruncate(t *testing.T) {
	b := newIOBackend()
	w := NewSinkWriter(b, nil)

	_, err := w.Write(context.Background(), finalHandle(), core.SinkDescriptor{
		Type: "table", Table: "orders", Mode: "truncate",
	})
	require.NoError(t, err)

	require.Len(t, b.execs, 3)
	assert.Contains(t, b.execs[1], `DELETE FROM "orders"`)
	assert.Contains(t, b.execs[2], "INSERT INTO")
}

func TestWriteTableReplace(t *testing.T) {
	b := newIOBackend()
	w := NewSinkWriter(b, nil)

	_, err := w.Write(context.Background(), finalHandle(), core.SinkDescriptor{
		Type: "table", Table: "orders", Mode: "replace",
	})
	require.NoError(t, err)

	require.Len(t, b.execs, 2)
	assert.Contains(t, b.execs[0], `DROP TABLE IF EXISTS "orders"`)
	assert.Contains(t, b.execs[1], `CREATE TABLE "orders" AS SELECT`)
}

func TestWriteTableUpsert(t *testing.T) {
	b := newIOBackend()
	w := NewSinkWriter(b, nil)

	_, err := w.Write(context.Background(), finalHandle(), core.SinkDescriptor{
		Type: "table", Table: "orders", Mode: "upsert", Keys: []string{"id"},
	})
	require.NoError(t, err)

	require.Len(t, b.execs, 3)
	assert.Contains(t, b.execs[1], `DELETE FROM "orders" t WHERE EXISTS`)
	assert.Contains(t, b.execs[1], `t."id" = s."id"`)
	assert.Contains(t, b.execs[2], "INSERT INTO")
}

func TestWriteTableUpsertUnknownKey(t *testing.T) {
	w := NewSinkWriter(newIOBackend(), nil)

	_, err := w.Write(context.Background(), finalHandle(), core.SinkDescriptor{
		Type: "table", Table: "orders", Mode: "upsert", Keys: []string{"nope"},
	})

	var sinkErr *core.SinkError
	require.ErrorAs(t, err, &sinkErr)
}

func TestWriteDefaultsToAppend(t *testing.T) {
	b := newIOBackend()
	w := NewSinkWriter(b, nil)

	_, err := w.Write(context.Background(), finalHandle(), core.SinkDescriptor{
		Type: "table", Table: "orders",
	})
	require.NoError(t, err)
	assert.Contains(t, b.execs[len(b.execs)-1], "INSERT INTO")
}

func TestWriteExecFailureWrapsSinkError(t *testing.T) {
	b := newIOBackend()
	b.execErr = errors.New("permission denied")
	w := NewSinkWriter(b, nil)

	_, err := w.Write(context.Background(), finalHandle(), core.SinkDescriptor{
		Type: "table", Table: "orders", Mode: "replace",
	})

	var sinkErr *core.SinkError
	require.ErrorAs(t, err, &sinkErr)
	assert.Equal(t, "orders", sinkErr.Sink)
}
