package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ameijin/quicketl/pkg/backend"
	"github.com/ameijin/quicketl/pkg/backends/duckdb"
	"github.com/ameijin/quicketl/pkg/backends/sqlite"
	"github.com/ameijin/quicketl/pkg/core"
)

// These tests run transforms against real embedded databases and assert on
// the rows that come back, not on the generated SQL.

func openSQLite(t *testing.T) *sqlite.Backend {
	t.Helper()
	b := sqlite.New(nil)
	require.NoError(t, b.Connect(context.Background(), core.BackendConfig{}))
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func openDuckDB(t *testing.T) *duckdb.Backend {
	t.Helper()
	b := duckdb.New(nil)
	require.NoError(t, b.Connect(context.Background(), core.BackendConfig{}))
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func execAll(t *testing.T, b backend.Backend, stmts ...string) {
	t.Helper()
	for _, stmt := range stmts {
		require.NoError(t, b.Exec(context.Background(), stmt))
	}
}

func countWhere(t *testing.T, b backend.Backend, relation, where string) int64 {
	t.Helper()
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", b.Dialect().QuoteIdent(relation), where)
	n, err := b.QueryInt64(context.Background(), q)
	require.NoError(t, err)
	return n
}

func TestLeftJoinRows(t *testing.T) {
	b := openSQLite(t)
	execAll(t, b,
		`CREATE TABLE orders (k INTEGER, name TEXT)`,
		`INSERT INTO orders VALUES (1, 'ann'), (2, 'bob'), (3, 'cyd')`,
		`CREATE TABLE scores (k INTEGER, score INTEGER)`,
		`INSERT INTO scores VALUES (1, 10), (1, 20)`,
	)

	e := New(b, nil)
	ectx := newFakeContext()
	require.NoError(t, ectx.RegisterTable("scores", &core.TableHandle{
		Relation: "scores",
		Schema: core.Schema{
			{Name: "k", Type: "integer"},
			{Name: "score", Type: "integer", Nullable: true},
		},
	}))

	out, err := e.Apply(context.Background(), ectx, core.TransformDescriptor{
		Op: core.OpJoin, Right: "scores", How: "left",
		On: []core.JoinPair{{Left: "k"}},
	}, &core.TableHandle{
		Relation: "orders",
		Schema: core.Schema{
			{Name: "k", Type: "integer"},
			{Name: "name", Type: "varchar"},
		},
	})
	require.NoError(t, err)

	// k=1 matches twice, k=2 and k=3 carry NULL right-side columns.
	total, err := e.RowCount(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Equal(t, int64(2), countWhere(t, b, out.Relation, `"score" IS NULL`))
	assert.Equal(t, int64(0), countWhere(t, b, out.Relation, `"k" IS NULL`))
}

func TestRightJoinKeepsUnmatchedKeyRows(t *testing.T) {
	b := openSQLite(t)
	execAll(t, b,
		`CREATE TABLE orders (k INTEGER, name TEXT)`,
		`INSERT INTO orders VALUES (1, 'ann')`,
		`CREATE TABLE scores (k INTEGER, score INTEGER)`,
		`INSERT INTO scores VALUES (1, 10), (2, 20)`,
	)

	e := New(b, nil)
	ectx := newFakeContext()
	require.NoError(t, ectx.RegisterTable("scores", &core.TableHandle{
		Relation: "scores",
		Schema: core.Schema{
			{Name: "k", Type: "integer"},
			{Name: "score", Type: "integer", Nullable: true},
		},
	}))

	out, err := e.Apply(context.Background(), ectx, core.TransformDescriptor{
		Op: core.OpJoin, Right: "scores", How: "right",
		On: []core.JoinPair{{Left: "k"}},
	}, &core.TableHandle{
		Relation: "orders",
		Schema: core.Schema{
			{Name: "k", Type: "integer"},
			{Name: "name", Type: "varchar"},
		},
	})
	require.NoError(t, err)

	// The unmatched right row (k=2) keeps its key in the output.
	total, err := e.RowCount(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, int64(0), countWhere(t, b, out.Relation, `"k" IS NULL`))
	assert.Equal(t, int64(1), countWhere(t, b, out.Relation, `"k" = 2 AND "name" IS NULL`))
}

func TestHashKeyRows(t *testing.T) {
	b := openDuckDB(t)
	execAll(t, b,
		`CREATE TABLE items (tag VARCHAR, a VARCHAR, b VARCHAR)`,
		`INSERT INTO items VALUES
			('same1', 'a', 'b'),
			('same2', 'a', 'b'),
			('shift1', 'a||b', 'c'),
			('shift2', 'a', 'b||c'),
			('null1', 'x', NULL),
			('null2', NULL, 'x'),
			('empty', '', '')`,
	)

	e := New(b, nil)
	ectx := newFakeContext()

	out, err := e.Apply(context.Background(), ectx, core.TransformDescriptor{
		Op: core.OpHashKey, Columns: []string{"a", "b"}, Output: "h",
	}, &core.TableHandle{
		Relation: "items",
		Schema: core.Schema{
			{Name: "tag", Type: "varchar"},
			{Name: "a", Type: "varchar", Nullable: true},
			{Name: "b", Type: "varchar", Nullable: true},
		},
	})
	require.NoError(t, err)

	distinct := func(where string) int64 {
		t.Helper()
		q := fmt.Sprintf(`SELECT COUNT(DISTINCT "h") FROM %s WHERE %s`,
			b.Dialect().QuoteIdent(out.Relation), where)
		n, qerr := b.QueryInt64(context.Background(), q)
		require.NoError(t, qerr)
		return n
	}

	// Equal inputs hash equal.
	assert.Equal(t, int64(1), distinct(`"tag" IN ('same1', 'same2')`))
	// Shifting text across the column boundary changes the hash.
	assert.Equal(t, int64(2), distinct(`"tag" IN ('shift1', 'shift2')`))
	// NULL position matters, and NULL is not the empty string.
	assert.Equal(t, int64(2), distinct(`"tag" IN ('null1', 'null2')`))
	assert.Equal(t, int64(2), distinct(`"tag" IN ('null1', 'empty')`))
}
