package quality

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

// countBackend answers QueryInt64 from a substring-keyed table of counts.
type countBackend struct {
	dialect *backend.Dialect
	counts  map[string]int64
	err     error
	queries []string
}

func newCountBackend() *countBackend {
	return &countBackend{dialect: backend.NewDuckDBDialect(), counts: map[string]int64{}}
}

func (b *countBackend) Connect(ctx context.Context, cfg core.BackendConfig) error { return nil }
func (b *countBackend) Close() error                                              { return nil }
func (b *countBackend) DialectName() string                                       { return b.dialect.Name }
func (b *countBackend) Dialect() *backend.Dialect                                 { return b.dialect }
func (b *countBackend) Exec(ctx context.Context, q string) error                  { return nil }
func (b *countBackend) Query(ctx context.Context, q string) (*core.Rows, error) {
	return nil, errors.New("not implemented")
}

func (b *countBackend) QueryInt64(ctx context.Context, q string) (int64, error) {
	b.queries = append(b.queries, q)
	if b.err != nil {
		return 0, b.err
	}
	for key, n := range b.counts {
		if strings.Contains(q, key) {
			return n, nil
		}
	}
	return 0, nil
}

func (b *countBackend) CreateView(ctx context.Context, name, query string) error { return nil }
func (b *countBackend) DropView(ctx context.Context, name string) error          { return nil }
func (b *countBackend) TableMetadata(ctx context.Context, table string) (*core.TableMetadata, error) {
	return nil, errors.New("not implemented")
}
func (b *countBackend) LoadCSV(ctx context.Context, tableName, filePath string) error { return nil }

func usersHandle() *core.TableHandle {
	return &core.TableHandle{
		Relation: "users",
		Schema: core.Schema{
			{Name: "id", Type: "bigint"},
			{Name: "email", Type: "varchar", Nullable: true},
			{Name: "tier", Type: "varchar", Nullable: true},
		},
	}
}

func int64p(v int64) *int64 { return &v }

func TestNotNullPasses(t *testing.T) {
	b := newCountBackend()
	r := NewRunner(b, nil, nil)

	results, err := r.Run(context.Background(), usersHandle(), []core.CheckDescriptor{
		{Kind: core.CheckNotNull, Columns: []string{"id", "email"}},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Passed)
	assert.Equal(t, core.CheckNotNull, results[0].Kind)
}

func TestNotNullFailsWithDetails(t *testing.T) {
	b := newCountBackend()
	b.counts[`"email" IS NULL`] = 3
	r := NewRunner(b, nil, nil)

	results, err := r.Run(context.Background(), usersHandle(), []core.CheckDescriptor{
		{Kind: core.CheckNotNull, Columns: []string{"id", "email"}},
	})
	require.NoError(t, err)
	assert.False(t, results[0].Passed)
	require.Len(t, results[0].Details, 1)
	assert.Contains(t, results[0].Details[0], "email")
}

func TestUnique(t *testing.T) {
	b := newCountBackend()
	r := NewRunner(b, nil, nil)

	results, err := r.Run(context.Background(), usersHandle(), []core.CheckDescriptor{
		{Kind: core.CheckUnique, Columns: []string{"id"}},
	})
	require.NoError(t, err)
	assert.True(t, results[0].Passed)
	assert.Contains(t, b.queries[0], "HAVING COUNT(*) > 1")
}

func TestUniqueFails(t *testing.T) {
	b := newCountBackend()
	b.counts["HAVING COUNT(*) > 1"] = 2
	r := NewRunner(b, nil, nil)

	results, err := r.Run(context.Background(), usersHandle(), []core.CheckDescriptor{
		{Kind: core.CheckUnique, Columns: []string{"id"}},
	})
	require.NoError(t, err)
	assert.False(t, results[0].Passed)
	assert.Contains(t, results[0].Message, "2 duplicate")
}

func TestRowCountBounds(t *testing.T) {
	tests := []struct {
		name   string
		count  int64
		min    *int64
		max    *int64
		passed bool
	}{
		{"within", 50, int64p(10), int64p(100), true},
		{"below min", 5, int64p(10), nil, false},
		{"above max", 200, nil, int64p(100), false},
		{"open min", 5, nil, int64p(100), true},
		{"open max", 1000000, int64p(1), nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newCountBackend()
			b.counts["COUNT(*) FROM"] = tt.count
			r := NewRunner(b, nil, nil)

			results, err := r.Run(context.Background(), usersHandle(), []core.CheckDescriptor{
				{Kind: core.CheckRowCount, Min: tt.min, Max: tt.max},
			})
			require.NoError(t, err)
			assert.Equal(t, tt.passed, results[0].Passed, results[0].Message)
		})
	}
}

func TestRowCountRequiresABound(t *testing.T) {
	r := NewRunner(newCountBackend(), nil, nil)

	results, err := r.Run(context.Background(), usersHandle(), []core.CheckDescriptor{
		{Kind: core.CheckRowCount},
	})
	require.NoError(t, err)
	assert.False(t, results[0].Passed)
}

func TestAcceptedValues(t *testing.T) {
	b := newCountBackend()
	r := NewRunner(b, nil, nil)

	results, err := r.Run(context.Background(), usersHandle(), []core.CheckDescriptor{
		{Kind: core.CheckAcceptedValues, Column: "tier", Values: []string{"free", "pro"}},
	})
	require.NoError(t, err)
	assert.True(t, results[0].Passed)
	assert.Contains(t, b.queries[0], `NOT IN ('free', 'pro')`)
}

func TestExpression(t *testing.T) {
	b := newCountBackend()
	r := NewRunner(b, nil, nil)

	results, err := r.Run(context.Background(), usersHandle(), []core.CheckDescriptor{
		{Kind: core.CheckExpression, Predicate: "id > 0"},
	})
	require.NoError(t, err)
	assert.True(t, results[0].Passed)
	assert.Contains(t, b.queries[0], `NOT (("id" > 0))`)
}

func TestExpressionInvalidPredicateIsAFailedResult(t *testing.T) {
	r := NewRunner(newCountBackend(), nil, nil)

	results, err := r.Run(context.Background(), usersHandle(), []core.CheckDescriptor{
		{Kind: core.CheckExpression, Predicate: "nope > 0"},
		{Kind: core.CheckRowCount, Min: int64p(0)},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.False(t, results[0].Passed)
	// The second check still ran.
	assert.True(t, results[1].Passed)
}

func TestBackendErrorRecordedAsFailure(t *testing.T) {
	b := newCountBackend()
	b.err = errors.New("connection reset")
	r := NewRunner(b, nil, nil)

	results, err := r.Run(context.Background(), usersHandle(), []core.CheckDescriptor{
		{Kind: core.CheckUnique, Columns: []string{"id"}},
	})
	require.NoError(t, err)
	assert.False(t, results[0].Passed)
	assert.Contains(t, results[0].Message, "connection reset")
}

func TestUnknownKind(t *testing.T) {
	r := NewRunner(newCountBackend(), nil, nil)

	results, err := r.Run(context.Background(), usersHandle(), []core.CheckDescriptor{
		{Kind: "vibes"},
	})
	require.NoError(t, err)
	assert.False(t, results[0].Passed)
	assert.Contains(t, results[0].Message, "vibes")
}

func TestOneResultPerDescriptorInOrder(t *testing.T) {
	b := newCountBackend()
	b.counts[`"email" IS NULL`] = 1
	r := NewRunner(b, nil, nil)

	checks := []core.CheckDescriptor{
		{Kind: core.CheckNotNull, Columns: []string{"email"}},
		{Kind: core.CheckUnique, Columns: []string{"id"}},
		{Kind: core.CheckRowCount, Min: int64p(0)},
	}
	results, err := r.Run(context.Background(), usersHandle(), checks)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, core.CheckNotNull, results[0].Kind)
	assert.Equal(t, core.CheckUnique, results[1].Kind)
	assert.Equal(t, core.CheckRowCount, results[2].Kind)
	assert.False(t, results[0].Passed)
	assert.True(t, results[1].Passed)
	assert.False(t, AllPassed(results))
}

type panicValidator struct{}

func (panicValidator) Validate(ctx context.Context, handle *core.TableHandle, path string) (bool, []string, error) {
	panic("validator exploded")
}

func TestPanickingCheckIsCaptured(t *testing.T) {
	r := NewRunner(newCountBackend(), panicValidator{}, nil)

	results, err := r.Run(context.Background(), usersHandle(), []core.CheckDescriptor{
		{Kind: core.CheckContract, Schema: "contract.yml"},
		{Kind: core.CheckRowCount, Min: int64p(0)},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.False(t, results[0].Passed)
	assert.Contains(t, results[0].Message, "panicked")
	assert.True(t, results[1].Passed)
}
