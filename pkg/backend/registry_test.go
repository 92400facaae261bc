package backend

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ameijin/quicketl/pkg/core"
)

func TestRegisterAndNew(t *testing.T) {
	Register("reg-test", "Registry test backend", func(*slog.Logger) Backend { return nil })

	assert.True(t, IsRegistered("reg-test"))
	assert.Contains(t, ListNames(), "reg-test")

	_, err := New(core.BackendConfig{Type: "reg-test"}, nil)
	require.NoError(t, err)
}

func TestNewUnknownType(t *testing.T) {
	_, err := New(core.BackendConfig{Type: "nosuchdb"}, nil)
	var uerr *UnknownBackendError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "nosuchdb", uerr.Type)
}

func TestNewMissingType(t *testing.T) {
	_, err := New(core.BackendConfig{}, nil)
	var cerr *core.ConfigurationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "backend.type", cerr.Field)
}

func TestListIncludesDescriptions(t *testing.T) {
	Register("reg-desc", "Described backend", func(*slog.Logger) Backend { return nil })

	var found bool
	for _, info := range List() {
		if info.Name == "reg-desc" {
			found = true
			assert.Equal(t, "Described backend", info.Description)
		}
	}
	assert.True(t, found)
}

func TestDialectQuoting(t *testing.T) {
	d := &Dialect{}
	assert.Equal(t, `"order id"`, d.QuoteIdent("order id"))
	assert.Equal(t, `"a""b"`, d.QuoteIdent(`a"b`))
	assert.Equal(t, `'it''s'`, d.QuoteString("it's"))
}

func TestDialectPlaceholders(t *testing.T) {
	q := &Dialect{}
	assert.Equal(t, "?", q.FormatPlaceholder(1))

	dollar := &Dialect{PlaceholderDollar: true}
	assert.Equal(t, "$2", dollar.FormatPlaceholder(2))
}

func TestDialectHashExpr(t *testing.T) {
	none := &Dialect{}
	_, ok := none.HashExpr([]string{`"a"`})
	assert.False(t, ok)

	d := &Dialect{HashTemplate: "md5(concat_ws('|', %s))"}
	got, ok := d.HashExpr([]string{`"a"`, `"b"`})
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(got, "md5(concat_ws('|', "))
	// Every column is length-prefixed and NULL-flagged so values cannot run
	// together across column boundaries and NULL differs from ''.
	assert.Contains(t, got, `CASE WHEN "a" IS NULL THEN 'n' ELSE 'v' || LENGTH(CAST("a" AS VARCHAR)) || ':' || CAST("a" AS VARCHAR) END`)
	assert.Contains(t, got, `CASE WHEN "b" IS NULL THEN 'n'`)
}
