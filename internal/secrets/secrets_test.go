package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvProviderPathMapping(t *testing.T) {
	t.Setenv("DB_PASSWORD", "hunter2")
	t.Setenv("API_KEY_V2", "k")

	p, err := New("env", nil)
	require.NoError(t, err)

	got, err := p.GetSecret("db/password")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got)

	got, err = p.GetSecret("api-key.v2")
	require.NoError(t, err)
	assert.Equal(t, "k", got)
}

func TestEnvProviderPrefix(t *testing.T) {
	t.Setenv("QUICKETL_TOKEN", "abc")

	p, err := New("env", map[string]string{"prefix": "QUICKETL_"})
	require.NoError(t, err)

	got, err := p.GetSecret("token")
	require.NoError(t, err)
	assert.Equal(t, "abc", got)
}

func TestEnvProviderNotFound(t *testing.T) {
	p, err := New("env", nil)
	require.NoError(t, err)

	_, err = p.GetSecret("quicketl/test/definitely/unset")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "quicketl/test/definitely/unset", nf.Path)
}

func TestNewDefaultsToEnv(t *testing.T) {
	p, err := New("", nil)
	require.NoError(t, err)
	assert.IsType(t, &EnvProvider{}, p)
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New("vault", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vault")
}
