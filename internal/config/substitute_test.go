package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubstituteVariables(t *testing.T) {
	s := newSubstituter(map[string]string{"REGION": "eu-west-1"}, SecretsConfig{})

	out, err := s.Apply("s3://data-${REGION}/orders.csv")
	require.NoError(t, err)
	assert.Equal(t, "s3://data-eu-west-1/orders.csv", out)
}

func TestSubstituteExplicitWinsOverEnv(t *testing.T) {
	t.Setenv("REGION", "us-east-1")
	s := newSubstituter(map[string]string{"REGION": "eu-west-1"}, SecretsConfig{})

	out, err := s.Apply("${REGION}")
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", out)
}

func TestSubstituteEnvFallback(t *testing.T) {
	t.Setenv("BUCKET", "archive")
	s := newSubstituter(nil, SecretsConfig{})

	out, err := s.Apply("${BUCKET}")
	require.NoError(t, err)
	assert.Equal(t, "archive", out)
}

func TestSubstituteDefaults(t *testing.T) {
	s := newSubstituter(nil, SecretsConfig{})

	out, err := s.Apply("${MISSING:-fallback}")
	require.NoError(t, err)
	assert.Equal(t, "fallback", out)

	// An empty default is still a default.
	out, err = s.Apply("${MISSING:-}")
	require.NoError(t, err)
	assert.Equal(t, "", out)
}

func TestSubstituteUnknownPassesThrough(t *testing.T) {
	s := newSubstituter(nil, SecretsConfig{})

	out, err := s.Apply("${NO_SUCH_VARIABLE}")
	require.NoError(t, err)
	assert.Equal(t, "${NO_SUCH_VARIABLE}", out)
}

func TestSubstituteSecret(t *testing.T) {
	t.Setenv("DB_PASSWORD", "hunter2")
	s := newSubstituter(nil, SecretsConfig{})

	out, err := s.Apply("${secret:db/password}")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", out)
}

func TestSubstituteSecretDefault(t *testing.T) {
	s := newSubstituter(nil, SecretsConfig{})

	out, err := s.Apply("${secret:no/such/secret:-anon}")
	require.NoError(t, err)
	assert.Equal(t, "anon", out)
}

func TestSubstituteSecretMissingFails(t *testing.T) {
	s := newSubstituter(nil, SecretsConfig{})

	_, err := s.Apply("${secret:no/such/secret}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no/such/secret")
}

func TestSubstituteWalksNestedValues(t *testing.T) {
	s := newSubstituter(map[string]string{"ENV": "prod"}, SecretsConfig{})

	out, err := s.Apply(map[string]any{
		"sink": map[string]any{"table": "marts_${ENV}.orders"},
		"sources": []any{
			map[string]any{"path": "data/${ENV}/orders.csv"},
		},
		"n": 10,
	})
	require.NoError(t, err)

	tree := out.(map[string]any)
	assert.Equal(t, "marts_prod.orders", tree["sink"].(map[string]any)["table"])
	assert.Equal(t, "data/prod/orders.csv", tree["sources"].([]any)[0].(map[string]any)["path"])
	assert.Equal(t, 10, tree["n"])
}

func TestSubstituteUnknownProvider(t *testing.T) {
	s := newSubstituter(nil, SecretsConfig{Provider: "vault"})

	_, err := s.Apply("${secret:db/password}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vault")
}
