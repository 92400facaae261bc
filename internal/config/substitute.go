package config

import (
	"fmt"
	"os"
	"regexp"

	"github.com/ameijin/quicketl/internal/secrets"
)

var (
	secretPattern   = regexp.MustCompile(`\$\{secret:([^}:]+)(?::-([^}]*))?\}`)
	variablePattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)
)

// substituter resolves ${VAR}, ${VAR:-default}, ${secret:path} and
// ${secret:path:-default} placeholders in config values. The secrets
// provider is constructed lazily; configs without secret references never
// touch one.
type substituter struct {
	variables map[string]string
	secrets   SecretsConfig

	provider secrets.Provider
	err      error
}

func newSubstituter(variables map[string]string, sc SecretsConfig) *substituter {
	return &substituter{variables: variables, secrets: sc}
}

// Apply walks the value recursively, substituting placeholders in every
// string. Map keys are left untouched.
func (s *substituter) Apply(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return s.substituteString(v)
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			sub, err := s.Apply(item)
			if err != nil {
				return nil, err
			}
			out[key] = sub
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			sub, err := s.Apply(item)
			if err != nil {
				return nil, err
			}
			out[i] = sub
		}
		return out, nil
	default:
		return value, nil
	}
}

func (s *substituter) substituteString(value string) (string, error) {
	var firstErr error

	// Secret references resolve first so a secret's value is never
	// re-scanned for variable placeholders it happens to contain.
	value = secretPattern.ReplaceAllStringFunc(value, func(match string) string {
		groups := secretPattern.FindStringSubmatch(match)
		path, def := groups[1], groups[2]
		resolved, err := s.resolveSecret(path)
		if err != nil {
			if hasDefault(secretPattern, match) {
				return def
			}
			if firstErr == nil {
				firstErr = err
			}
			return match
		}
		return resolved
	})
	if firstErr != nil {
		return "", firstErr
	}

	// Explicit variables win over the environment. Unknown names without a
	// default pass through unchanged and fail validation downstream.
	value = variablePattern.ReplaceAllStringFunc(value, func(match string) string {
		groups := variablePattern.FindStringSubmatch(match)
		name, def := groups[1], groups[2]
		if v, ok := s.variables[name]; ok {
			return v
		}
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		if hasDefault(variablePattern, match) {
			return def
		}
		return match
	})
	return value, nil
}

func (s *substituter) resolveSecret(path string) (string, error) {
	if s.provider == nil && s.err == nil {
		s.provider, s.err = secrets.New(s.secrets.Provider, s.secrets.Options)
	}
	if s.err != nil {
		return "", s.err
	}
	value, err := s.provider.GetSecret(path)
	if err != nil {
		return "", fmt.Errorf("resolving ${secret:%s}: %w", path, err)
	}
	return value, nil
}

// hasDefault reports whether the placeholder carried a :- clause, which
// distinguishes an empty default from no default.
func hasDefault(pattern *regexp.Regexp, match string) bool {
	idx := pattern.FindStringSubmatchIndex(match)
	return idx != nil && idx[4] >= 0
}
