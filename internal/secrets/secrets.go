// Package secrets defines the secrets provider contract used by config
// variable substitution. Providers resolve opaque paths to secret values;
// the env provider is built in, others register themselves.
package secrets

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

// Provider resolves a secret path to its value. Lookups must be side-effect
// free; providers are shared across pipelines in a workflow.
type Provider interface {
	// GetSecret returns the value at path. A missing secret returns a
	// NotFoundError, never an empty string.
	GetSecret(path string) (string, error)
}

// Factory constructs a provider from its options block.
type Factory func(options map[string]string) (Provider, error)

// NotFoundError reports a secret path the provider has no value for.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("secret %q not found", e.Path)
}

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register adds a provider factory under the given type name.
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[name] = factory
}

// New constructs a provider by type name. An empty name selects env.
func New(name string, options map[string]string) (Provider, error) {
	if name == "" {
		name = "env"
	}
	mu.RLock()
	factory, ok := factories[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown secrets provider %q (available: %s)", name, strings.Join(ListNames(), ", "))
	}
	return factory(options)
}

// ListNames returns registered provider names, sorted.
func ListNames() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EnvProvider reads secrets from environment variables, uppercasing the
// path and replacing path separators with underscores.
type EnvProvider struct {
	prefix string
}

// NewEnvProvider creates an env provider. options["prefix"] is prepended to
// every lookup.
func NewEnvProvider(options map[string]string) (Provider, error) {
	return &EnvProvider{prefix: options["prefix"]}, nil
}

// GetSecret resolves "db/password" as prefix + "DB_PASSWORD".
func (p *EnvProvider) GetSecret(path string) (string, error) {
	key := p.prefix + strings.ToUpper(strings.NewReplacer("/", "_", "-", "_", ".", "_").Replace(path))
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", &NotFoundError{Path: path}
	}
	return value, nil
}

func init() {
	Register("env", NewEnvProvider)
}
