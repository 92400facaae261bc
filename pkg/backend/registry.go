package backend

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/ameijin/quicketl/pkg/core"
)

// Factory constructs a backend instance. A nil logger uses a discard logger.
type Factory func(*slog.Logger) Backend

// Info describes a registered backend for capability listing.
type Info struct {
	Name        string
	Description string
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
	infos      = make(map[string]Info)
)

// Register adds a backend factory to the registry.
// Called by backend implementations in their init() functions.
func Register(name, description string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
	infos[name] = Info{Name: name, Description: description}
}

// Get retrieves a backend factory by name.
func Get(name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// New creates a backend instance based on config type.
func New(cfg core.BackendConfig, logger *slog.Logger) (Backend, error) {
	if cfg.Type == "" {
		return nil, &core.ConfigurationError{Field: "backend.type", Reason: "backend type not specified"}
	}

	factory, ok := Get(cfg.Type)
	if !ok {
		return nil, &UnknownBackendError{
			Type:      cfg.Type,
			Available: ListNames(),
		}
	}
	return factory(logger), nil
}

// ListNames returns all registered backend names (sorted).
func ListNames() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns info for all registered backends (sorted by name).
func List() []Info {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]Info, 0, len(infos))
	for _, info := range infos {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// IsRegistered checks if a backend type is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}

// UnknownBackendError is returned when an unknown backend type is requested.
type UnknownBackendError struct {
	Type      string
	Available []string
}

func (e *UnknownBackendError) Error() string {
	return fmt.Sprintf("unknown backend type %q (available: %v)", e.Type, e.Available)
}
