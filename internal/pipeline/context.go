// Package pipeline provides the per-run execution context and the pipeline
// orchestrator state machine.
package pipeline

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/ameijin/quicketl/pkg/core"
)

// ephemeral is one registered resource awaiting release.
type ephemeral struct {
	name    string
	release core.ReleaseFunc
}

// ExecutionContext is the per-run registry of named table handles and
// ephemeral resources requiring guaranteed release.
//
// The orchestrator owns the context and mutates it between steps; the
// transform engine only adds named tables it produces for later joins, never
// removes or replaces existing ones.
type ExecutionContext struct {
	runID  string
	logger *slog.Logger

	mu         sync.Mutex
	tables     map[string]*core.TableHandle
	ephemerals []ephemeral
	released   bool
}

// NewContext creates an execution context with a fresh run ID.
func NewContext(logger *slog.Logger) *ExecutionContext {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ExecutionContext{
		runID:  uuid.NewString(),
		logger: logger,
		tables: make(map[string]*core.TableHandle),
	}
}

// RunID returns the unique identifier of this run.
func (c *ExecutionContext) RunID() string {
	return c.runID
}

// RegisterTable registers a named table handle. Re-registering an existing
// name is an error: steps may add tables, never replace them.
func (c *ExecutionContext) RegisterTable(name string, handle *core.TableHandle) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.tables[name]; exists {
		return fmt.Errorf("table %q already registered", name)
	}
	c.tables[name] = handle
	return nil
}

// GetTable returns the handle registered under name.
func (c *ExecutionContext) GetTable(name string) (*core.TableHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	handle, ok := c.tables[name]
	if !ok {
		return nil, &core.TableNotFoundError{Name: name, Available: c.tableNamesLocked()}
	}
	return handle, nil
}

func (c *ExecutionContext) tableNamesLocked() []string {
	names := make([]string, 0, len(c.tables))
	for name := range c.tables {
		names = append(names, name)
	}
	return names
}

// RegisterEphemeral registers a resource to be released during teardown.
func (c *ExecutionContext) RegisterEphemeral(name string, release core.ReleaseFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ephemerals = append(c.ephemerals, ephemeral{name: name, release: release})
}

// EphemeralCount returns the number of resources still awaiting release.
func (c *ExecutionContext) EphemeralCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.ephemerals)
}

// ReleaseAll runs every registered release callback in reverse-registration
// order, unconditionally. Individual release failures are collected into a
// composite error; a failure never skips the remaining releases. ReleaseAll
// is idempotent: every resource is released exactly once.
func (c *ExecutionContext) ReleaseAll() error {
	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return nil
	}
	c.released = true
	pending := c.ephemerals
	c.ephemerals = nil
	c.mu.Unlock()

	var err error
	for i := len(pending) - 1; i >= 0; i-- {
		e := pending[i]
		if releaseErr := e.release(); releaseErr != nil {
			c.logger.Warn("ephemeral release failed", "resource", e.name, "error", releaseErr)
			err = multierr.Append(err, &core.ResourceError{Resource: e.name, Err: releaseErr})
		}
	}
	return err
}
