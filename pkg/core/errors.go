package core

import (
	"fmt"
	"strings"
)

// ConfigurationError reports a structural problem with a pipeline or workflow
// definition, detected before any step executes.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// ColumnNotFoundError reports a transform or check referencing a column that
// is absent from the input schema.
type ColumnNotFoundError struct {
	Op     string
	Column string
	Schema Schema
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("%s: column %q not found (have: %s)", e.Op, e.Column, strings.Join(e.Schema.Names(), ", "))
}

// UnsupportedOperationError reports an operation or function that the current
// backend (or the engine itself) does not provide.
type UnsupportedOperationError struct {
	Op     string
	Detail string
}

func (e *UnsupportedOperationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("unsupported operation %q", e.Op)
	}
	return fmt.Sprintf("unsupported operation %q: %s", e.Op, e.Detail)
}

// UnsupportedAggregateError reports an aggregate function name outside the
// fixed aggregate vocabulary.
type UnsupportedAggregateError struct {
	Function  string
	Supported []string
}

func (e *UnsupportedAggregateError) Error() string {
	return fmt.Sprintf("unsupported aggregate %q (supported: %s)", e.Function, strings.Join(e.Supported, ", "))
}

// ResourceError reports a connection or ephemeral-object lifecycle failure.
type ResourceError struct {
	Resource string
	Err      error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("resource %q: %v", e.Resource, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// SourceError reports a failed source read.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %q: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// SinkError reports a failed sink write.
type SinkError struct {
	Sink string
	Err  error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink %q: %v", e.Sink, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }

// ContractError reports a failure inside a delegated contract validator
// (not a failed contract, which is a CheckResult).
type ContractError struct {
	Contract string
	Err      error
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("contract %q: %v", e.Contract, e.Err)
}

func (e *ContractError) Unwrap() error { return e.Err }

// TableNotFoundError reports a named table missing from the execution context.
type TableNotFoundError struct {
	Name      string
	Available []string
}

func (e *TableNotFoundError) Error() string {
	return fmt.Sprintf("table %q not found in execution context (have: %s)", e.Name, strings.Join(e.Available, ", "))
}
