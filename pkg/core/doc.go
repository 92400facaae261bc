// Package core defines the shared language of the QuickETL system.
//
// This package contains:
//   - Domain entities (Schema, TableHandle, BackendConfig)
//   - Pipeline descriptors (TransformDescriptor, CheckDescriptor, sources and sinks)
//   - Result types (StepResult, CheckResult, PipelineResult, WorkflowResult)
//   - Typed errors shared across packages
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
