// Package telemetry defines the fire-and-forget emitter boundary. Emitters
// observe step and pipeline results; they must never block or fail a run,
// so every dispatch is wrapped against panics.
package telemetry

import (
	"log/slog"

	"github.com/ameijin/quicketl/pkg/core"
)

// Emitter observes run progress. Implementations must return quickly;
// anything slow belongs behind the implementation's own buffer.
type Emitter interface {
	OnStep(result core.StepResult)
	OnPipeline(result core.PipelineResult)
}

// Nop is the no-observation emitter.
type Nop struct{}

func (Nop) OnStep(core.StepResult)         {}
func (Nop) OnPipeline(core.PipelineResult) {}

// SlogEmitter reports results through a structured logger.
type SlogEmitter struct {
	logger *slog.Logger
}

// NewSlogEmitter creates an emitter over the given logger.
func NewSlogEmitter(logger *slog.Logger) *SlogEmitter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SlogEmitter{logger: logger}
}

func (e *SlogEmitter) OnStep(result core.StepResult) {
	e.logger.Info("step finished",
		"step", result.Name,
		"kind", result.Kind,
		"status", result.Status,
		"rows_in", result.RowsIn,
		"rows_out", result.RowsOut,
		"duration_ms", result.DurationMS())
}

func (e *SlogEmitter) OnPipeline(result core.PipelineResult) {
	e.logger.Info("pipeline finished",
		"pipeline", result.Name,
		"run_id", result.RunID,
		"status", result.Status,
		"steps", len(result.Steps),
		"checks", len(result.Checks),
		"rows_written", result.RowsWritten,
		"duration_ms", result.DurationMS())
}

// Emit guards one emitter call; a panicking emitter never propagates into
// the run.
func Emit(fn func()) {
	defer func() { _ = recover() }()
	fn()
}
