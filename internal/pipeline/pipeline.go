package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ameijin/quicketl/internal/config"
	"github.com/ameijin/quicketl/internal/engine"
	"github.com/ameijin/quicketl/internal/etlio"
	"github.com/ameijin/quicketl/internal/quality"
	"github.com/ameijin/quicketl/internal/telemetry"
	"github.com/ameijin/quicketl/pkg/backend"
	"github.com/ameijin/quicketl/pkg/core"
)

// Options configures an orchestrator run.
type Options struct {
	// DryRun runs sources, transforms and checks but skips the sink write.
	DryRun bool
	// Variables are substitution overrides applied by runners that load
	// pipeline configs on the orchestrator's behalf (the workflow path).
	// Directly-constructed orchestrators receive already-substituted config.
	Variables map[string]string
	// Emitter observes step and pipeline results. Nil means none.
	Emitter telemetry.Emitter
	// Validator evaluates contract checks. Nil uses the schema validator.
	Validator quality.ContractValidator
}

// Orchestrator drives one pipeline through its state machine:
// read sources, apply transforms in order, run checks, write the sink.
type Orchestrator struct {
	cfg     *config.PipelineConfig
	opts    Options
	logger  *slog.Logger
	emitter telemetry.Emitter
}

// NewOrchestrator creates an orchestrator for a validated pipeline config.
func NewOrchestrator(cfg *config.PipelineConfig, opts Options, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	emitter := opts.Emitter
	if emitter == nil {
		emitter = telemetry.Nop{}
	}
	return &Orchestrator{cfg: cfg, opts: opts, logger: logger, emitter: emitter}
}

// Run executes the pipeline and always returns a result with a terminal
// status and the full ordered step and check history; err is non-nil only
// when the run failed. Ephemeral resources are released on every exit path.
func (o *Orchestrator) Run(ctx context.Context) (result *core.PipelineResult, err error) {
	result = &core.PipelineResult{
		Name:      o.cfg.Name,
		Status:    core.PipelineStatusFailed,
		StartTime: time.Now(),
	}
	defer func() {
		result.EndTime = time.Now()
		if err != nil {
			result.Error = err.Error()
		}
		telemetry.Emit(func() { o.emitter.OnPipeline(*result) })
	}()

	// Structural failures surface before any step executes.
	if !o.opts.DryRun && o.cfg.Sink == nil {
		return result, &core.ConfigurationError{Field: "sink", Reason: "a sink is required unless dry_run is set"}
	}

	ectx := NewContext(o.logger)
	result.RunID = ectx.RunID()
	log := o.logger.With("pipeline", o.cfg.Name, "run_id", ectx.RunID())

	b, err := backend.New(o.cfg.Backend, log)
	if err != nil {
		return result, err
	}
	if err := b.Connect(ctx, o.cfg.Backend); err != nil {
		return result, err
	}
	defer func() {
		// Ephemerals reference backend objects; release them before the
		// connection closes. Release failures surface alongside, never
		// instead of, the run's own failure.
		if rerr := ectx.ReleaseAll(); rerr != nil {
			log.Warn("ephemeral release failed", "error", rerr)
			if err == nil {
				err = rerr
				result.Status = core.PipelineStatusFailed
			}
		}
		if cerr := b.Close(); cerr != nil {
			log.Warn("backend close failed", "error", cerr)
		}
	}()

	eng := engine.New(b, log)
	reader := etlio.NewSourceReader(b, log)

	// READ_SOURCES. Every declared source is read and registered before the
	// transform chain; the first source is the chain's input, later sources
	// are reached by name through join and union steps.
	var current *core.TableHandle
	for _, src := range o.cfg.Sources {
		step := o.startStep("read:"+src.Name, "source")
		handle, rerr := reader.Read(ctx, ectx, src)
		if rerr != nil {
			o.failStep(result, step, rerr)
			return result, rerr
		}
		rows, cerr := eng.RowCount(ctx, handle)
		if cerr != nil {
			o.failStep(result, step, cerr)
			return result, cerr
		}
		step.RowsIn = rows
		step.RowsOut = rows
		o.finishStep(result, step)
		if current == nil {
			current = handle
			result.RowsIn = rows
		}
	}

	// TRANSFORM*
	for i, desc := range o.cfg.Transforms {
		step := o.startStep(fmt.Sprintf("transform[%d]:%s", i, desc.Op), "transform")
		next, terr := eng.Apply(ctx, ectx, desc, current)
		if terr != nil {
			o.failStep(result, step, terr)
			return result, terr
		}
		o.finishStep(result, step)
		current = next
	}

	if rows, cerr := eng.RowCount(ctx, current); cerr == nil {
		result.RowsOut = rows
	}

	// CHECK
	if len(o.cfg.Checks) > 0 {
		step := o.startStep("checks", "quality")
		validator := o.opts.Validator
		if validator == nil {
			validator = quality.NewSchemaContractValidator()
		}
		runner := quality.NewRunner(b, validator, log)
		checks, qerr := runner.Run(ctx, current, o.cfg.Checks)
		if qerr != nil {
			o.failStep(result, step, qerr)
			return result, qerr
		}
		result.Checks = checks
		if !quality.AllPassed(checks) && o.cfg.ShouldFailOnChecks() {
			cerr := fmt.Errorf("quality checks failed (%d of %d)", countFailed(checks), len(checks))
			o.failStep(result, step, cerr)
			return result, cerr
		}
		o.finishStep(result, step)
	}

	// WRITE_SINK | SKIPPED_DRY_RUN
	if o.opts.DryRun {
		step := o.startStep("write", "sink")
		step.Status = core.StepStatusSkipped
		o.finishStep(result, step)
		log.Info("dry run, sink skipped")
	} else {
		step := o.startStep("write", "sink")
		writer := etlio.NewSinkWriter(b, log)
		written, werr := writer.Write(ctx, current, *o.cfg.Sink)
		if werr != nil {
			o.failStep(result, step, werr)
			return result, werr
		}
		step.RowsOut = written
		result.RowsWritten = written
		o.finishStep(result, step)
	}

	result.Status = core.PipelineStatusSuccess
	log.Info("pipeline succeeded", "steps", len(result.Steps), "rows_written", result.RowsWritten)
	return result, nil
}

func (o *Orchestrator) startStep(name, kind string) *core.StepResult {
	return &core.StepResult{
		Name:      name,
		Kind:      kind,
		Status:    core.StepStatusSuccess,
		StartTime: time.Now(),
	}
}

func (o *Orchestrator) finishStep(result *core.PipelineResult, step *core.StepResult) {
	step.EndTime = time.Now()
	result.Steps = append(result.Steps, *step)
	telemetry.Emit(func() { o.emitter.OnStep(*step) })
}

func (o *Orchestrator) failStep(result *core.PipelineResult, step *core.StepResult, err error) {
	step.Status = core.StepStatusFailed
	step.Error = err.Error()
	step.EndTime = time.Now()
	result.Steps = append(result.Steps, *step)
	telemetry.Emit(func() { o.emitter.OnStep(*step) })
}

func countFailed(checks []core.CheckResult) int {
	n := 0
	for _, c := range checks {
		if !c.Passed {
			n++
		}
	}
	return n
}
