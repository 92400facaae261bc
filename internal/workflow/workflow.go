// Package workflow runs named, ordered stages of pipelines. A stage starts
// only after the previous stage reached a terminal state; within a parallel
// stage each pipeline runs on its own goroutine with its own execution
// context.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ameijin/quicketl/internal/config"
	"github.com/ameijin/quicketl/internal/pipeline"
	"github.com/ameijin/quicketl/pkg/core"
)

// PipelineRunner runs one pipeline to completion. The default runner loads
// the referenced config file and drives a pipeline orchestrator; tests
// substitute their own.
type PipelineRunner interface {
	RunPipeline(ctx context.Context, name, path string) (*core.PipelineResult, error)
}

// Orchestrator drives a workflow through its stages.
type Orchestrator struct {
	cfg     *config.WorkflowConfig
	baseDir string
	runner  PipelineRunner
	logger  *slog.Logger
}

// Options configures a workflow run.
type Options struct {
	// BaseDir resolves relative pipeline paths; usually the workflow file's
	// directory.
	BaseDir string
	// PipelineOptions are passed through to every pipeline run.
	PipelineOptions pipeline.Options
	// Runner overrides pipeline execution. Nil uses the config-loading
	// default.
	Runner PipelineRunner
}

// NewOrchestrator creates a workflow orchestrator.
func NewOrchestrator(cfg *config.WorkflowConfig, opts Options, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	runner := opts.Runner
	if runner == nil {
		runner = &configRunner{
			baseDir:   opts.BaseDir,
			variables: cfg.Variables,
			opts:      opts.PipelineOptions,
			logger:    logger,
		}
	}
	return &Orchestrator{cfg: cfg, baseDir: opts.BaseDir, runner: runner, logger: logger}
}

// Run executes every stage in order and returns the full stage history.
// Under the fail_fast policy, stages after a failed stage are recorded as
// skipped; under continue they still run. The workflow fails if any stage
// failed.
func (o *Orchestrator) Run(ctx context.Context) (*core.WorkflowResult, error) {
	result := &core.WorkflowResult{
		Name:      o.cfg.Name,
		Status:    core.WorkflowStatusSuccess,
		StartTime: time.Now(),
	}
	log := o.logger.With("workflow", o.cfg.Name)

	failed := false
	for _, stage := range o.cfg.Stages {
		if failed && o.cfg.Policy() == config.OnFailureFailFast {
			result.Stages = append(result.Stages, core.StageResult{
				Name:     stage.Name,
				Parallel: stage.Parallel,
				Skipped:  true,
			})
			continue
		}

		log.Info("stage starting", "stage", stage.Name, "pipelines", len(stage.Pipelines), "parallel", stage.Parallel)
		stageResult := o.runStage(ctx, stage)
		result.Stages = append(result.Stages, stageResult)
		if stageResult.Failed {
			failed = true
			log.Warn("stage failed", "stage", stage.Name)
		}
	}

	result.EndTime = time.Now()
	if failed {
		result.Status = core.WorkflowStatusFailed
		return result, fmt.Errorf("workflow %q failed", o.cfg.Name)
	}
	return result, nil
}

// runStage runs every pipeline in the stage and collects one PipelineResult
// per pipeline regardless of completion order. A pipeline that could not
// even produce a result is recorded as a failed placeholder.
func (o *Orchestrator) runStage(ctx context.Context, stage config.StageConfig) core.StageResult {
	stageResult := core.StageResult{
		Name:      stage.Name,
		Parallel:  stage.Parallel,
		Pipelines: make([]core.PipelineResult, len(stage.Pipelines)),
	}

	run := func(ctx context.Context, slot int, name string) {
		path := o.cfg.Pipelines[name]
		res, err := o.runner.RunPipeline(ctx, name, path)
		if res == nil {
			res = &core.PipelineResult{
				Name:   name,
				Status: core.PipelineStatusFailed,
			}
			if err != nil {
				res.Error = err.Error()
			}
		}
		stageResult.Pipelines[slot] = *res
	}

	if stage.Parallel {
		// One goroutine per pipeline. Slots are disjoint, so no locking is
		// needed; errors are reflected in the results, not propagated.
		g, gctx := errgroup.WithContext(ctx)
		for i, name := range stage.Pipelines {
			g.Go(func() error {
				run(gctx, i, name)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, name := range stage.Pipelines {
			run(ctx, i, name)
		}
	}

	for _, p := range stageResult.Pipelines {
		if !p.Succeeded() {
			stageResult.Failed = true
			break
		}
	}
	return stageResult
}

// configRunner loads each referenced pipeline config and runs it.
type configRunner struct {
	baseDir   string
	variables map[string]string
	opts      pipeline.Options
	logger    *slog.Logger
}

func (r *configRunner) RunPipeline(ctx context.Context, name, path string) (*core.PipelineResult, error) {
	if path == "" {
		return nil, &core.ConfigurationError{Field: "pipelines",
			Reason: fmt.Sprintf("pipeline %q has no definition file", name)}
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.baseDir, path)
	}

	// Workflow variables seed each pipeline's substitution; run options win.
	variables := make(map[string]string, len(r.variables)+len(r.opts.Variables))
	for k, v := range r.variables {
		variables[k] = v
	}
	for k, v := range r.opts.Variables {
		variables[k] = v
	}

	cfg, err := config.LoadPipeline(path, variables)
	if err != nil {
		return nil, err
	}

	opts := r.opts
	opts.Variables = variables
	return pipeline.NewOrchestrator(cfg, opts, r.logger).Run(ctx)
}
