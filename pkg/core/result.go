package core

import "time"

// StepStatus is the status of a single pipeline step.
type StepStatus string

// Step status constants.
const (
	StepStatusSuccess StepStatus = "success"
	StepStatusFailed  StepStatus = "failed"
	StepStatusSkipped StepStatus = "skipped"
)

// PipelineStatus is the terminal status of a pipeline run.
type PipelineStatus string

// Pipeline status constants.
const (
	PipelineStatusSuccess PipelineStatus = "success"
	PipelineStatusFailed  PipelineStatus = "failed"
)

// StepResult records the outcome of one pipeline step. Step results are
// ordered by declared execution order within a pipeline.
type StepResult struct {
	Name      string     `json:"name"`
	Kind      string     `json:"kind"`
	Status    StepStatus `json:"status"`
	StartTime time.Time  `json:"start_time"`
	EndTime   time.Time  `json:"end_time"`
	RowsIn    int64      `json:"rows_in"`
	RowsOut   int64      `json:"rows_out"`
	Error     string     `json:"error,omitempty"`
}

// DurationMS returns the step duration in milliseconds.
func (s StepResult) DurationMS() int64 {
	return s.EndTime.Sub(s.StartTime).Milliseconds()
}

// CheckResult records the outcome of one quality check. A failed check is
// data, not an error: the runner always produces one CheckResult per
// descriptor.
type CheckResult struct {
	Kind    string   `json:"kind"`
	Passed  bool     `json:"passed"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

// PipelineResult is the full record of one pipeline run: ordered step
// results, check results, and a definitive terminal status.
type PipelineResult struct {
	Name        string         `json:"name"`
	RunID       string         `json:"run_id"`
	Status      PipelineStatus `json:"status"`
	StartTime   time.Time      `json:"start_time"`
	EndTime     time.Time      `json:"end_time"`
	Steps       []StepResult   `json:"steps"`
	Checks      []CheckResult  `json:"checks"`
	RowsIn      int64          `json:"rows_in"`
	RowsOut     int64          `json:"rows_out"`
	RowsWritten int64          `json:"rows_written"`
	Error       string         `json:"error,omitempty"`
}

// DurationMS returns the pipeline duration in milliseconds.
func (r PipelineResult) DurationMS() int64 {
	return r.EndTime.Sub(r.StartTime).Milliseconds()
}

// Succeeded reports whether the pipeline reached a success terminal state.
func (r PipelineResult) Succeeded() bool {
	return r.Status == PipelineStatusSuccess
}

// ChecksPassed reports whether every check passed.
func (r PipelineResult) ChecksPassed() bool {
	for _, c := range r.Checks {
		if !c.Passed {
			return false
		}
	}
	return true
}

// StageResult records one workflow stage: one PipelineResult per referenced
// pipeline, regardless of completion order.
type StageResult struct {
	Name      string           `json:"name"`
	Parallel  bool             `json:"parallel"`
	Pipelines []PipelineResult `json:"pipelines"`
	Failed    bool             `json:"failed"`
	Skipped   bool             `json:"skipped"`
}

// WorkflowStatus is the terminal status of a workflow run.
type WorkflowStatus string

// Workflow status constants.
const (
	WorkflowStatusSuccess WorkflowStatus = "success"
	WorkflowStatusFailed  WorkflowStatus = "failed"
)

// WorkflowResult is the ordered record of every stage outcome.
type WorkflowResult struct {
	Name      string         `json:"name"`
	Status    WorkflowStatus `json:"status"`
	StartTime time.Time      `json:"start_time"`
	EndTime   time.Time      `json:"end_time"`
	Stages    []StageResult  `json:"stages"`
}

// DurationMS returns the workflow duration in milliseconds.
func (r WorkflowResult) DurationMS() int64 {
	return r.EndTime.Sub(r.StartTime).Milliseconds()
}
