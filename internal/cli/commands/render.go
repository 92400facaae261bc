package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/ameijin/quicketl/pkg/core"
)

func renderPipelineResult(w io.Writer, result *core.PipelineResult) {
	_, _ = fmt.Fprintf(w, "Pipeline: %s (run %s)\n", result.Name, result.RunID)
	_, _ = fmt.Fprintln(w, strings.Repeat("-", 60))

	if len(result.Steps) > 0 {
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Step", "Status", "Rows In", "Rows Out", "Duration"})
		for _, step := range result.Steps {
			t.AppendRow(table.Row{
				step.Name, step.Status, step.RowsIn, step.RowsOut,
				fmt.Sprintf("%dms", step.DurationMS()),
			})
		}
		t.Render()
	}

	if len(result.Checks) > 0 {
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Check", "Result", "Message"})
		for _, check := range result.Checks {
			t.AppendRow(table.Row{check.Kind, passFail(check.Passed), check.Message})
			for _, detail := range check.Details {
				t.AppendRow(table.Row{"", "", detail})
			}
		}
		t.Render()
	}

	_, _ = fmt.Fprintf(w, "Rows in: %d, out: %d, written: %d (%dms)\n",
		result.RowsIn, result.RowsOut, result.RowsWritten, result.DurationMS())
	if result.Succeeded() {
		_, _ = fmt.Fprintln(w, "Status: success")
	} else {
		_, _ = fmt.Fprintf(w, "Status: failed (%s)\n", result.Error)
	}
}

func renderWorkflowResult(w io.Writer, result *core.WorkflowResult) {
	_, _ = fmt.Fprintf(w, "Workflow: %s\n", result.Name)
	_, _ = fmt.Fprintln(w, strings.Repeat("-", 60))

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Stage", "Pipeline", "Status", "Rows Written"})
	for _, stage := range result.Stages {
		if stage.Skipped {
			t.AppendRow(table.Row{stage.Name, "", "skipped", ""})
			continue
		}
		for _, p := range stage.Pipelines {
			t.AppendRow(table.Row{stage.Name, p.Name, p.Status, p.RowsWritten})
		}
	}
	t.Render()

	_, _ = fmt.Fprintf(w, "Status: %s (%dms)\n", result.Status, result.DurationMS())
}

func passFail(passed bool) string {
	if passed {
		return "pass"
	}
	return "fail"
}
