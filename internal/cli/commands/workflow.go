package commands

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ameijin/quicketl/internal/config"
	"github.com/ameijin/quicketl/internal/pipeline"
	"github.com/ameijin/quicketl/internal/telemetry"
	"github.com/ameijin/quicketl/internal/workflow"
)

// NewWorkflowCommand creates the workflow command.
func NewWorkflowCommand() *cobra.Command {
	var (
		dryRun bool
		vars   []string
	)

	cmd := &cobra.Command{
		Use:   "workflow <workflow.yml>",
		Short: "Run a workflow of pipelines",
		Long: `Run a workflow: ordered stages of pipeline references. Pipelines within a
parallel stage run concurrently, each with its own execution context; a
stage starts only after the previous stage finished.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFrom(cmd.Context())

			variables, err := parseVars(vars)
			if err != nil {
				return err
			}

			cfg, err := config.LoadWorkflow(args[0], variables)
			if err != nil {
				return err
			}

			opts := workflow.Options{
				BaseDir: filepath.Dir(args[0]),
				PipelineOptions: pipeline.Options{
					DryRun:    dryRun,
					Variables: variables,
					Emitter:   telemetry.NewSlogEmitter(logger),
				},
			}
			result, runErr := workflow.NewOrchestrator(cfg, opts, logger).Run(cmd.Context())
			renderWorkflowResult(cmd.OutOrStdout(), result)
			return runErr
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "run checks but skip all sink writes")
	cmd.Flags().StringArrayVar(&vars, "var", nil, "set a substitution variable (KEY=VALUE, repeatable)")
	return cmd
}
