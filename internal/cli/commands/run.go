package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ameijin/quicketl/internal/config"
	"github.com/ameijin/quicketl/internal/pipeline"
	"github.com/ameijin/quicketl/internal/telemetry"
)

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	var (
		dryRun bool
		vars   []string
	)

	cmd := &cobra.Command{
		Use:   "run <pipeline.yml>",
		Short: "Run a pipeline",
		Long: `Run a pipeline definition: read its sources, apply the transform chain,
evaluate quality checks, and write the sink. With --dry-run the sink write
is skipped; checks still run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFrom(cmd.Context())

			variables, err := parseVars(vars)
			if err != nil {
				return err
			}

			cfg, err := config.LoadPipeline(args[0], variables)
			if err != nil {
				return err
			}

			opts := pipeline.Options{
				DryRun:  dryRun,
				Emitter: telemetry.NewSlogEmitter(logger),
			}
			result, runErr := pipeline.NewOrchestrator(cfg, opts, logger).Run(cmd.Context())
			renderPipelineResult(cmd.OutOrStdout(), result)
			if runErr != nil {
				return fmt.Errorf("pipeline %q failed: %w", cfg.Name, runErr)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "run checks but skip the sink write")
	cmd.Flags().StringArrayVar(&vars, "var", nil, "set a substitution variable (KEY=VALUE, repeatable)")
	return cmd
}
