package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ameijin/quicketl/internal/config"
	"github.com/ameijin/quicketl/pkg/core"
	"github.com/ameijin/quicketl/pkg/expr"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	var (
		isWorkflow bool
		vars       []string
	)

	cmd := &cobra.Command{
		Use:   "validate <config.yml>",
		Short: "Validate a pipeline or workflow definition",
		Long: `Load a definition, substitute variables, decode every descriptor and
parse all expression text. No backend connection is opened and nothing
executes; source schemas are unknown here, so column references are checked
at run time.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			variables, err := parseVars(vars)
			if err != nil {
				return err
			}

			if isWorkflow {
				cfg, err := config.LoadWorkflow(args[0], variables)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "workflow %q: %d stages, %d pipelines - OK\n",
					cfg.Name, len(cfg.Stages), len(cfg.Pipelines))
				return nil
			}

			cfg, err := config.LoadPipeline(args[0], variables)
			if err != nil {
				return err
			}
			if err := validateExpressions(cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s - OK\n", config.Describe(cfg))
			return nil
		},
	}

	cmd.Flags().BoolVar(&isWorkflow, "workflow", false, "validate a workflow definition instead of a pipeline")
	cmd.Flags().StringArrayVar(&vars, "var", nil, "set a substitution variable (KEY=VALUE, repeatable)")
	return cmd
}

// validateExpressions parses every piece of expression text in the config.
// Schemas are not known before sources are read, so this is a syntax pass.
func validateExpressions(cfg *config.PipelineConfig) error {
	for i, t := range cfg.Transforms {
		switch t.Op {
		case core.OpFilter:
			if _, err := expr.ParsePredicate(t.Predicate, nil); err != nil {
				return fmt.Errorf("transforms[%d] (%s): %w", i, t.Op, err)
			}
		case core.OpDeriveColumn:
			if _, err := expr.ParseExpression(t.Expr, nil); err != nil {
				return fmt.Errorf("transforms[%d] (%s): %w", i, t.Op, err)
			}
		}
	}
	for i, c := range cfg.Checks {
		if c.Kind == core.CheckExpression {
			if _, err := expr.ParsePredicate(c.Predicate, nil); err != nil {
				return fmt.Errorf("checks[%d] (%s): %w", i, c.Kind, err)
			}
		}
	}
	return nil
}
