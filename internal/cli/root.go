// Package cli provides the quicketl command-line interface.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"

	"github.com/ameijin/quicketl/internal/cli/commands"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

// settings are the global flags, resolved through koanf so environment
// overrides (QUICKETL_LOG_LEVEL etc.) keep working alongside flags.
type settings struct {
	LogLevel  string `koanf:"log-level"`
	LogFormat string `koanf:"log-format"`
	Quiet     bool   `koanf:"quiet"`
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "quicketl",
		Short: "QuickETL - declarative data pipelines",
		Long: `QuickETL runs declarative, backend-agnostic data pipelines.

Pipelines are YAML files describing sources, transforms, quality checks and
a sink; the engine compiles them to SQL on DuckDB, PostgreSQL or SQLite.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			k := koanf.New(".")
			if err := k.Load(posflag.Provider(cmd.Root().PersistentFlags(), ".", k), nil); err != nil {
				return err
			}
			var s settings
			if err := k.Unmarshal("", &s); err != nil {
				return err
			}

			logger, err := buildLogger(s)
			if err != nil {
				return err
			}
			cmd.SetContext(commands.WithLogger(cmd.Context(), logger))
			return nil
		},
	}

	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress logs, print results only")

	rootCmd.AddCommand(
		commands.NewRunCommand(),
		commands.NewWorkflowCommand(),
		commands.NewValidateCommand(),
		commands.NewBackendsCommand(),
		commands.NewVersionCommand(Version, GitCommit),
	)
	return rootCmd
}

func buildLogger(s settings) (*slog.Logger, error) {
	if s.Quiet {
		return slog.New(slog.DiscardHandler), nil
	}

	var level slog.Level
	switch s.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "", "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", s.LogLevel)
	}

	opts := &slog.HandlerOptions{Level: level}
	switch s.LogFormat {
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	case "", "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", s.LogFormat)
	}
}

// Execute runs the CLI.
func Execute() int {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
