// Package config loads and validates pipeline and workflow definitions from
// YAML. Variable and secret placeholders are substituted before descriptors
// are decoded, so downstream components only ever see resolved values.
package config

import (
	"fmt"

	"github.com/ameijin/quicketl/pkg/backend"
	"github.com/ameijin/quicketl/pkg/core"
)

// SecretsConfig selects and configures the secrets provider used during
// substitution.
type SecretsConfig struct {
	Provider string            `koanf:"provider" mapstructure:"provider"`
	Options  map[string]string `koanf:"options" mapstructure:"options"`
}

// PipelineConfig is one pipeline definition.
type PipelineConfig struct {
	Name    string             `koanf:"name" mapstructure:"name"`
	Backend core.BackendConfig `koanf:"backend" mapstructure:"backend"`

	Sources    []core.SourceDescriptor    `koanf:"sources" mapstructure:"sources"`
	Transforms []core.TransformDescriptor `koanf:"transforms" mapstructure:"transforms"`
	Checks     []core.CheckDescriptor     `koanf:"checks" mapstructure:"checks"`
	Sink       *core.SinkDescriptor       `koanf:"sink" mapstructure:"sink"`

	// FailOnChecks defaults to true; a nil pointer means unset.
	FailOnChecks *bool `koanf:"fail_on_checks" mapstructure:"fail_on_checks"`

	Variables map[string]string `koanf:"variables" mapstructure:"variables"`
	Secrets   SecretsConfig     `koanf:"secrets" mapstructure:"secrets"`
}

// ShouldFailOnChecks resolves the FailOnChecks default.
func (c *PipelineConfig) ShouldFailOnChecks() bool {
	return c.FailOnChecks == nil || *c.FailOnChecks
}

// Validate checks pipeline structure without touching a backend.
func (c *PipelineConfig) Validate() error {
	if c.Name == "" {
		return &core.ConfigurationError{Field: "name", Reason: "pipeline name is required"}
	}
	if c.Backend.Type == "" {
		return &core.ConfigurationError{Field: "backend.type", Reason: "backend type is required"}
	}
	if !backend.IsRegistered(c.Backend.Type) {
		return &core.ConfigurationError{Field: "backend.type",
			Reason: fmt.Sprintf("unknown backend %q (available: %v)", c.Backend.Type, backend.ListNames())}
	}
	if len(c.Sources) == 0 {
		return &core.ConfigurationError{Field: "sources", Reason: "at least one source is required"}
	}
	seen := make(map[string]bool, len(c.Sources))
	for i, src := range c.Sources {
		if src.Name == "" {
			return &core.ConfigurationError{Field: fmt.Sprintf("sources[%d].name", i), Reason: "source name is required"}
		}
		if seen[src.Name] {
			return &core.ConfigurationError{Field: fmt.Sprintf("sources[%d].name", i),
				Reason: fmt.Sprintf("duplicate source name %q", src.Name)}
		}
		seen[src.Name] = true
		switch src.Type {
		case "file":
			if src.Path == "" {
				return &core.ConfigurationError{Field: fmt.Sprintf("sources[%d].path", i), Reason: "file source requires a path"}
			}
		case "table":
			if src.Table == "" {
				return &core.ConfigurationError{Field: fmt.Sprintf("sources[%d].table", i), Reason: "table source requires a table"}
			}
		default:
			return &core.ConfigurationError{Field: fmt.Sprintf("sources[%d].type", i),
				Reason: fmt.Sprintf("unknown source type %q", src.Type)}
		}
	}
	if c.Sink != nil {
		if err := validateSink(c.Sink); err != nil {
			return err
		}
	}
	return nil
}

func validateSink(sink *core.SinkDescriptor) error {
	switch sink.Type {
	case "file":
		if sink.Path == "" {
			return &core.ConfigurationError{Field: "sink.path", Reason: "file sink requires a path"}
		}
	case "table":
		if sink.Table == "" {
			return &core.ConfigurationError{Field: "sink.table", Reason: "table sink requires a table"}
		}
	default:
		return &core.ConfigurationError{Field: "sink.type", Reason: fmt.Sprintf("unknown sink type %q", sink.Type)}
	}
	switch sink.Mode {
	case "", "append", "truncate", "replace":
	case "upsert":
		if len(sink.Keys) == 0 {
			return &core.ConfigurationError{Field: "sink.keys", Reason: "upsert requires keys"}
		}
	default:
		return &core.ConfigurationError{Field: "sink.mode", Reason: fmt.Sprintf("unknown sink mode %q", sink.Mode)}
	}
	return nil
}

// Workflow failure policies.
const (
	OnFailureFailFast = "fail_fast"
	OnFailureContinue = "continue"
)

// StageConfig is one ordered workflow stage.
type StageConfig struct {
	Name      string   `koanf:"name" mapstructure:"name"`
	Parallel  bool     `koanf:"parallel" mapstructure:"parallel"`
	Pipelines []string `koanf:"pipelines" mapstructure:"pipelines"`
}

// WorkflowConfig composes pipelines into ordered stages.
type WorkflowConfig struct {
	Name      string        `koanf:"name" mapstructure:"name"`
	OnFailure string        `koanf:"on_failure" mapstructure:"on_failure"`
	Stages    []StageConfig `koanf:"stages" mapstructure:"stages"`

	// Pipelines maps pipeline names to their definition file paths,
	// relative to the workflow file.
	Pipelines map[string]string `koanf:"pipelines" mapstructure:"pipelines"`

	Variables map[string]string `koanf:"variables" mapstructure:"variables"`
	Secrets   SecretsConfig     `koanf:"secrets" mapstructure:"secrets"`
}

// Validate checks workflow structure.
func (c *WorkflowConfig) Validate() error {
	if c.Name == "" {
		return &core.ConfigurationError{Field: "name", Reason: "workflow name is required"}
	}
	switch c.OnFailure {
	case "", OnFailureFailFast, OnFailureContinue:
	default:
		return &core.ConfigurationError{Field: "on_failure",
			Reason: fmt.Sprintf("unknown policy %q (want %s or %s)", c.OnFailure, OnFailureFailFast, OnFailureContinue)}
	}
	if len(c.Stages) == 0 {
		return &core.ConfigurationError{Field: "stages", Reason: "at least one stage is required"}
	}
	for i, stage := range c.Stages {
		if stage.Name == "" {
			return &core.ConfigurationError{Field: fmt.Sprintf("stages[%d].name", i), Reason: "stage name is required"}
		}
		if len(stage.Pipelines) == 0 {
			return &core.ConfigurationError{Field: fmt.Sprintf("stages[%d].pipelines", i),
				Reason: "stage references no pipelines"}
		}
		for _, name := range stage.Pipelines {
			if _, ok := c.Pipelines[name]; !ok {
				return &core.ConfigurationError{Field: fmt.Sprintf("stages[%d].pipelines", i),
					Reason: fmt.Sprintf("pipeline %q is not defined", name)}
			}
		}
	}
	return nil
}

// Policy resolves the OnFailure default.
func (c *WorkflowConfig) Policy() string {
	if c.OnFailure == "" {
		return OnFailureFailFast
	}
	return c.OnFailure
}
