package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/ameijin/quicketl/pkg/core"
)

// LoadPipeline loads, substitutes and validates a pipeline definition.
// Explicit variables override both the file's variables block and the
// environment during substitution.
func LoadPipeline(path string, variables map[string]string) (*PipelineConfig, error) {
	raw, err := loadSubstituted(path, variables)
	if err != nil {
		return nil, err
	}

	var cfg PipelineConfig
	if err := decode(raw, &cfg); err != nil {
		return nil, &core.ConfigurationError{Field: path, Reason: err.Error()}
	}
	if cfg.Variables == nil {
		cfg.Variables = map[string]string{}
	}
	for k, v := range variables {
		cfg.Variables[k] = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadWorkflow loads, substitutes and validates a workflow definition.
func LoadWorkflow(path string, variables map[string]string) (*WorkflowConfig, error) {
	raw, err := loadSubstituted(path, variables)
	if err != nil {
		return nil, err
	}

	var cfg WorkflowConfig
	if err := decode(raw, &cfg); err != nil {
		return nil, &core.ConfigurationError{Field: path, Reason: err.Error()}
	}
	if cfg.Variables == nil {
		cfg.Variables = map[string]string{}
	}
	for k, v := range variables {
		cfg.Variables[k] = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// EnvVarPrefix marks environment variables seeded into substitution:
// QUICKETL_REGION provides ${REGION}. Explicit variables still win.
const EnvVarPrefix = "QUICKETL_"

// envVariables collects the QUICKETL_-prefixed environment, with the prefix
// stripped.
func envVariables() map[string]string {
	vars := map[string]string{}
	for _, kv := range os.Environ() {
		if name, val, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(name, EnvVarPrefix) {
			vars[strings.TrimPrefix(name, EnvVarPrefix)] = val
		}
	}
	return vars
}

// loadSubstituted parses the YAML file and applies placeholder substitution
// to the raw tree before any descriptor decoding.
func loadSubstituted(path string, variables map[string]string) (map[string]any, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &core.ConfigurationError{Field: path, Reason: "configuration file not found"}
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, &core.ConfigurationError{Field: path, Reason: err.Error()}
	}
	raw := k.Raw()

	// The file's own variables block participates in its substitution.
	// QUICKETL_-prefixed environment variables sit on top of the file's
	// block, and caller-supplied variables win over both.
	merged := map[string]string{}
	for key, val := range k.StringMap("variables") {
		merged[key] = val
	}
	for key, val := range envVariables() {
		merged[key] = val
	}
	for key, val := range variables {
		merged[key] = val
	}

	var sc SecretsConfig
	sc.Provider = k.String("secrets.provider")
	sc.Options = k.StringMap("secrets.options")

	substituted, err := newSubstituter(merged, sc).Apply(raw)
	if err != nil {
		return nil, err
	}
	out, ok := substituted.(map[string]any)
	if !ok {
		return nil, &core.ConfigurationError{Field: path, Reason: "configuration root must be a mapping"}
	}
	return out, nil
}

// decode unmarshals the substituted tree through a fresh koanf instance so
// nested descriptor structs pick up their koanf tags.
func decode(raw map[string]any, target any) error {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(raw, "."), nil); err != nil {
		return err
	}
	return k.UnmarshalWithConf("", target, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           target,
			WeaklyTypedInput: true,
			ErrorUnused:      false,
			TagName:          "koanf",
		},
	})
}

// Describe returns a short human-readable summary of a pipeline config,
// used by validate-only invocations.
func Describe(cfg *PipelineConfig) string {
	sink := "none"
	if cfg.Sink != nil {
		sink = cfg.Sink.Type
	}
	return fmt.Sprintf("pipeline %q: backend=%s sources=%d transforms=%d checks=%d sink=%s",
		cfg.Name, cfg.Backend.Type, len(cfg.Sources), len(cfg.Transforms), len(cfg.Checks), sink)
}
