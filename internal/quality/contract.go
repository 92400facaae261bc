package quality

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ameijin/quicketl/pkg/core"
)

// contractFile is the YAML shape of a schema contract.
type contractFile struct {
	Columns []contractColumn `yaml:"columns"`
	Strict  bool             `yaml:"strict"`
}

type contractColumn struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Nullable *bool  `yaml:"nullable"`
}

// SchemaContractValidator validates a table's engine-computed schema against
// a YAML contract. Strict contracts also reject columns the contract does
// not declare.
type SchemaContractValidator struct{}

// NewSchemaContractValidator returns the default contract validator.
func NewSchemaContractValidator() *SchemaContractValidator {
	return &SchemaContractValidator{}
}

// Validate implements ContractValidator.
func (v *SchemaContractValidator) Validate(ctx context.Context, handle *core.TableHandle, contractPath string) (bool, []string, error) {
	data, err := os.ReadFile(contractPath)
	if err != nil {
		return false, nil, fmt.Errorf("reading contract: %w", err)
	}

	var contract contractFile
	if err := yaml.Unmarshal(data, &contract); err != nil {
		return false, nil, fmt.Errorf("parsing contract: %w", err)
	}
	if len(contract.Columns) == 0 {
		return false, nil, fmt.Errorf("contract declares no columns")
	}

	var problems []string
	declared := make(map[string]bool, len(contract.Columns))
	for _, want := range contract.Columns {
		declared[want.Name] = true
		col, ok := handle.Schema.Column(want.Name)
		if !ok {
			problems = append(problems, fmt.Sprintf("missing column %q", want.Name))
			continue
		}
		if want.Type != "" && !typesMatch(want.Type, col.Type) {
			problems = append(problems, fmt.Sprintf("column %q has type %q, contract wants %q", want.Name, col.Type, want.Type))
		}
		if want.Nullable != nil && !*want.Nullable && col.Nullable {
			problems = append(problems, fmt.Sprintf("column %q is nullable, contract forbids nulls", want.Name))
		}
	}
	if contract.Strict {
		for _, col := range handle.Schema {
			if !declared[col.Name] {
				problems = append(problems, fmt.Sprintf("undeclared column %q", col.Name))
			}
		}
	}

	return len(problems) == 0, problems, nil
}

// typeAliases folds spellings that mean the same storage type.
var typeAliases = map[string]string{
	"string":  "varchar",
	"text":    "varchar",
	"float":   "double",
	"real":    "double",
	"int":     "integer",
	"int64":   "bigint",
	"bool":    "boolean",
	"numeric": "double",
}

func typesMatch(want, got string) bool {
	return canonicalType(want) == canonicalType(got)
}

func canonicalType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if alias, ok := typeAliases[t]; ok {
		return alias
	}
	return t
}
