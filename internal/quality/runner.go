// Package quality evaluates quality checks against a single table snapshot.
// The runner produces exactly one result per descriptor in input order and
// never short-circuits; halting on failures is the orchestrator's call.
package quality

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ameijin/quicketl/pkg/backend"
	"github.com/ameijin/quicketl/pkg/core"
)

// ContractValidator validates a table against an external schema contract.
// The runner treats its outcome as opaque pass/fail plus messages.
type ContractValidator interface {
	Validate(ctx context.Context, handle *core.TableHandle, contractPath string) (passed bool, problems []string, err error)
}

// Runner evaluates check descriptors against one table.
type Runner struct {
	backend   backend.Backend
	dialect   *backend.Dialect
	validator ContractValidator
	logger    *slog.Logger
}

// NewRunner creates a check runner. validator may be nil; contract checks
// then fail with a configuration message instead of panicking.
func NewRunner(b backend.Backend, validator ContractValidator, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{
		backend:   b,
		dialect:   b.Dialect(),
		validator: validator,
		logger:    logger,
	}
}

// Run evaluates every check against the table and returns one result per
// descriptor, in order. A check whose evaluation itself fails (backend
// error, panic) is recorded as failed with the error captured; remaining
// checks still run. Run only returns an error for an unusable handle.
func (r *Runner) Run(ctx context.Context, handle *core.TableHandle, checks []core.CheckDescriptor) ([]core.CheckResult, error) {
	if handle == nil {
		return nil, &core.ConfigurationError{Field: "table", Reason: "check runner requires a table"}
	}

	results := make([]core.CheckResult, 0, len(checks))
	for i, check := range checks {
		result := r.runOne(ctx, handle, check)
		r.logger.Debug("check evaluated", "index", i, "kind", check.Kind, "passed", result.Passed)
		results = append(results, result)
	}
	return results, nil
}

// AllPassed reports whether every result passed.
func AllPassed(results []core.CheckResult) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

func (r *Runner) runOne(ctx context.Context, handle *core.TableHandle, check core.CheckDescriptor) (result core.CheckResult) {
	result.Kind = check.Kind

	defer func() {
		if rec := recover(); rec != nil {
			result.Passed = false
			result.Message = fmt.Sprintf("check panicked: %v", rec)
		}
	}()

	var err error
	switch check.Kind {
	case core.CheckNotNull:
		result, err = r.checkNotNull(ctx, handle, check)
	case core.CheckUnique:
		result, err = r.checkUnique(ctx, handle, check)
	case core.CheckRowCount:
		result, err = r.checkRowCount(ctx, handle, check)
	case core.CheckAcceptedValues:
		result, err = r.checkAcceptedValues(ctx, handle, check)
	case core.CheckExpression:
		result, err = r.checkExpression(ctx, handle, check)
	case core.CheckContract:
		result, err = r.checkContract(ctx, handle, check)
	default:
		return core.CheckResult{
			Kind:    check.Kind,
			Passed:  false,
			Message: fmt.Sprintf("unknown check kind %q", check.Kind),
		}
	}

	if err != nil {
		return core.CheckResult{
			Kind:    check.Kind,
			Passed:  false,
			Message: fmt.Sprintf("check evaluation failed: %v", err),
		}
	}
	result.Kind = check.Kind
	return result
}
