package steps

import (
	"context"

	"github.com/aetherflow/aetherflow/internal/runctx"
)

// NoopStep returns SUCCESS and echoes its inputs verbatim as outputs. Used in
// tests and as a placeholder/probe step — supplemented from
// original_source/builtins/steps.py's trivial step.
type NoopStep struct{}

func (NoopStep) Run(_ context.Context, _ *runctx.RunContext, _, _ string, inputs map[string]any) (Result, error) {
	return Result{Status: StatusSuccess, Outputs: inputs}, nil
}
