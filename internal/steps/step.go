// Package steps implements the Step contract and AetherFlow's built-in
// steps: with_lock, external.process, noop, and http.request.
package steps

import (
	"context"

	"github.com/aetherflow/aetherflow/internal/registry"
	"github.com/aetherflow/aetherflow/internal/runctx"
)

const (
	StatusSuccess = "SUCCESS"
	StatusSkipped = "SKIPPED"
)

// Result is a step's return value: status plus an output mapping, matching
// spec.md §4.5's "{status ∈ {SUCCESS, SKIPPED}, outputs: mapping}".
type Result struct {
	Status  string
	Outputs map[string]any
}

// Step is the contract every registered step type implements. Inputs have
// already been rendered by the resolver before Run is invoked.
type Step interface {
	Run(ctx context.Context, rc *runctx.RunContext, jobID, stepID string, inputs map[string]any) (Result, error)
}

// InlineSpec is the shape of `with_lock`'s inner `step` input: a nested step
// declaration with its own type/id/inputs.
type InlineSpec struct {
	ID     string
	Type   string
	Inputs map[string]any
}

// NewRegistry builds the default step registry with every built-in
// registered, mirroring the teacher's steps.DefaultRegistry().
func NewRegistry() *registry.Registry[Step] {
	r := registry.New[Step]()
	r.Register("noop", func() Step { return &NoopStep{} })
	r.Register("with_lock", func() Step { return &WithLockStep{Inner: r} })
	r.Register("external.process", func() Step { return &ExternalProcessStep{} })
	r.Register("http.request", func() Step { return &HTTPRequestStep{} })
	return r
}
