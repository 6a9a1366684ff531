package runner

import "errors"

var (
	// ErrJobFailed marks a failed run whose failure originates from a job/step,
	// as opposed to a spec/validation problem caught before anything ran.
	ErrJobFailed = errors.New("runner: one or more jobs failed")
)

// Exit codes for the companion CLI, per spec.md §6:
// 0 success; 1 step/run failure; 2 spec/template validation failure;
// 3 missing required environment.
// `validate` exits 2 when the flow fails to parse or validate. `run` exits 2
// when its profiles file or bundle manifest fails to load, and 1 for any
// error returned by Run or RunBundle, flow validation and template errors
// included. No command exits with ExitMissingEnvVar.
const (
	ExitOK            = 0
	ExitJobFailure    = 1
	ExitSpecError     = 2
	ExitMissingEnvVar = 3
)
