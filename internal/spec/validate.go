package spec

import (
	"fmt"

	"github.com/aetherflow/aetherflow/internal/whenexpr"
)

// ValidateOptions tunes validation behavior the way AETHERFLOW_VALIDATE_ENV_STRICT does.
type ValidateOptions struct {
	// EnvStrict, when true, rejects flows referencing env vars absent from Env
	// at validation time instead of deferring to a runtime ResolverMissingKeyError.
	EnvStrict bool
	Env       map[string]string
}

// Validate enforces the semantic checks of spec.md §4.3 over an already-parsed FlowSpec.
func Validate(fs *FlowSpec, opts ValidateOptions) error {
	if fs == nil || len(fs.Jobs) == 0 {
		return ErrEmptyJobs
	}
	if fs.Flow.ID == "" {
		return ErrEmptyFlowID
	}
	if fs.Flow.Workspace.CleanupPolicy != "" && !cleanupPolicies[fs.Flow.Workspace.CleanupPolicy] {
		return fmt.Errorf("%w: workspace.cleanup_policy=%q", ErrInvalidEnum, fs.Flow.Workspace.CleanupPolicy)
	}
	if fs.Flow.Locks.Scope != "" && !lockScopes[fs.Flow.Locks.Scope] {
		return fmt.Errorf("%w: locks.scope=%q", ErrInvalidEnum, fs.Flow.Locks.Scope)
	}

	jobIdx := make(map[string]int, len(fs.Jobs))
	for i, j := range fs.Jobs {
		if j.ID == "" {
			return NewValidationError("", "", "id", "job has empty id", ErrEmptyJobID)
		}
		if _, dup := jobIdx[j.ID]; dup {
			return NewValidationError(j.ID, "", "id", "duplicate job id: "+j.ID, ErrDuplicateJobID)
		}
		jobIdx[j.ID] = i
	}

	for i, j := range fs.Jobs {
		if err := validateJob(&fs.Jobs[i], i, jobIdx, fs.Resources, opts); err != nil {
			return err
		}
		_ = j
	}
	return nil
}

func validateJob(j *JobSpec, idx int, jobIdx map[string]int, resources map[string]ResourceSpec, opts ValidateOptions) error {
	for _, dep := range j.DependsOn {
		if dep == j.ID {
			return NewValidationError(j.ID, "", "depends_on", "job depends on itself", ErrSelfDependency)
		}
		depIdx, ok := jobIdx[dep]
		if !ok {
			return NewValidationError(j.ID, "", "depends_on", "depends on unknown job: "+dep, ErrMissingDependency)
		}
		if depIdx >= idx {
			return NewValidationError(j.ID, "", "depends_on", "depends on job declared later or at same position: "+dep, ErrForwardDependency)
		}
	}

	if j.When != "" {
		if _, err := whenexpr.Parse(j.When); err != nil {
			return NewValidationError(j.ID, "", "when", err.Error(), ErrInvalidWhen)
		}
	}

	stepIDs := make(map[string]bool, len(j.Steps))
	for i := range j.Steps {
		s := &j.Steps[i]
		if s.ID == "" {
			return NewValidationError(j.ID, "", "id", "step has empty id", ErrEmptyStepID)
		}
		if stepIDs[s.ID] {
			return NewValidationError(j.ID, s.ID, "id", "duplicate step id: "+s.ID, ErrDuplicateStepID)
		}
		stepIDs[s.ID] = true

		if s.Type == "" {
			return NewValidationError(j.ID, s.ID, "type", "step has empty type", ErrUnknownStepType)
		}
		if !onNoDataValues[s.OnNoData] {
			return NewValidationError(j.ID, s.ID, "on_no_data", "invalid on_no_data: "+s.OnNoData, ErrInvalidEnum)
		}

		if ref, ok := s.Inputs["resource"]; ok {
			if name, ok := ref.(string); ok && name != "" {
				if _, declared := resources[name]; !declared {
					return NewValidationError(j.ID, s.ID, "inputs.resource", "references undeclared resource: "+name, ErrUnknownResourceRef)
				}
			}
		}

		if opts.EnvStrict {
			if err := scanEnvStrict(s.Inputs, opts.Env); err != nil {
				return NewValidationError(j.ID, s.ID, "inputs", err.Error(), ErrInvalidEnum)
			}
		}
	}
	return nil
}
