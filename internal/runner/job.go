package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/aetherflow/aetherflow/internal/observer"
	"github.com/aetherflow/aetherflow/internal/registry"
	"github.com/aetherflow/aetherflow/internal/resolver"
	"github.com/aetherflow/aetherflow/internal/runctx"
	"github.com/aetherflow/aetherflow/internal/spec"
	"github.com/aetherflow/aetherflow/internal/state"
	"github.com/aetherflow/aetherflow/internal/steps"
	"github.com/aetherflow/aetherflow/internal/whenexpr"
)

var stepInputAllowedRoots = map[string]bool{
	"env": true, "steps": true, "job": true, "jobs": true, "run_id": true, "flow_id": true,
}

var stepOutputAllowedRoots = map[string]bool{
	"env": true, "steps": true, "job": true, "jobs": true, "run_id": true, "flow_id": true, "result": true,
}

// runJob drives one job's lifecycle: dependency check, gate, sequential step
// execution with resume/skip propagation, and cleanup. It returns the job's
// terminal status, or an error for a StepError that must terminate the run
// (the job has already been persisted as FAILED).
func runJob(ctx context.Context, fs *spec.FlowSpec, rc *runctx.RunContext, stepReg *registry.Registry[steps.Step], obs *observer.Observer, job *spec.JobSpec, statuses map[string]string, jobsView map[string]any) (string, error) {
	obs.JobStart(job.ID)

	for _, dep := range job.DependsOn {
		if statuses[dep] != state.JobSuccess {
			return finishJob(ctx, fs, rc, obs, job, state.JobBlocked, map[string]any{}, jobsView), nil
		}
	}

	if job.When != "" {
		whenRoot := map[string]any{
			"jobs": jobsView,
			"env":  toAnyMap(rc.Env),
			"job":  map[string]any{"id": job.ID},
		}
		ok, err := whenexpr.EvalString(job.When, whenRoot)
		if err != nil {
			return "", fmt.Errorf("runner: job %s: evaluate when: %w", job.ID, err)
		}
		if !ok {
			return finishJob(ctx, fs, rc, obs, job, state.JobSkipped, map[string]any{}, jobsView), nil
		}
	}

	if err := rc.State.SetJobStatus(ctx, job.ID, rc.RunID, state.JobRunning); err != nil {
		return "", fmt.Errorf("runner: job %s: set running: %w", job.ID, err)
	}

	stepOutputs := map[string]any{}
	jobOutputs := map[string]any{}
	skipRest := false
	skipReason := ""

	for i := range job.Steps {
		step := &job.Steps[i]

		if skipRest {
			if err := rc.State.SetStepStatus(ctx, job.ID, rc.RunID, step.ID, state.StepSkipped); err != nil {
				return "", failJob(ctx, fs, rc, obs, job, fmt.Errorf("runner: job %s step %s: set skipped: %w", job.ID, step.ID, err))
			}
			result := map[string]any{"skipped": true, "reason": skipReason}
			stepOutputs[step.ID] = result
			obs.StepStart(job.ID, step.ID, step.Type)
			if err := promoteOutputs(step, result, stepOutputs, jobOutputs, jobsView, rc, job.ID); err != nil {
				return "", failJob(ctx, fs, rc, obs, job, err)
			}
			obs.StepEnd(job.ID, step.ID, step.Type, state.StepSkipped)
			continue
		}

		prevStatus, err := rc.State.GetStepStatus(ctx, job.ID, rc.RunID, step.ID)
		if err != nil && !errors.Is(err, state.ErrNotFound) {
			return "", failJob(ctx, fs, rc, obs, job, fmt.Errorf("runner: job %s step %s: get status: %w", job.ID, step.ID, err))
		}
		if err == nil && (prevStatus == state.StepSuccess || prevStatus == state.StepSkipped) {
			// Resume: the step already completed in a prior invocation of this
			// run_id. Its outputs were never persisted (only status), so the
			// "result" scope for promotion is empty — downstream `outputs`
			// templates referencing result.* must carry a DEFAULT to remain
			// resume-safe. This implements spec.md §9's resolved Open Question
			// ("Skip-after-promotion consistency"): promotion happens so
			// downstream `when` expressions stay evaluable.
			emptyResult := map[string]any{}
			stepOutputs[step.ID] = emptyResult
			if err := promoteOutputs(step, emptyResult, stepOutputs, jobOutputs, jobsView, rc, job.ID); err != nil {
				return "", failJob(ctx, fs, rc, obs, job, err)
			}
			continue
		}

		inputRoot := buildStepRoot(rc.Env, stepOutputs, job.ID, jobOutputs, jobsView, rc.RunID, rc.FlowID, nil)
		renderedAny, err := resolver.RenderValue(map[string]any(step.Inputs), inputRoot, stepInputAllowedRoots)
		if err != nil {
			return "", failJob(ctx, fs, rc, obs, job, fmt.Errorf("runner: job %s step %s: render inputs: %w", job.ID, step.ID, err))
		}
		renderedInputs, _ := renderedAny.(map[string]any)
		if renderedInputs == nil {
			renderedInputs = map[string]any{}
		}

		stepImpl, err := stepReg.Get(step.Type)
		if err != nil {
			return "", failJob(ctx, fs, rc, obs, job, fmt.Errorf("runner: job %s step %s: %w", job.ID, step.ID, err))
		}

		obs.StepStart(job.ID, step.ID, step.Type)
		result, err := invokeStep(ctx, stepImpl, rc, job.ID, step.ID, renderedInputs)
		if err != nil {
			return "", failJob(ctx, fs, rc, obs, job, fmt.Errorf("runner: job %s step %s failed: %w", job.ID, step.ID, err))
		}

		stepStatus := result.Status
		if stepStatus == "" {
			stepStatus = steps.StatusSuccess
		}
		if err := rc.State.SetStepStatus(ctx, job.ID, rc.RunID, step.ID, stepStatus); err != nil {
			return "", failJob(ctx, fs, rc, obs, job, fmt.Errorf("runner: job %s step %s: set status: %w", job.ID, step.ID, err))
		}

		outputs := result.Outputs
		if outputs == nil {
			outputs = map[string]any{}
		}
		stepOutputs[step.ID] = outputs

		if err := promoteOutputs(step, outputs, stepOutputs, jobOutputs, jobsView, rc, job.ID); err != nil {
			return "", failJob(ctx, fs, rc, obs, job, err)
		}

		obs.StepEnd(job.ID, step.ID, step.Type, stepStatus)

		if stepStatus == steps.StatusSkipped && step.OnNoData == "skip_job" {
			skipRest = true
			if reason, ok := outputs["reason"].(string); ok && reason != "" {
				skipReason = reason
			} else {
				skipReason = "step requested skip_job"
			}
		}
	}

	finalStatus := state.JobSuccess
	if skipRest {
		finalStatus = state.JobSkipped
	}
	return finishJob(ctx, fs, rc, obs, job, finalStatus, jobOutputs, jobsView), nil
}

// invokeStep recovers a panicking step into an error, so a single
// misbehaving step fails its job instead of the whole process.
func invokeStep(ctx context.Context, s steps.Step, rc *runctx.RunContext, jobID, stepID string, inputs map[string]any) (res steps.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.Run(ctx, rc, jobID, stepID, inputs)
}

func failJob(ctx context.Context, fs *spec.FlowSpec, rc *runctx.RunContext, obs *observer.Observer, job *spec.JobSpec, cause error) error {
	if err := rc.State.SetJobStatus(ctx, job.ID, rc.RunID, state.JobFailed); err != nil {
		rc.Log.Error("failed to persist FAILED job status", "job_id", job.ID, "error", err)
	}
	obs.JobEnd(job.ID, state.JobFailed)
	if errs := applyCleanupPolicy(fs, rc, []string{job.ID}, false); len(errs) > 0 {
		for _, e := range errs {
			rc.Log.Warn("cleanup failed", "job_id", job.ID, "error", e)
		}
	}
	return cause
}

func finishJob(ctx context.Context, fs *spec.FlowSpec, rc *runctx.RunContext, obs *observer.Observer, job *spec.JobSpec, status string, jobOutputs map[string]any, jobsView map[string]any) string {
	if err := rc.State.SetJobStatus(ctx, job.ID, rc.RunID, status); err != nil {
		rc.Log.Error("failed to persist job status", "job_id", job.ID, "status", status, "error", err)
	}
	jobsView[job.ID] = map[string]any{"status": status, "outputs": jobOutputs}
	obs.JobEnd(job.ID, status)

	if errs := applyCleanupPolicy(fs, rc, []string{job.ID}, status == state.JobSuccess); len(errs) > 0 {
		for _, e := range errs {
			rc.Log.Warn("cleanup failed", "job_id", job.ID, "error", e)
		}
	}
	return status
}

func buildStepRoot(env map[string]string, stepOutputs map[string]any, jobID string, jobOutputs map[string]any, jobsView map[string]any, runID, flowID string, result map[string]any) map[string]any {
	root := map[string]any{
		"env":     toAnyMap(env),
		"steps":   stepOutputs,
		"job":     map[string]any{"id": jobID, "outputs": jobOutputs},
		"jobs":    jobsView,
		"run_id":  runID,
		"flow_id": flowID,
	}
	if result != nil {
		root["result"] = result
	}
	return root
}

// promoteOutputs renders a step's declared `outputs` mapping (with `result`
// in scope) and merges it into jobOutputs, per spec.md §4.2's output
// promotion phase.
func promoteOutputs(step *spec.StepSpec, result map[string]any, stepOutputs map[string]any, jobOutputs map[string]any, jobsView map[string]any, rc *runctx.RunContext, jobID string) error {
	if len(step.Outputs) == 0 {
		return nil
	}
	root := buildStepRoot(rc.Env, stepOutputs, jobID, jobOutputs, jobsView, rc.RunID, rc.FlowID, result)
	renderedAny, err := resolver.RenderValue(map[string]any(step.Outputs), root, stepOutputAllowedRoots)
	if err != nil {
		return fmt.Errorf("runner: job %s step %s: promote outputs: %w", jobID, step.ID, err)
	}
	rendered, _ := renderedAny.(map[string]any)
	for k, v := range rendered {
		jobOutputs[k] = v
	}
	return nil
}
