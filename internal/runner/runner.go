// Package runner implements the lifecycle of one run: env snapshot, spec
// validation, resource construction, sequential job/step execution against
// the state store, resume, cleanup, and observer events, per spec.md §4.5.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/aetherflow/aetherflow/internal/observer"
	"github.com/aetherflow/aetherflow/internal/registry"
	"github.com/aetherflow/aetherflow/internal/resolver"
	"github.com/aetherflow/aetherflow/internal/resources"
	"github.com/aetherflow/aetherflow/internal/runctx"
	"github.com/aetherflow/aetherflow/internal/settings"
	"github.com/aetherflow/aetherflow/internal/spec"
	"github.com/aetherflow/aetherflow/internal/state"
	"github.com/aetherflow/aetherflow/internal/steps"
)

// Options configures one invocation of Run. The zero value is usable:
// unset registries fall back to the built-in connector/step sets, and an
// unset RunID is generated.
type Options struct {
	// RunID, when non-empty, makes the run resumable: a second Run call with
	// the same RunID against the same state database will not re-execute any
	// step whose StepRun is already SUCCESS or SKIPPED.
	RunID string
	// OnlyJobID restricts execution to a single named job, leaving every
	// other job's status untouched. Supplemental to spec.md, grounded on
	// original_source/runner.py's `flow_job` parameter.
	OnlyJobID string

	Profiles    spec.ProfilesFileSpec
	EnvFiles    []spec.EnvFileSpec
	EnvFilesDir string

	Connectors  *resources.ConnectorRegistry
	Steps       *registry.Registry[steps.Step]
	SecretsHook resources.SecretsHook

	Settings *settings.Settings
	Logger   *slog.Logger
}

// Summary is the run_summary emitted at the end of a run.
type Summary struct {
	FlowID       string
	RunID        string
	JobStatuses  map[string]string
	StatusCounts map[string]int
	Durations    map[string]time.Duration
	StartedAt    time.Time
	EndedAt      time.Time
}

// Run executes flowYAML once end-to-end. On a StepError (a raised exception
// from a step's Run) the error is returned and the offending job is already
// persisted as FAILED with no StepRun row written for the failing step,
// per spec.md §7.
func Run(ctx context.Context, flowYAML []byte, opts Options) (*Summary, error) {
	startedAt := time.Now()

	fs, err := spec.ParseFlow(flowYAML)
	if err != nil {
		return nil, fmt.Errorf("runner: parse flow: %w", err)
	}

	sett := opts.Settings
	if sett == nil {
		sett = settings.Load(settings.Snapshot())
	}

	env, err := buildEnv(nil, opts.EnvFiles, opts.EnvFilesDir)
	if err != nil {
		return nil, err
	}

	if err := spec.Validate(fs, spec.ValidateOptions{EnvStrict: sett.ValidateEnvStrict, Env: env}); err != nil {
		return nil, err
	}

	envRoot := map[string]any{"env": toAnyMap(env)}
	envOnly := map[string]bool{"env": true}
	renderedRoot, err := resolver.RenderString(fs.Flow.Workspace.Root, envRoot, envOnly)
	if err != nil {
		return nil, fmt.Errorf("runner: render flow.workspace.root: %w", err)
	}
	fs.Flow.Workspace.Root = renderedRoot

	workRoot := renderedRoot
	if workRoot == "" {
		workRoot = sett.WorkRoot
	}

	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	flowID := fs.Flow.ID

	logger := opts.Logger
	if logger == nil {
		logger = observer.SetupLogger(sett)
	}
	logger = logger.With("flow_id", flowID, "run_id", runID)

	connReg := opts.Connectors
	if connReg == nil {
		connReg = resources.NewConnectorRegistry()
		resources.RegisterBuiltins(connReg)
	}
	stepReg := opts.Steps
	if stepReg == nil {
		stepReg = steps.NewRegistry()
	}

	statePath := fs.Flow.State.Path
	if statePath == "" {
		statePath = sett.StateRoot + "/" + flowID + ".sqlite"
	}
	st, err := state.Open(statePath)
	if err != nil {
		return nil, fmt.Errorf("runner: open state store: %w", err)
	}
	defer st.Close()

	resourceOrder := make([]string, 0, len(fs.Resources))
	for name := range fs.Resources {
		resourceOrder = append(resourceOrder, name)
	}
	sort.Strings(resourceOrder)

	builder := resources.NewBuilder(connReg, opts.SecretsHook, sett.ConnectorCacheDefault)
	conns, err := builder.BuildAll(fs.Resources, resourceOrder, opts.Profiles, env)
	if err != nil {
		return nil, fmt.Errorf("runner: build resources: %w", err)
	}
	defer resources.CloseAll(conns)

	rc := &runctx.RunContext{
		FlowID:     flowID,
		RunID:      runID,
		Env:        env,
		Connectors: conns,
		State:      st,
		WorkRoot:   workRoot,
		Settings:   sett,
		Log:        logger,
	}

	logCtx := observer.WithLogger(ctx, logger)
	obs := observer.New(logCtx, flowID, runID)
	obs.RunStart(flowID)

	statuses := make(map[string]string, len(fs.Jobs))
	jobsView := make(map[string]any, len(fs.Jobs))
	counts := make(map[string]int)
	durations := make(map[string]time.Duration, len(fs.Jobs))

	for i := range fs.Jobs {
		job := &fs.Jobs[i]
		if opts.OnlyJobID != "" && job.ID != opts.OnlyJobID {
			continue
		}

		jobStart := time.Now()
		jobStatus, err := runJob(ctx, fs, rc, stepReg, obs, job, statuses, jobsView)
		if err != nil {
			return nil, err
		}
		statuses[job.ID] = jobStatus
		counts[jobStatus]++
		durations[job.ID] = time.Since(jobStart)
	}

	obs.RunEnd(counts)

	return &Summary{
		FlowID:       flowID,
		RunID:        runID,
		JobStatuses:  statuses,
		StatusCounts: counts,
		Durations:    durations,
		StartedAt:    startedAt,
		EndedAt:      time.Now(),
	}, nil
}
