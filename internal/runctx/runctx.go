// Package runctx defines RunContext, the immutable per-run container built
// at run start and threaded into every step (spec.md §3). It is a separate
// package from internal/runner so that internal/steps can depend on the type
// without an import cycle back into the runner.
package runctx

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/aetherflow/aetherflow/internal/resources"
	"github.com/aetherflow/aetherflow/internal/settings"
	"github.com/aetherflow/aetherflow/internal/state"
)

// RunContext is immutable after construction; the runner owns it and all
// transient step outputs, the state store owns durable records, connectors
// own driver-level session state.
type RunContext struct {
	FlowID     string
	RunID      string
	Env        map[string]string
	Connectors map[string]resources.Connector
	State      *state.Store
	WorkRoot   string
	Settings   *settings.Settings
	Log        *slog.Logger
}

// JobDir is <work_root>/<flow_id>/<job_id>/<run_id>.
func (c *RunContext) JobDir(jobID string) string {
	return filepath.Join(c.WorkRoot, c.FlowID, jobID, c.RunID)
}

// ArtifactsDir is <work_root>/<flow_id>/<job_id>/<run_id>/artifacts.
func (c *RunContext) ArtifactsDir(jobID string) string {
	return filepath.Join(c.JobDir(jobID), "artifacts")
}

// StepArtifactsDir is <work_root>/<flow_id>/<job_id>/<run_id>/artifacts/<step_id>.
func (c *RunContext) StepArtifactsDir(jobID, stepID string) string {
	return filepath.Join(c.ArtifactsDir(jobID), stepID)
}

// ScratchDir is <work_root>/<flow_id>/<job_id>/<run_id>/scratch.
func (c *RunContext) ScratchDir(jobID string) string {
	return filepath.Join(c.JobDir(jobID), "scratch")
}

// ManifestsDir is <work_root>/<flow_id>/<job_id>/<run_id>/manifests.
func (c *RunContext) ManifestsDir(jobID string) string {
	return filepath.Join(c.JobDir(jobID), "manifests")
}

// Connector looks up a named resource's connector handle, typed via a caller-supplied cast.
func (c *RunContext) Connector(name string) (resources.Connector, error) {
	conn, ok := c.Connectors[name]
	if !ok {
		return nil, fmt.Errorf("runctx: no connector for resource %q", name)
	}
	return conn, nil
}

// Context carries a RunContext across the ctxKey defined here, so steps whose
// Run signature only takes a context.Context can still fetch it if needed.
type ctxKey int

const runCtxKey ctxKey = iota

func WithRunContext(ctx context.Context, rc *RunContext) context.Context {
	return context.WithValue(ctx, runCtxKey, rc)
}

func FromContext(ctx context.Context) (*RunContext, bool) {
	rc, ok := ctx.Value(runCtxKey).(*RunContext)
	return rc, ok
}
