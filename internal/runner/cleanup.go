package runner

import (
	"fmt"
	"os"

	"github.com/aetherflow/aetherflow/internal/runctx"
	"github.com/aetherflow/aetherflow/internal/spec"
)

// applyCleanupPolicy removes per-job working directories per
// flow.workspace.cleanup_policy. An empty policy is treated as "never" — the
// conservative choice, since silently deleting artifacts the flow author
// never asked to delete is the worse failure mode. The explicitly resolved
// open question ("cleanup-on-failure under on_success leaves artifacts") is
// enforced by the !succeeded guard below.
func applyCleanupPolicy(fs *spec.FlowSpec, rc *runctx.RunContext, jobIDs []string, succeeded bool) []error {
	policy := fs.Flow.Workspace.CleanupPolicy
	if policy == "" {
		policy = "never"
	}
	if policy == "never" {
		return nil
	}
	if policy == "on_success" && !succeeded {
		return nil
	}

	var errs []error
	for _, jobID := range jobIDs {
		dir := rc.JobDir(jobID)
		if err := os.RemoveAll(dir); err != nil {
			errs = append(errs, fmt.Errorf("cleanup %s: %w", dir, err))
		}
	}
	return errs
}
