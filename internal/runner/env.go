package runner

import (
	"fmt"

	"github.com/aetherflow/aetherflow/internal/envfiles"
	"github.com/aetherflow/aetherflow/internal/settings"
	"github.com/aetherflow/aetherflow/internal/spec"
)

// buildEnv freezes the process environment, then layers any caller-supplied
// env files on top (last-wins), per spec.md §4.5 step 1 and §6's env-file
// spec. It never mutates os.Environ itself.
func buildEnv(base map[string]string, envFiles []spec.EnvFileSpec, baseDir string) (map[string]string, error) {
	if base == nil {
		base = settings.Snapshot()
	}
	if len(envFiles) == 0 {
		return base, nil
	}
	merged, err := envfiles.Load(base, envFiles, baseDir)
	if err != nil {
		return nil, fmt.Errorf("runner: load env files: %w", err)
	}
	return merged, nil
}
