package spec

import (
	"fmt"

	"github.com/aetherflow/aetherflow/internal/resolver"
)

// scanEnvStrict implements §4.3's strict env-validation mode: every `env.X`
// reference in a step's inputs must resolve against the known env snapshot
// at validation time, rather than deferring to a runtime missing-key error.
func scanEnvStrict(inputs map[string]any, env map[string]string) error {
	for _, path := range resolver.ExtractEnvPaths(inputs) {
		key := path
		if len(path) > 4 {
			key = path[4:] // strip "env."
		}
		if _, ok := env[key]; !ok {
			return fmt.Errorf("unresolved environment reference in strict mode: %s", path)
		}
	}
	return nil
}
