// Package settings replaces ambient module-level state with an explicit
// value object built once from an environment snapshot, per spec.md §9
// ("Global settings and secrets hooks").
package settings

import (
	"os"
	"strconv"
	"strings"
)

// Settings is passed explicitly into the runner; a Settings value is built
// once by Load and holds no reference to process-global state.
type Settings struct {
	WorkRoot              string
	StateRoot             string
	Mode                  string
	LogFormat             string
	LogLevel              string
	StrictTemplates       bool
	ValidateEnvStrict      bool
	ConnectorCacheDefault string
	SecretsModule         string
	SecretsPath           string
}

// Snapshot freezes the process environment into a map without mutating it,
// per §4.5 step 1 ("Do not mutate the process environment").
func Snapshot() map[string]string {
	out := map[string]string{}
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			out[kv[:i]] = kv[i+1:]
		}
	}
	return out
}

// Load builds a Settings value from an env snapshot (normally settings.Snapshot(),
// layered with env-file/bundle overrides per §4.5).
func Load(env map[string]string) *Settings {
	return &Settings{
		WorkRoot:              getOr(env, "AETHERFLOW_WORK_ROOT", "/tmp/work"),
		StateRoot:             getOr(env, "AETHERFLOW_STATE_ROOT", "/tmp/state"),
		Mode:                  getOr(env, "AETHERFLOW_MODE", "internal_fast"),
		LogFormat:             getOr(env, "AETHERFLOW_LOG_FORMAT", "text"),
		LogLevel:              getOr(env, "AETHERFLOW_LOG_LEVEL", "info"),
		StrictTemplates:       getBool(env, "AETHERFLOW_STRICT_TEMPLATES", true),
		ValidateEnvStrict:     getBool(env, "AETHERFLOW_VALIDATE_ENV_STRICT", false),
		ConnectorCacheDefault: getOr(env, "AETHERFLOW_CONNECTOR_CACHE_DEFAULT", "run"),
		SecretsModule:         env["AETHERFLOW_SECRETS_MODULE"],
		SecretsPath:           env["AETHERFLOW_SECRETS_PATH"],
	}
}

func getOr(env map[string]string, key, def string) string {
	if v, ok := env[key]; ok && v != "" {
		return v
	}
	return def
}

func getBool(env map[string]string, key string, def bool) bool {
	v, ok := env[key]
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
