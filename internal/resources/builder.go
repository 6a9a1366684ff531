// Package resources implements the Profile/Resource Builder of spec.md §4.4:
// overlay profiles onto resource definitions, resolve env-only templates,
// decode marked fields, and instantiate connectors.
package resources

import (
	"fmt"

	"github.com/aetherflow/aetherflow/internal/resolver"
	"github.com/aetherflow/aetherflow/internal/spec"
)

var envOnlyRoots = map[string]bool{"env": true}

// SecretsHook is the pair of hooks a deployment may register: ExpandEnv
// enriches the env snapshot before template rendering; Decode transforms a
// single resolved leaf value (e.g. to fetch a secret by reference).
// Grounded on spec.md §9's "Secrets hook = interface {decode, expand_env}".
type SecretsHook interface {
	ExpandEnv(env map[string]string) (map[string]string, error)
	Decode(value string) (string, error)
}

// Resolved is one fully-built resource: templates expanded, decode applied.
type Resolved struct {
	Kind    string
	Driver  string
	Config  map[string]any
	Options map[string]any
}

// ResolveResource runs one resource through the full pipeline: merge profile,
// expand env, render env-only templates, apply decode to standalone tokens.
// Mirrors original_source/resolution.py's resolve_resource.
func ResolveResource(r spec.ResourceSpec, profile *spec.ProfileSpec, env map[string]string, hook SecretsHook) (Resolved, error) {
	var config, options, decode map[string]any
	if profile != nil {
		// Profile config/options override the resource's own values. Decode
		// specs go through MergeDecode(profile, resource), where a leaf set on
		// both sides keeps the resource's value.
		config = DeepMerge(orEmpty(r.Config), orEmpty(profile.Config))
		options = DeepMerge(orEmpty(r.Options), orEmpty(profile.Options))
		decode = MergeDecode(orEmpty(profile.Decode), orEmpty(r.Decode))
	} else {
		config = orEmpty(r.Config)
		options = orEmpty(r.Options)
		decode = orEmpty(r.Decode)
	}

	envSnapshot := env
	if hook != nil {
		expanded, err := hook.ExpandEnv(copyEnv(env))
		if err != nil {
			return Resolved{}, fmt.Errorf("resources: expand_env hook failed: %w", err)
		}
		envSnapshot = expanded
	}

	root := map[string]any{"env": toAnyMap(envSnapshot)}

	rawConfig, rawOptions := config, options // capture pre-render for standalone-token decode checks

	renderedConfig, err := resolver.RenderValue(config, root, envOnlyRoots)
	if err != nil {
		return Resolved{}, fmt.Errorf("resources: render config: %w", err)
	}
	renderedOptions, err := resolver.RenderValue(options, root, envOnlyRoots)
	if err != nil {
		return Resolved{}, fmt.Errorf("resources: render options: %w", err)
	}
	finalConfig := renderedConfig.(map[string]any)
	finalOptions := renderedOptions.(map[string]any)

	if len(decode) > 0 {
		if hook == nil {
			// No decode hook configured: leave values unchanged, matching the
			// reference implementation's "log warning, return unchanged".
		} else {
			requests, err := CollectDecodeRequests(decode)
			if err != nil {
				return Resolved{}, fmt.Errorf("resources: invalid decode spec: %w", err)
			}
			rawRoot := map[string]any{"config": rawConfig, "options": rawOptions}
			finalRoot := map[string]any{"config": finalConfig, "options": finalOptions}
			for _, path := range requests {
				rawVal, _ := GetByPath(rawRoot, path)
				if rawStr, ok := rawVal.(string); ok {
					if containsTemplate(rawStr) && !resolver.IsStandaloneToken(rawStr) {
						return Resolved{}, fmt.Errorf("resources: decode-marked field %q is not a standalone template token", path)
					}
				}
				resolvedVal, ok := GetByPath(finalRoot, path)
				if !ok {
					continue
				}
				resolvedStr, ok := resolvedVal.(string)
				if !ok {
					continue
				}
				decoded, err := hook.Decode(resolvedStr)
				if err != nil {
					return Resolved{}, fmt.Errorf("resources: decode hook failed for %s: %w", path, err)
				}
				SetByPath(finalRoot, path, decoded)
			}
			finalConfig = finalRoot["config"].(map[string]any)
			finalOptions = finalRoot["options"].(map[string]any)
		}
	}

	return Resolved{Kind: r.Kind, Driver: r.Driver, Config: finalConfig, Options: finalOptions}, nil
}

func containsTemplate(s string) bool {
	for i := 0; i+1 < len(s); i++ {
		if s[i] == '{' && s[i+1] == '{' {
			return true
		}
	}
	return false
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func copyEnv(env map[string]string) map[string]string {
	out := make(map[string]string, len(env))
	for k, v := range env {
		out[k] = v
	}
	return out
}

func toAnyMap(env map[string]string) map[string]any {
	out := make(map[string]any, len(env))
	for k, v := range env {
		out[k] = v
	}
	return out
}
