// Package spec holds the typed document model for flow, profiles, and
// bundle-manifest documents, and the semantic validator that runs over them
// before any job executes.
package spec

// FlowSpec is the root entity of a flow document.
type FlowSpec struct {
	Version   int                     `yaml:"version"`
	Flow      FlowMetadata            `yaml:"flow"`
	Resources map[string]ResourceSpec `yaml:"resources"`
	Jobs      []JobSpec               `yaml:"jobs"`
}

// FlowMetadata is the `flow:` block of a flow document.
type FlowMetadata struct {
	ID          string        `yaml:"id"`
	Description string        `yaml:"description"`
	Workspace   WorkspaceSpec `yaml:"workspace"`
	State       StateSpec     `yaml:"state"`
	Locks       LocksSpec     `yaml:"locks"`
}

// WorkspaceSpec controls where per-run artifacts live and when they're cleaned up.
type WorkspaceSpec struct {
	Root           string         `yaml:"root"`
	CleanupPolicy  string         `yaml:"cleanup_policy"`
	Layout         map[string]any `yaml:"layout"`
}

// StateSpec points the runner at its durable backend.
type StateSpec struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// LocksSpec configures the default scope/ttl for lock-composition steps.
type LocksSpec struct {
	Scope      string `yaml:"scope"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

// ResourceSpec declares one named resource; (Kind, Driver) keys the connector registry.
type ResourceSpec struct {
	Kind    string         `yaml:"kind"`
	Driver  string         `yaml:"driver"`
	Profile string         `yaml:"profile"`
	Config  map[string]any `yaml:"config"`
	Options map[string]any `yaml:"options"`
	Decode  map[string]any `yaml:"decode"`
}

// ProfileSpec is overlaid onto a matching ResourceSpec before template expansion.
type ProfileSpec struct {
	Config  map[string]any `yaml:"config"`
	Options map[string]any `yaml:"options"`
	Decode  map[string]any `yaml:"decode"`
}

// ProfilesFileSpec is the top-level document loaded from AETHERFLOW_PROFILES_FILE/_JSON.
type ProfilesFileSpec map[string]ProfileSpec

// JobSpec is one ordered unit of dependency and gating.
type JobSpec struct {
	ID          string     `yaml:"id"`
	Description string     `yaml:"description"`
	DependsOn   []string   `yaml:"depends_on"`
	When        string     `yaml:"when"`
	Steps       []StepSpec `yaml:"steps"`
}

// StepSpec is one unit of work, dispatched through the step registry by Type.
type StepSpec struct {
	ID        string         `yaml:"id"`
	Type      string         `yaml:"type"`
	Inputs    map[string]any `yaml:"inputs"`
	Outputs   map[string]any `yaml:"outputs"`
	OnNoData  string         `yaml:"on_no_data"`
}

// BundleManifestSpec describes a synchronized, fingerprinted collection of
// flows/profiles/plugins/env files used to reproduce a run.
type BundleManifestSpec struct {
	Version    int             `yaml:"version"`
	Mode       string          `yaml:"mode"`
	Bundle     BundleSpec      `yaml:"bundle"`
	Paths      BundlePathsSpec `yaml:"paths"`
	ZipDrivers []string        `yaml:"zip_drivers"`
	EnvFiles   []EnvFileSpec   `yaml:"env_files"`
}

type BundleSpec struct {
	Source    BundleSourceSpec `yaml:"source"`
	Layout    BundleLayoutSpec `yaml:"layout"`
	EntryFlow string           `yaml:"entry_flow"`
}

type BundleSourceSpec struct {
	Type     string `yaml:"type"`
	Location string `yaml:"location"`
}

// BundleLayoutSpec names the three well-known paths within a synced bundle,
// per spec.md §6 ("bundle.layout = {flows, profiles, plugins}").
type BundleLayoutSpec struct {
	Flows    string `yaml:"flows"`
	Profiles string `yaml:"profiles"`
	Plugins  string `yaml:"plugins"`
}

type BundlePathsSpec struct {
	Plugins []string `yaml:"plugins"`
}

// EnvFileSpec describes one entry of an ordered env-file load list.
type EnvFileSpec struct {
	Type     string `yaml:"type"`
	Path     string `yaml:"path"`
	Optional bool   `yaml:"optional"`
	Prefix   string `yaml:"prefix"`
}

// Enumerated values accepted by the schema; referenced by the validator.
var (
	cleanupPolicies = map[string]bool{"on_success": true, "always": true, "never": true}
	lockScopes      = map[string]bool{"none": true, "job": true, "flow": true}
	onNoDataValues  = map[string]bool{"": true, "skip_job": true}
)
