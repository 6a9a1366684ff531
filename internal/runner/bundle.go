package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aetherflow/aetherflow/internal/bundle"
	"github.com/aetherflow/aetherflow/internal/settings"
	"github.com/aetherflow/aetherflow/internal/spec"
)

// BundleOptions configures a bundle-backed run, mirroring spec.md §6's
// caller surface: run_flow(flow, {run_id?, bundle_manifest?,
// allow_stale_bundle?}).
type BundleOptions struct {
	// ManifestDir resolves a relative bundle.source.location against the
	// manifest document's own directory.
	ManifestDir string
	// AllowStale falls back to the last successfully synced bundle when a
	// fresh sync fails.
	AllowStale bool
	// GitFetcher supplies the git source kind; unused for local/archive.
	GitFetcher bundle.Fetcher
}

// RunBundle syncs mf to a local active directory and then runs the flow
// named by bundle.entry_flow within it. The manifest's own env_files are
// appended after opts.EnvFiles, giving spec.md §6's "last-wins: process
// env → external env-file list → manifest env-file list" ordering: buildEnv
// takes the process snapshot as the base layer, caller-supplied EnvFiles
// override it, and the manifest's env files override both.
func RunBundle(ctx context.Context, mf *spec.BundleManifestSpec, bOpts BundleOptions, opts Options) (*Summary, error) {
	sett := opts.Settings
	if sett == nil {
		sett = settings.Load(settings.Snapshot())
	}

	result, err := bundle.Sync(mf, bundle.Options{
		WorkRoot:    sett.WorkRoot,
		ManifestDir: bOpts.ManifestDir,
		GitFetcher:  bOpts.GitFetcher,
		AllowStale:  bOpts.AllowStale,
	})
	if err != nil {
		return nil, fmt.Errorf("runner: sync bundle: %w", err)
	}

	if mf.Bundle.EntryFlow == "" {
		return nil, fmt.Errorf("runner: bundle manifest has no bundle.entry_flow")
	}
	flowPath := filepath.Join(result.ActiveDir, filepath.FromSlash(mf.Bundle.EntryFlow))
	data, err := os.ReadFile(flowPath)
	if err != nil {
		return nil, fmt.Errorf("runner: read synced entry_flow: %w", err)
	}

	runOpts := opts
	runOpts.Settings = sett
	if runOpts.Profiles == nil && mf.Bundle.Layout.Profiles != "" {
		profilesPath := filepath.Join(result.ActiveDir, filepath.FromSlash(mf.Bundle.Layout.Profiles))
		if raw, err := os.ReadFile(profilesPath); err == nil {
			profiles, err := spec.ParseProfiles(raw)
			if err != nil {
				return nil, fmt.Errorf("runner: parse bundle profiles: %w", err)
			}
			runOpts.Profiles = profiles
		}
	}
	runOpts.EnvFiles = append(append([]spec.EnvFileSpec{}, opts.EnvFiles...), mf.EnvFiles...)

	return Run(ctx, data, runOpts)
}
