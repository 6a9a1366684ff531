package bundle

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aetherflow/aetherflow/internal/spec"
)

// Options configures one Sync call.
type Options struct {
	// WorkRoot is the root directory under which bundles/<id>/{active,cache,
	// fingerprints} is maintained, per spec.md's AETHERFLOW_WORK_ROOT.
	WorkRoot string
	// ManifestDir resolves a relative local source.location against the
	// manifest file's own directory, matching the original implementation's
	// "base_path relative to manifest" behavior.
	ManifestDir string
	// GitFetcher supplies the git source kind; required only when
	// bundle.source.type == "git".
	GitFetcher Fetcher
	// AllowStale falls back to the last successfully synced active
	// directory when a fresh sync fails, instead of propagating the error.
	AllowStale bool
}

// Result reports what Sync did.
type Result struct {
	BundleID        string
	ActiveDir       string
	CacheDir        string
	FingerprintsDir string
	Fingerprint     string
	Changed         bool
	FetchedFiles    []string
}

// Status reports the local sync state for a manifest without fetching.
type Status struct {
	BundleID    string
	ActiveDir   string
	Fingerprint string
	HasActive   bool
}

func bundleDirs(workRoot, bundleID string) (bundleRoot, active, cache, fingerprints string) {
	bundleRoot = filepath.Join(workRoot, "bundles", bundleID)
	return bundleRoot,
		filepath.Join(bundleRoot, "active"),
		filepath.Join(bundleRoot, "cache"),
		filepath.Join(bundleRoot, "fingerprints")
}

// bundleID names the on-disk subdirectory a manifest syncs into. spec.md
// §6's bundle.* schema has no explicit id field, so every manifest shares
// one "default" bundle namespace under its work root; callers that sync
// more than one manifest from the same work root should use distinct
// WorkRoot values.
func bundleID(mf *spec.BundleManifestSpec) string {
	return "default"
}

// StatusOf inspects the local on-disk state for mf without touching its
// source.
func StatusOf(mf *spec.BundleManifestSpec, opts Options) (*Status, error) {
	id := bundleID(mf)
	_, active, _, fpDir := bundleDirs(opts.WorkRoot, id)

	fp, err := loadLatestFingerprint(fpDir)
	if err != nil {
		return nil, err
	}
	_, statErr := os.Stat(active)
	return &Status{
		BundleID:    id,
		ActiveDir:   active,
		Fingerprint: fp,
		HasActive:   statErr == nil,
	}, nil
}

// Sync materializes mf's source into a local active directory. It reads the
// source and computes its fingerprint on every call; when the fingerprint
// matches the last successful sync and the active directory exists, it
// leaves the active directory and snapshot as they are (Changed=false).
func Sync(mf *spec.BundleManifestSpec, opts Options) (*Result, error) {
	now := time.Now()
	id := bundleID(mf)
	bundleRoot, activeDir, cacheDir, fpDir := bundleDirs(opts.WorkRoot, id)

	for _, dir := range []string{bundleRoot, cacheDir, fpDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("bundle: mkdir %s: %w", dir, err)
		}
	}

	src, cleanup, err := openSource(mf, bundleRoot, opts)
	if err != nil {
		return handleSyncError(err, id, activeDir, cacheDir, fpDir, opts)
	}
	defer cleanup()

	metas, err := src.ListFiles()
	if err != nil {
		return handleSyncError(err, id, activeDir, cacheDir, fpDir, opts)
	}

	oldFP, err := loadLatestFingerprint(fpDir)
	if err != nil {
		return handleSyncError(err, id, activeDir, cacheDir, fpDir, opts)
	}

	records := make([]fileRecord, 0, len(metas))
	fetched := make([]string, 0)
	stagedDir, err := os.MkdirTemp(bundleRoot, "staged-")
	if err != nil {
		return handleSyncError(err, id, activeDir, cacheDir, fpDir, opts)
	}
	defer os.RemoveAll(stagedDir)

	for _, m := range metas {
		data, err := src.ReadFile(m.RelPath)
		if err != nil {
			return handleSyncError(err, id, activeDir, cacheDir, fpDir, opts)
		}
		sha := sha256Hex(data)

		blobPath := filepath.Join(cacheDir, sha)
		if _, err := os.Stat(blobPath); os.IsNotExist(err) {
			if err := os.WriteFile(blobPath, data, 0o644); err != nil {
				return handleSyncError(err, id, activeDir, cacheDir, fpDir, opts)
			}
			fetched = append(fetched, m.RelPath)
		}

		dest := filepath.Join(stagedDir, filepath.FromSlash(m.RelPath))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return handleSyncError(err, id, activeDir, cacheDir, fpDir, opts)
		}
		if err := os.WriteFile(dest, data, 0o644); err != nil {
			return handleSyncError(err, id, activeDir, cacheDir, fpDir, opts)
		}

		records = append(records, fileRecord{Path: m.RelPath, SHA256: sha, Size: m.Size, ModTime: m.ModTime})
	}

	newFP := computeFingerprint(records)

	if newFP == oldFP {
		if _, err := os.Stat(activeDir); err == nil {
			return &Result{
				BundleID: id, ActiveDir: activeDir, CacheDir: cacheDir,
				FingerprintsDir: fpDir, Fingerprint: newFP, Changed: false,
			}, nil
		}
	}

	entry := mf.Bundle.EntryFlow
	if entry != "" {
		if _, err := os.Stat(filepath.Join(stagedDir, filepath.FromSlash(entry))); err != nil {
			return handleSyncError(fmt.Errorf("%w: %s", ErrEntryFlowMissing, entry), id, activeDir, cacheDir, fpDir, opts)
		}
	}

	if err := atomicReplaceDir(stagedDir, activeDir); err != nil {
		return handleSyncError(err, id, activeDir, cacheDir, fpDir, opts)
	}

	if err := writeSnapshot(fpDir, id, newFP, records, now); err != nil {
		return handleSyncError(err, id, activeDir, cacheDir, fpDir, opts)
	}

	return &Result{
		BundleID: id, ActiveDir: activeDir, CacheDir: cacheDir,
		FingerprintsDir: fpDir, Fingerprint: newFP, Changed: true,
		FetchedFiles: fetched,
	}, nil
}

// handleSyncError falls back to the last-synced active directory when
// AllowStale is set, matching the original implementation's
// "allow_stale" contract for a remote source that has become unreachable.
func handleSyncError(cause error, id, activeDir, cacheDir, fpDir string, opts Options) (*Result, error) {
	if opts.AllowStale {
		if _, statErr := os.Stat(activeDir); statErr == nil {
			oldFP, _ := loadLatestFingerprint(fpDir)
			return &Result{
				BundleID: id, ActiveDir: activeDir, CacheDir: cacheDir,
				FingerprintsDir: fpDir, Fingerprint: oldFP, Changed: false,
			}, nil
		}
	}
	return nil, cause
}

func openSource(mf *spec.BundleManifestSpec, bundleRoot string, opts Options) (Source, func(), error) {
	noop := func() {}
	switch mf.Bundle.Source.Type {
	case "local", "":
		loc := mf.Bundle.Source.Location
		if loc != "" && !filepath.IsAbs(loc) && opts.ManifestDir != "" {
			loc = filepath.Join(opts.ManifestDir, loc)
		}
		return newLocalSource(loc), noop, nil
	case "archive":
		loc := mf.Bundle.Source.Location
		if loc != "" && !filepath.IsAbs(loc) && opts.ManifestDir != "" {
			loc = filepath.Join(opts.ManifestDir, loc)
		}
		src, err := newArchiveSource(loc)
		if err != nil {
			return nil, noop, err
		}
		return src, func() { src.Close() }, nil
	case "git":
		checkout := filepath.Join(bundleRoot, "git-checkout")
		src, err := newGitSource(opts.GitFetcher, mf.Bundle.Source.Location, checkout)
		if err != nil {
			return nil, noop, err
		}
		return src, noop, nil
	default:
		return nil, noop, fmt.Errorf("%w: %s", ErrUnsupportedSource, mf.Bundle.Source.Type)
	}
}

// atomicReplaceDir swaps dst for src, keeping the previous dst around just
// long enough to be removed after the rename succeeds, so a crash mid-swap
// never leaves dst half-written.
func atomicReplaceDir(src, dst string) error {
	if _, err := os.Stat(dst); err == nil {
		old := dst + ".old"
		os.RemoveAll(old)
		if err := os.Rename(dst, old); err != nil {
			return fmt.Errorf("bundle: move old active dir: %w", err)
		}
		defer os.RemoveAll(old)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("bundle: activate synced dir: %w", err)
	}
	return nil
}
