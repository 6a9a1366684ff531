package bundle

import "errors"

var (
	// ErrUnsupportedSource is returned when a manifest names a
	// bundle.source.type outside {local, git, archive}.
	ErrUnsupportedSource = errors.New("bundle: unsupported source type")

	// ErrEntryFlowMissing is returned when a synced bundle does not contain
	// the file named by bundle.entry_flow.
	ErrEntryFlowMissing = errors.New("bundle: entry_flow not found in synced bundle")

	// ErrNoFetcher is returned when source.type is git but no Fetcher was
	// supplied to Sync.
	ErrNoFetcher = errors.New("bundle: git source requires a Fetcher")
)
