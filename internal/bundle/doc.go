// Package bundle implements bundle synchronization (spec.md §6 "Bundle
// manifest"): fetching a fingerprinted collection of flows/profiles/
// plugins from a source into a local, atomically-swapped "active"
// directory, so a run can be reproduced byte-for-byte from a manifest.
//
// Three source kinds are named by the manifest schema: local, git, and
// archive. local and archive are implemented directly against the
// filesystem; git is implemented against a small Fetcher interface since a
// concrete git client is a named out-of-core driver (spec.md §1's
// Non-goals).
package bundle
