// Package cli implements the companion command-line tool for AetherFlow: a
// thin wrapper over internal/runner and internal/spec that does not import
// an HTTP client, since AetherFlow's caller surface is a direct function
// call (spec.md §6), not a REST API.
//
// Commands are organized by verb rather than resource, since AetherFlow has
// one resource (a flow document) and two actions on it:
//
//	validate  parse + semantically validate a flow document, exit 2 on failure
//	run       validate, then execute a flow once, resuming on a repeated run-id
//
// Output defaults to a human-readable summary; --json switches to
// machine-readable JSON on stdout, keeping diagnostic messages on stderr so
// `aetherflow run --json flow.yaml | jq .` composes cleanly.
package cli
