// Package pipeline defines the error taxonomy shared by the archive
// pipeline stages.
//
// Errors fall into two severities. Row-level errors (unreadable files,
// rows outside their required precondition status) mark the affected
// manifest row as errored and let the batch continue. Stage-level errors
// (manifest drift, run-id mismatch, a concurrently held state file)
// abort before any filesystem mutation. Stages tag failures with the
// sentinel errors here so callers and the CLI can classify them without
// string matching.
package pipeline
