// Package cursor persists resume state for long-running pipeline stages.
//
// A state file records how far a stage progressed through its input
// manifest: the stage name, the input manifest fingerprint, the last
// processed offset, and running counts. The file is rewritten atomically
// after every processed row so a crash loses at most the in-flight row.
//
// Ownership is exclusive. Acquiring a cursor takes a flock on a sibling
// .lock file; a second invocation against the same state file fails fast
// with ErrConcurrentRun instead of interleaving writes. A fingerprint
// mismatch between the state file and the supplied manifest fails with
// ErrManifestDrift unless the caller explicitly starts fresh.
package cursor
