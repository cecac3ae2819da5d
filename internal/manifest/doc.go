// Package manifest reads and writes the row manifests passed between
// pipeline stages.
//
// A manifest is a UTF-8 CSV file with one header row, stable column order,
// and newline-terminated records. Three schemas exist: the input manifest
// produced by discovery, the verification output manifest, and the sweep
// output manifest. Writers are append-safe so an interrupted stage can
// reopen its outputs and continue; the header is only written when the
// target file is new or empty.
//
// Manifest identity is a SHA-256 fingerprint of the file bytes. Resume
// state records the fingerprint so a stage can refuse to resume against a
// manifest that changed since the cursor was written.
package manifest
