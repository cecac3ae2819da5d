// Package hasher computes streaming content digests for archive files.
//
// Digests are SHA-256 over the full file content, read in bounded chunks so
// memory use is independent of file size. Identical bytes always produce
// identical digests regardless of path or metadata, which is what makes the
// digest usable as a content address.
package hasher
