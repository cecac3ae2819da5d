// Package catalog owns keeper's SQLite database: the append-only run
// registry and the persistent hash-group tables.
//
// One database file lives under the configured state directory. The schema
// is embedded and version-guarded; a version mismatch refuses to open
// rather than migrating silently, since the group table is the record of
// which archive copies are canonical.
package catalog
