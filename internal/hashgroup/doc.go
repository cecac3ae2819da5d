// Package hashgroup maintains the mapping from content digests to the set
// of files sharing that content, and selects one canonical file per group.
//
// The group table is modeled as an explicit Store interface so the resolver
// carries no ambient global state: the production store is SQLite-backed
// (internal/catalog) and tests swap in the in-memory implementation here.
// Canonical selection is additive and permanent: once a group has a
// canonical designee the resolver never reassigns it; reassignment is a
// manual operator action outside automated runs.
package hashgroup
