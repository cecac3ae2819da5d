// Package main hosts the keeper CLI entrypoint and command graph.
//
// The Cobra-based command tree drives the three archive lifecycle stages
// (verify, resolve, sweep) plus inspection commands for the run registry
// and hash-group table, and configuration scaffolding. It centralizes
// configuration resolution and structured logging setup so subcommands can
// focus on flags and output.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
