// Package logging assembles the structured slog loggers used across keeper
// stages.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and standardizes the attribute keys stages use (component, stage,
// run_id, row) so every line carries the same shape whether it lands on a
// terminal or in keeper.log. A no-op logger is provided for tests and wiring
// code that cannot fail.
package logging
