// Package config loads, normalizes, and validates keeper configuration.
//
// Configuration is TOML, resolved from --config, ~/.config/keeper/config.toml,
// or ./keeper.toml in that order. Every path field is tilde-expanded and made
// absolute during normalization so the rest of the codebase never handles
// relative or user-relative paths.
package config
