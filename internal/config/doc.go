// Package config loads, normalizes, and validates sieve configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes every knob the
// ingestion, matching and review commands need, so the signature store
// location, the canonical signature length and the matcher thresholds are
// discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors. Commands may override matcher
// knobs from flags; re-check those with ValidateMatching.
package config
