// Package logging assembles structured slog loggers and formatting helpers used
// across sieve commands.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes attribute helpers so per-file warnings always carry the
// path, the underlying error, and a hint the operator can act on. The package
// also provides a no-op logger for tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits records with the same shape.
package logging
