// Package logging constructs the slog loggers used by the daemon and
// CLI, and standardizes the structured field keys shared across the
// pipeline.
package logging
