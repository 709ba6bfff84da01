// Package logging assembles structured slog loggers and formatting helpers used
// across reelpack.
//
// It owns the console and JSON handlers, tees records into the JSON log file
// under the configured log directory, and exposes context-aware helpers so
// pipeline code can tag log lines with operation IDs, categories, and stages.
// The package also provides a no-op logger for tests and wiring code that
// cannot fail.
package logging
