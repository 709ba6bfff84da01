// Package services defines shared utilities consumed by the pack, unpack, and
// preview pipelines.
//
// Key responsibilities:
//   - Context helpers that stamp operation IDs, categories, stage names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so callers can classify a
//     failure (external tool, validation, cancellation) with errors.Is.
//
// Use these helpers when wiring new pipeline logic so error handling and
// observability stay uniform across operations.
package services
