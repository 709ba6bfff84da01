// Package config loads, normalizes, and validates reelpack configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// REELPACK_FFMPEG and XDG_CACHE_HOME. The Config type centralizes encoder
// choice, unpack output format, preview cache tuning, and working directories
// so the CLI can discover them in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, resolved encoder settings, and clear validation errors.
package config
