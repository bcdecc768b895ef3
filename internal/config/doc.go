// Package config loads, normalizes, and validates sheetmill configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the environment variables the
// historical conversion worker was driven by (DB_PATH, POLL_INTERVAL, and
// friends). The Config type centralizes every knob the daemon and CLI need,
// so the shared database location, artifact directories, and worker timing
// are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical journal modes, and clear validation errors.
package config
