// Package config loads, normalizes, and validates evenkeel configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes every knob the
// scan and watch commands need: library roots, the state document, worker and
// ffmpeg limits, and the watcher's readiness timing.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
