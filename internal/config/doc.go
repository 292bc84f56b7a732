// Package config loads, normalizes, and validates beatset configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// BEATSET_DATA_DIR and BEATSET_USE_CACHE. The Config type is read-only once
// loaded: every pipeline component receives the same pointer and none of them
// mutate it mid-run.
//
// Always obtain settings through this package so downstream code receives
// expanded paths, a known cache backend, and clear validation errors.
package config
