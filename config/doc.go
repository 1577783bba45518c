// Package config loads and validates the gateway configuration from a yaml
// file, environment variables, and defaults, in that order of precedence.
//
// Durations are configured as strings ("30s", "1m") and parsed where they
// are consumed; validation rejects unparsable values at startup.
package config
