// Package config loads and validates driver configuration from YAML files
// with environment variable overrides.
package config
