// Package config loads, validates, and defaults the TOML configuration
// for the scribe daemon and CLI.
package config
