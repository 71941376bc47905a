// Package config loads, validates, and defaults the TOML configuration
// shared by the daemon, the agent loop, and the CLI.
package config
