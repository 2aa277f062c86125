// Package config loads, normalizes, and validates the TOML configuration that
// every component receives at construction.
//
// Configuration is resolved once at process start (explicit path flag, then
// ~/.config/slate/config.toml, then a project-local slate.toml) and decoded
// over Default() so partial files inherit defaults. Components never read the
// environment or the config file themselves; they take the values they need
// from the Config passed to their constructors.
package config
