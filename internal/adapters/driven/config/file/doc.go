// Package file provides the TOML configuration store.
//
// The store reads ~/.memquery/config.toml, exposes its tables as
// dot-notation keys ("sources.cognee.url") and can watch the file for
// edits so a running server picks up new ranking weights and source
// switches without a restart.
package file
