// Package file persists configuration to a TOML file on the local filesystem.
package file
