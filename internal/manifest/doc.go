// Package manifest owns the Crank.toml target declarations.
//
// Ownership boundary:
// - target name -> asset list + optional display metadata
//
// - manifest validation (tools.ConfigError)
//
// A missing manifest file is an empty manifest. The manifest is loaded once
// per invocation and is read-only afterwards.
package manifest
