// Package tools provides reusable host helpers shared by the build and deploy modules.
//
// Ownership boundary:
// - command execution helpers
//
// - host filesystem primitives (exists, copy file, copy tree)
//
// - tool invocation, filesystem and configuration error taxonomy
//
// Nothing in this package knows about bundles, targets, or devices.
package tools
