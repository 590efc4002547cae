// Package api
// Author: momentics
//
// Live debug introspection contract.

package api

// Debug exposes runtime introspection.
type Debug interface {
	// DumpState evaluates every registered probe.
	DumpState() map[string]any

	// RegisterProbe adds or replaces a named probe.
	RegisterProbe(name string, fn func() any)
}
