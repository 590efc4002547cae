// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics, debug introspection and the HTTP admin surface of the driver.
//
// Provides:
//   - Prometheus collectors on a private registry (frames, drops, commits, sessions)
//   - Named debug probes rendered by /debug/state
//   - AdminServer serving the driver page, /metrics and pprof
package control
