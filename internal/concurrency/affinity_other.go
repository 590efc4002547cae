//go:build !linux

// File: internal/concurrency/affinity_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

// Thread affinity is not exposed to pure Go on this platform; the thread lock
// alone is applied.
func platformPin(int) error { return nil }
