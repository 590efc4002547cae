// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the pool-wide readiness wait used by driver
// workers when no connection has data: epoll on Linux and a timed pause
// elsewhere. Readiness is level triggered, so any number of workers may wait
// on one reactor and then scan the scheduling pool.
package reactor

import "github.com/momentics/hioload-ofd/api"

// New constructs the platform readiness implementation.
func New() (api.Readiness, error) {
	return newReadiness()
}
