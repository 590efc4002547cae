// File: driver/options.go
// Package driver defines functional options for the Driver.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package driver

import (
	"github.com/go-logr/logr"

	"github.com/momentics/hioload-ofd/api"
	"github.com/momentics/hioload-ofd/control"
	"github.com/momentics/hioload-ofd/internal/batching"
	"github.com/momentics/hioload-ofd/internal/datalog"
	"github.com/momentics/hioload-ofd/pool"
)

// Option customizes driver initialization.
type Option func(*Driver)

// WithWorkers sets the number of worker loops.
func WithWorkers(n int) Option {
	return func(d *Driver) {
		d.cfg.Workers = n
	}
}

// WithBatching overrides the adaptive batching constants.
func WithBatching(cfg batching.Config) Option {
	return func(d *Driver) {
		d.cfg.Batching = cfg
	}
}

// WithAllocator selects the allocation strategy for events, commands and
// buffers.
func WithAllocator(a pool.Allocator) Option {
	return func(d *Driver) {
		d.alloc = a
	}
}

// WithLogger sets the driver logger.
func WithLogger(log logr.Logger) Option {
	return func(d *Driver) {
		d.log = log
	}
}

// WithMetrics shares a metrics set, e.g. one already mounted on an admin server.
func WithMetrics(m *control.Metrics) Option {
	return func(d *Driver) {
		d.metrics = m
	}
}

// WithProbes registers the driver probes on dp.
func WithProbes(dp *control.DebugProbes) Option {
	return func(d *Driver) {
		d.probes = dp
	}
}

// WithDataLog replaces the diagnostic log built from the Config.
func WithDataLog(m *datalog.Manager) Option {
	return func(d *Driver) {
		d.datalog = m
	}
}

// WithReadiness replaces the platform readiness reactor.
func WithReadiness(r api.Readiness) Option {
	return func(d *Driver) {
		d.ready = r
	}
}

// WithFatalHandler replaces the handler invoked on scheduling pool
// corruption. The default logs, flushes and exits the process.
func WithFatalHandler(fn func(error)) Option {
	return func(d *Driver) {
		d.onFatal = fn
	}
}
