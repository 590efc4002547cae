// File: driver/config.go
// Package driver
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package driver

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/momentics/hioload-ofd/internal/batching"
	"github.com/momentics/hioload-ofd/internal/concurrency"
	"github.com/momentics/hioload-ofd/internal/datalog"
)

const (
	// DefaultListenAddr is the well-known OpenFlow 1.0 controller port.
	DefaultListenAddr = ":6633"
	// DefaultBufferSize is the per-worker read buffer. A read that fills it
	// marks the worker congested.
	DefaultBufferSize = 1024
	// DefaultMaxWriteAttempts bounds non-progress write retries.
	DefaultMaxWriteAttempts = 64
)

// Config holds all driver configuration parameters.
type Config struct {
	ListenAddr       string        // switch-facing TCP bind address; empty disables the listener
	Workers          int           // number of worker loops
	BufferSize       int           // per-worker read buffer size
	NoDelay          bool          // disable Nagle on accepted connections
	BatchOutput      bool          // one write per partition instead of one per command
	Partitioned      bool          // post packet-in and flush with the worker id as target hint
	HelloOnAccept    bool          // send the controller hello as soon as a switch connects
	PinWorkers       bool          // lock each worker to an OS thread pinned to one CPU
	MaxWriteAttempts int           // non-progress write retries before a send is abandoned
	WriteBackoffMin  time.Duration // first retry pause
	WriteBackoffMax  time.Duration // retry pause ceiling
	ReadinessTimeout time.Duration // bound on a pool-wide readiness wait
	DataLogDir       string        // directory for diagnostic dumps; empty keeps them in memory
	DataLogCapacity  int           // diagnostic ring size
	Batching         batching.Config
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:       DefaultListenAddr,
		Workers:          concurrency.NumCPUs(),
		BufferSize:       DefaultBufferSize,
		NoDelay:          true,
		BatchOutput:      true,
		MaxWriteAttempts: DefaultMaxWriteAttempts,
		WriteBackoffMin:  concurrency.DefaultMinBackoff,
		WriteBackoffMax:  concurrency.DefaultMaxBackoff,
		ReadinessTimeout: time.Millisecond,
		DataLogCapacity:  datalog.DefaultCapacity,
		Batching:         batching.DefaultConfig(),
	}
}

// AddFlags binds the Config fields to command-line flags on the given FlagSet.
func (c *Config) AddFlags(fs *pflag.FlagSet) {
	if fs == nil {
		fs = pflag.CommandLine
	}
	fs.StringVar(&c.ListenAddr, "listen", c.ListenAddr,
		"TCP address switches connect to.")
	fs.IntVar(&c.Workers, "workers", c.Workers,
		"Number of worker loops polling switch connections.")
	fs.IntVar(&c.BufferSize, "read-buffer", c.BufferSize,
		"Per-worker read buffer size in bytes.")
	fs.BoolVar(&c.NoDelay, "tcp-nodelay", c.NoDelay,
		"Disable Nagle's algorithm on switch connections.")
	fs.BoolVar(&c.BatchOutput, "batch-output", c.BatchOutput,
		"Serialize a committed batch into one write instead of one write per command.")
	fs.BoolVar(&c.Partitioned, "partitioned", c.Partitioned,
		"Post packet-in events to the worker that read them.")
	fs.BoolVar(&c.HelloOnAccept, "hello-on-accept", c.HelloOnAccept,
		"Send the controller hello as soon as a switch connects.")
	fs.BoolVar(&c.PinWorkers, "pin-workers", c.PinWorkers,
		"Pin each worker loop to one CPU.")
	fs.IntVar(&c.MaxWriteAttempts, "max-write-attempts", c.MaxWriteAttempts,
		"Write retries without progress before a send is abandoned.")
	fs.DurationVar(&c.WriteBackoffMin, "write-backoff-min", c.WriteBackoffMin,
		"First pause between write retries.")
	fs.DurationVar(&c.WriteBackoffMax, "write-backoff-max", c.WriteBackoffMax,
		"Longest pause between write retries.")
	fs.DurationVar(&c.ReadinessTimeout, "readiness-timeout", c.ReadinessTimeout,
		"Longest an idle worker waits for a readable connection.")
	fs.StringVar(&c.DataLogDir, "datalog-dir", c.DataLogDir,
		"Directory receiving diagnostic log dumps. Empty disables dumps.")
	fs.IntVar(&c.DataLogCapacity, "datalog-capacity", c.DataLogCapacity,
		"Number of diagnostic records kept in memory.")
	fs.IntVar(&c.Batching.Step, "batch-step", c.Batching.Step,
		"Quantum of the adaptive batch target.")
	fs.IntVar(&c.Batching.MaxSteps, "batch-max-steps", c.Batching.MaxSteps,
		"Upper bound of the batch target in steps.")
	fs.IntVar(&c.Batching.HistoryWeight, "batch-history-weight", c.Batching.HistoryWeight,
		"Percentage weight of remembered throughput when scoring a batch.")
	fs.DurationVar(&c.Batching.MaxDelay, "batch-max-delay", c.Batching.MaxDelay,
		"Batch duration beyond which the target shrinks.")
	fs.IntVar(&c.Batching.Initial, "batch-initial", c.Batching.Initial,
		"Initial batch target.")
}

// Validate checks the Config for invalid values.
func (c *Config) Validate() error {
	switch {
	case c.Workers <= 0:
		return fmt.Errorf("invalid value %d for workers: must be positive", c.Workers)
	case c.BufferSize < 64:
		return fmt.Errorf("invalid value %d for read buffer: must be at least 64", c.BufferSize)
	case c.MaxWriteAttempts <= 0:
		return fmt.Errorf("invalid value %d for max write attempts: must be positive", c.MaxWriteAttempts)
	case c.WriteBackoffMin < 0 || c.WriteBackoffMax < c.WriteBackoffMin:
		return fmt.Errorf("invalid write backoff [%s, %s]", c.WriteBackoffMin, c.WriteBackoffMax)
	case c.ReadinessTimeout < 0:
		return fmt.Errorf("invalid value %s for readiness timeout: must not be negative", c.ReadinessTimeout)
	case c.DataLogCapacity <= 0:
		return fmt.Errorf("invalid value %d for datalog capacity: must be positive", c.DataLogCapacity)
	}
	if err := c.Batching.Validate(); err != nil {
		return err
	}
	return nil
}
