// File: driver/driver.go
// Package driver is the switch-facing OpenFlow driver: it accepts switch
// connections, reassembles and dispatches their messages on a fixed set of
// worker loops, posts application events upstream and writes committed
// commands back.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package driver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/momentics/hioload-ofd/api"
	"github.com/momentics/hioload-ofd/control"
	"github.com/momentics/hioload-ofd/event"
	"github.com/momentics/hioload-ofd/internal/concurrency"
	"github.com/momentics/hioload-ofd/internal/datalog"
	"github.com/momentics/hioload-ofd/internal/logging"
	"github.com/momentics/hioload-ofd/internal/session"
	"github.com/momentics/hioload-ofd/pool"
	"github.com/momentics/hioload-ofd/protocol"
	"github.com/momentics/hioload-ofd/reactor"
	"github.com/momentics/hioload-ofd/transport"
)

var ErrAlreadyRunning = errors.New("driver already running")

// Driver owns the switch sessions and the worker loops serving them.
type Driver struct {
	cfg     *Config
	sink    event.Sink
	alloc   pool.Allocator
	log     logr.Logger
	metrics *control.Metrics
	probes  *control.DebugProbes
	datalog *datalog.Manager
	ready   api.Readiness
	onFatal func(error)

	registry *session.Registry
	started  time.Time
	xid      atomic.Uint32

	committed atomic.Uint64

	listener  atomic.Pointer[transport.Listener]
	cancel    atomic.Pointer[context.CancelFunc]
	running   atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// New builds a driver posting inbound events to sink. cfg is copied; a nil
// cfg selects DefaultConfig.
func New(cfg *Config, sink event.Sink, opts ...Option) (*Driver, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := *cfg
	if sink == nil {
		sink = event.Discard
	}
	d := &Driver{
		cfg:     &c,
		sink:    sink,
		alloc:   pool.HeapAllocator{},
		log:     logr.Discard(),
		started: time.Now(),
	}
	for _, o := range opts {
		o(d)
	}
	if err := d.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("driver config: %w", err)
	}
	d.log = d.log.WithName("driver")
	if d.metrics == nil {
		d.metrics = control.NewMetrics()
	}
	if d.probes == nil {
		d.probes = control.NewDebugProbes()
	}
	if d.datalog == nil {
		d.datalog = datalog.New(d.cfg.DataLogCapacity, d.cfg.DataLogDir, d.log)
	}
	if d.onFatal == nil {
		d.onFatal = func(err error) {
			logging.Fatal(d.log, err, "scheduling pool corrupted")
		}
	}
	if d.ready == nil {
		r, err := reactor.New()
		if err != nil {
			return nil, fmt.Errorf("readiness reactor: %w", err)
		}
		d.ready = r
	}
	d.registry = session.NewRegistry(d.fatal)
	d.registerProbes()
	return d, nil
}

// fatal handles an unrecoverable scheduling invariant violation.
func (d *Driver) fatal(err error) {
	if _, derr := d.datalog.Dump(); derr != nil {
		d.log.Error(derr, "datalog dump before fatal exit")
	}
	d.onFatal(err)
}

func (d *Driver) registerProbes() {
	d.probes.RegisterProbe("driver.sessions", func() any { return d.registry.Len() })
	d.probes.RegisterProbe("driver.switches", func() any { return d.registry.Bound() })
	d.probes.RegisterProbe("driver.committed", func() any { return d.committed.Load() })
	d.probes.RegisterProbe("driver.uptime", func() any { return time.Since(d.started).String() })
	d.probes.RegisterProbe("driver.datalog", func() any { return d.datalog.Len() })
	d.probes.RegisterProbe("driver.allocator.pooled", func() any { return d.alloc.Pooled() })
	if p, ok := d.alloc.(*pool.PooledAllocator); ok {
		d.probes.RegisterProbe("driver.allocator.stats", func() any { return p.Stats() })
	}
}

// Config returns the effective configuration.
func (d *Driver) Config() Config { return *d.cfg }

// Allocator returns the allocator events are drawn from. Consumers free
// posted PacketIn events and build commands with it.
func (d *Driver) Allocator() pool.Allocator { return d.alloc }

// Metrics returns the driver collectors.
func (d *Driver) Metrics() *control.Metrics { return d.metrics }

// Probes returns the debug probes the driver registered on.
func (d *Driver) Probes() *control.DebugProbes { return d.probes }

// DataLog returns the diagnostic log.
func (d *Driver) DataLog() *datalog.Manager { return d.datalog }

// Addr returns the listener address once Run has bound it.
func (d *Driver) Addr() net.Addr {
	if ln := d.listener.Load(); ln != nil {
		return ln.Addr()
	}
	return nil
}

// Run binds the listener (unless ListenAddr is empty), starts the worker
// loops and blocks until ctx is cancelled, Close is called or accepting
// fails. An accept failure is returned; cancellation returns nil.
func (d *Driver) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	d.cancel.Store(&cancel)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	if d.cfg.ListenAddr != "" {
		ln, err := transport.Listen(transport.ListenerConfig{Addr: d.cfg.ListenAddr, NoDelay: d.cfg.NoDelay})
		if err != nil {
			return err
		}
		d.listener.Store(ln)
		d.log.Info("listening for switches", "addr", ln.Addr().String())
		g.Go(func() error { return d.acceptLoop(ctx, ln) })
		g.Go(func() error {
			<-ctx.Done()
			if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				return err
			}
			return nil
		})
	}
	for i := 0; i < d.cfg.Workers; i++ {
		w := newWorker(d, i)
		g.Go(func() error { return w.run(ctx) })
	}
	d.log.Info("driver started", "workers", d.cfg.Workers, "batchOutput", d.cfg.BatchOutput,
		"partitioned", d.cfg.Partitioned, "pooled", d.alloc.Pooled())
	return g.Wait()
}

func (d *Driver) acceptLoop(ctx context.Context, ln *transport.Listener) error {
	for {
		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		if err := d.Attach(c); err != nil {
			d.log.Error(err, "attach switch connection", "remote", c.RemoteAddr().String())
			c.Close()
		}
	}
}

// Attach registers an established switch connection with the scheduling pool.
func (d *Driver) Attach(conn api.Conn) error {
	s := session.New(conn, d.alloc.Buffer, d.log)
	d.registry.Add(s)
	if err := d.ready.Register(s.Handle()); err != nil {
		d.registry.Remove(s)
		return fmt.Errorf("register readiness: %w", err)
	}
	d.metrics.Sessions.Inc()
	s.Logger().V(logging.VERBOSE).Info("switch connected")
	if d.cfg.HelloOnAccept && s.MarkHelloSent() {
		var b [16]byte
		d.send(s, protocol.AppendHello(b[:0], d.nextXID()))
	}
	return nil
}

// teardown removes s from the scheduling pool and closes it. Only the first
// call for a session has any effect.
func (d *Driver) teardown(s *session.Session, cause error) {
	log := s.Logger()
	dpid, bound := s.DPID()
	holder := bound && d.registry.Lookup(dpid) == s
	if !d.registry.Remove(s) {
		return
	}
	if err := d.ready.Unregister(s.Handle()); err != nil {
		log.V(logging.DEBUG).Info("readiness unregister failed", "error", err.Error())
	}
	if err := s.Close(); err != nil {
		log.V(logging.DEBUG).Info("close failed", "error", err.Error())
	}
	d.metrics.Sessions.Dec()
	log.V(logging.VERBOSE).Info("switch disconnected", "cause", cause.Error(),
		"bytesRead", s.Counters.BytesRead.Load(), "processed", s.Counters.Processed.Load())
	if holder {
		d.post(&event.SwitchLeave{DPID: dpid}, event.DefaultPost)
		d.datalog.Record(datalog.KindSwitchLeave, dpid, int64(s.Counters.Processed.Load()))
	}
	if _, err := d.datalog.Dump(); err != nil {
		log.Error(err, "datalog dump")
	}
}

// Close stops Run, closes every session, the listener and the readiness
// reactor, and flushes the diagnostic log. It is safe to call more than once.
func (d *Driver) Close() error {
	d.closeOnce.Do(func() {
		if c := d.cancel.Load(); c != nil {
			(*c)()
		}
		var err error
		if ln := d.listener.Load(); ln != nil {
			if cerr := ln.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
				err = multierr.Append(err, cerr)
			}
		}
		for _, s := range d.registry.All() {
			if !d.registry.Remove(s) {
				continue
			}
			_ = d.ready.Unregister(s.Handle())
			err = multierr.Append(err, s.Close())
			d.metrics.Sessions.Dec()
		}
		err = multierr.Append(err, d.ready.Close())
		if _, derr := d.datalog.Dump(); derr != nil {
			err = multierr.Append(err, derr)
		}
		d.closeErr = err
	})
	return d.closeErr
}

func (d *Driver) nextXID() uint32 { return d.xid.Add(1) }

func (d *Driver) post(ev event.Event, opts event.PostOptions) {
	d.sink.Post(ev, opts)
	d.metrics.Events.WithLabelValues(ev.Kind().String()).Inc()
}

func (d *Driver) backoff() concurrency.Backoff {
	return concurrency.NewBackoff(d.cfg.WriteBackoffMin, d.cfg.WriteBackoffMax, d.cfg.MaxWriteAttempts)
}
