// File: driver/worker.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package driver

import (
	"context"
	"errors"
	"time"

	"github.com/go-logr/logr"

	"github.com/momentics/hioload-ofd/event"
	"github.com/momentics/hioload-ofd/internal/batching"
	"github.com/momentics/hioload-ofd/internal/concurrency"
	"github.com/momentics/hioload-ofd/internal/datalog"
	"github.com/momentics/hioload-ofd/internal/logging"
	"github.com/momentics/hioload-ofd/internal/session"
	"github.com/momentics/hioload-ofd/protocol"
)

// worker is one polling loop. Its batching state is private; everything it
// shares with other workers goes through the registry and session flags.
type worker struct {
	id     int
	d      *Driver
	ctl    *batching.Controller
	buf    []byte
	frames []protocol.Frame
	log    logr.Logger
}

func newWorker(d *Driver, id int) *worker {
	return &worker{
		id:     id,
		d:      d,
		ctl:    batching.New(d.cfg.Batching),
		buf:    d.alloc.Buffer(d.cfg.BufferSize),
		frames: make([]protocol.Frame, 0, 64),
		log:    d.log.WithValues("worker", id),
	}
}

func (w *worker) run(ctx context.Context) error {
	defer w.d.alloc.FreeBuffer(w.buf)
	if w.d.cfg.PinWorkers {
		cpu := w.id % concurrency.NumCPUs()
		if err := concurrency.PinCurrentThread(cpu); err != nil {
			w.log.Error(err, "pin worker", "cpu", cpu)
		} else {
			defer concurrency.UnpinCurrentThread()
		}
	}
	w.d.metrics.ObserveTarget(w.id, w.ctl.Target())
	w.log.V(logging.DEBUG).Info("worker started")

	for ctx.Err() == nil {
		s := w.d.registry.Next()
		if s == nil {
			w.wait(ctx)
			continue
		}
		if w.serve(s) {
			w.wait(ctx)
		}
	}
	w.log.V(logging.DEBUG).Info("worker stopped")
	return nil
}

// wait blocks on the pool-wide readiness reactor.
func (w *worker) wait(ctx context.Context) {
	if _, err := w.d.ready.Wait(int(w.d.cfg.ReadinessTimeout / time.Millisecond)); err != nil && ctx.Err() == nil {
		w.log.V(logging.DEBUG).Info("readiness wait failed", "error", err.Error())
		time.Sleep(w.d.cfg.ReadinessTimeout)
	}
}

// serve runs one read/dispatch cycle on s, which the caller picked with
// Scheduled held. Scheduled is released exactly once, after dispatch, so the
// frames of one session reach the sink in receipt order. serve reports true
// once a full pass of the pool came back empty.
func (w *worker) serve(s *session.Session) (idle bool) {
	s.Counters.Chances.Add(1)
	n, err := s.Conn().TryRead(w.buf)
	if err != nil {
		w.d.teardown(s, err)
		w.release(s)
		return false
	}
	if n == 0 {
		s.Counters.ZeroReads.Add(1)
		w.release(s)
		if w.ctl.Idle(w.d.registry.Len()) {
			w.d.post(&event.Flush{}, w.postOptions())
			return true
		}
		return false
	}
	if n == len(w.buf) {
		w.ctl.Congested()
	}
	s.Counters.BytesRead.Add(uint64(n))
	w.d.metrics.BytesRead.Add(float64(n))

	frames, ferr := s.Reassembler().Feed(w.frames[:0], w.buf[:n])
	if ferr != nil {
		dpid, _ := s.DPID()
		w.d.metrics.FramingErrors.Inc()
		w.d.datalog.Record(datalog.KindFraming, dpid, int64(n))
		s.Logger().Error(ferr, "framing error, dropping rest of read", "read", n, "frames", len(frames))
	}
	s.Counters.Frames.Add(uint64(len(frames)))
	w.d.metrics.Frames.Add(float64(len(frames)))

	for i, f := range frames {
		if w.ctl.Due() {
			if w.d.dispatch(w, s, f, true) {
				batched := w.ctl.Batched()
				w.ctl.Complete()
				w.d.metrics.BatchSize.Observe(float64(batched))
				w.d.metrics.ObserveTarget(w.id, w.ctl.Target())
			}
		} else if w.d.dispatch(w, s, f, false) {
			w.ctl.Add()
		}
		if f.Owned() {
			w.d.alloc.FreeBuffer(f.Bytes())
		}
		frames[i] = protocol.Frame{}
	}
	w.frames = frames[:0]
	w.release(s)
	w.ctl.Active()
	return false
}

func (w *worker) release(s *session.Session) {
	if !s.Release(session.Scheduled) {
		s.Logger().Error(errors.New("scheduled flag not held"), "double release")
	}
}

func (w *worker) postOptions() event.PostOptions {
	if w.d.cfg.Partitioned {
		return event.PostOptions{Worker: w.id}
	}
	return event.DefaultPost
}
