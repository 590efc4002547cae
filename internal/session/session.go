// File: internal/session/session.go
// Package session
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package session

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"golang.org/x/sys/cpu"

	"github.com/momentics/hioload-ofd/api"
	"github.com/momentics/hioload-ofd/event"
	"github.com/momentics/hioload-ofd/internal/concurrency"
	"github.com/momentics/hioload-ofd/protocol"
)

// Flag is a session ownership bit.
type Flag uint32

const (
	// Scheduled is held while a worker reads and dispatches the session.
	Scheduled Flag = 1 << iota
	// Writing is held while a partition is written to the session.
	Writing
)

func (f Flag) String() string {
	switch f {
	case Scheduled:
		return "scheduled"
	case Writing:
		return "writing"
	default:
		return fmt.Sprintf("flag(%d)", uint32(f))
	}
}

// Counters are cumulative per-session diagnostics.
type Counters struct {
	BytesRead    atomic.Uint64
	BytesWritten atomic.Uint64
	Frames       atomic.Uint64
	Chances      atomic.Uint64
	ZeroReads    atomic.Uint64
	Processed    atomic.Uint64
}

// Session is one switch connection.
type Session struct {
	_     cpu.CacheLinePad
	flags atomic.Uint32
	_     cpu.CacheLinePad

	id     uuid.UUID
	conn   api.Conn
	handle uintptr
	remote string
	log    atomic.Pointer[logr.Logger]

	dpid  atomic.Uint64
	bound atomic.Bool

	reasm *protocol.Reassembler

	mu      sync.Mutex
	pending *queue.Queue

	helloSent atomic.Bool
	writeMu   sync.Mutex

	closeOnce sync.Once
	closeErr  error
	done      chan struct{}

	Counters Counters
}

// New wraps an accepted connection. Spliced frames are allocated with alloc.
func New(conn api.Conn, alloc func(n int) []byte, log logr.Logger) *Session {
	s := &Session{
		id:      uuid.New(),
		conn:    conn,
		handle:  conn.Handle(),
		reasm:   protocol.NewReassembler(alloc),
		pending: queue.New(),
		done:    make(chan struct{}),
	}
	if addr := conn.RemoteAddr(); addr != nil {
		s.remote = addr.String()
	}
	l := log.WithValues("remote", s.remote, "session", s.id.String())
	s.log.Store(&l)
	return s
}

// ID returns the unique session identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// Conn returns the transport connection.
func (s *Session) Conn() api.Conn { return s.conn }

// Handle returns the transport handle the session is registered under.
func (s *Session) Handle() uintptr { return s.handle }

// Remote returns the peer address.
func (s *Session) Remote() string { return s.remote }

// Logger returns the session logger, carrying the datapath id once bound.
func (s *Session) Logger() logr.Logger { return *s.log.Load() }

// DPID returns the bound datapath id.
func (s *Session) DPID() (uint64, bool) {
	if !s.bound.Load() {
		return 0, false
	}
	return s.dpid.Load(), true
}

func (s *Session) bind(dpid uint64) {
	s.dpid.Store(dpid)
	s.bound.Store(true)
	l := s.Logger().WithValues("dpid", fmt.Sprintf("%016x", dpid))
	s.log.Store(&l)
}

// unbind clears the identity of a session superseded by a reconnect. The
// logger keeps the old dpid for correlation.
func (s *Session) unbind() { s.bound.Store(false) }

// TryAcquire sets f if it is clear and reports whether it did.
func (s *Session) TryAcquire(f Flag) bool {
	for {
		old := s.flags.Load()
		if old&uint32(f) != 0 {
			return false
		}
		if s.flags.CompareAndSwap(old, old|uint32(f)) {
			return true
		}
	}
}

// Release clears f. It returns false, leaving the flags untouched, if f was
// not held.
func (s *Session) Release(f Flag) bool {
	for {
		old := s.flags.Load()
		if old&uint32(f) == 0 {
			return false
		}
		if s.flags.CompareAndSwap(old, old&^uint32(f)) {
			return true
		}
	}
}

// Holds reports whether f is currently set.
func (s *Session) Holds(f Flag) bool { return s.flags.Load()&uint32(f) != 0 }

// Reassembler returns the frame reassembler. Only the worker holding
// Scheduled may use it.
func (s *Session) Reassembler() *protocol.Reassembler { return s.reasm }

// MarkHelloSent reports whether this call is the first to claim the hello.
func (s *Session) MarkHelloSent() bool { return s.helloSent.CompareAndSwap(false, true) }

// Enqueue holds a discovery event until the session identity is known.
func (s *Session) Enqueue(d *event.Discovery) {
	s.mu.Lock()
	s.pending.Add(d)
	s.mu.Unlock()
}

// Drain empties the pre-identity queue in receipt order, tagging every event
// with dpid as its receiving datapath.
func (s *Session) Drain(dpid uint64) []*event.Discovery {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending.Length() == 0 {
		return nil
	}
	out := make([]*event.Discovery, 0, s.pending.Length())
	for s.pending.Length() > 0 {
		d := s.pending.Remove().(*event.Discovery)
		d.DstDPID = dpid
		out = append(out, d)
	}
	return out
}

// PendingLen returns the number of queued pre-identity events.
func (s *Session) PendingLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending.Length()
}

// Send writes b in full under the session write lock, so messages from
// different writers never interleave. A TryWrite that makes no progress is
// retried after bo.Wait; once bo gives up the rest of b is abandoned and
// api.ErrWriteAbandoned returned.
func (s *Session) Send(b []byte, bo concurrency.Backoff) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	written := 0
	for written < len(b) {
		n, err := s.conn.TryWrite(b[written:])
		if err != nil {
			s.Counters.BytesWritten.Add(uint64(written))
			return written, fmt.Errorf("write to %s: %w", s.remote, err)
		}
		if n > 0 {
			written += n
			bo.Reset()
			continue
		}
		if !bo.Wait() {
			s.Counters.BytesWritten.Add(uint64(written))
			return written, api.ErrWriteAbandoned.
				WithContext("remote", s.remote).
				WithContext("remaining", len(b)-written).
				WithContext("attempts", bo.Attempts())
		}
	}
	s.Counters.BytesWritten.Add(uint64(written))
	return written, nil
}

// Close closes the transport once; later calls return the first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
		close(s.done)
	})
	return s.closeErr
}

// Done returns a channel closed by Close.
func (s *Session) Done() <-chan struct{} { return s.done }
