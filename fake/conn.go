// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake implementations for testing and development.
// Provides predictable, controllable behavior for the driver's collaborators.

package fake

import (
	"bytes"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-ofd/api"
)

var nextHandle atomic.Uintptr

func init() { nextHandle.Store(1 << 20) }

// Conn is a scripted api.Conn. Reads replay queued chunks; writes are
// recorded one entry per TryWrite call.
type Conn struct {
	mu         sync.Mutex
	handle     uintptr
	remote     net.Addr
	inbox      [][]byte
	eof        bool
	closed     bool
	readError  error
	writeError error
	closeError error
	writeLimit int
	stalled    bool
	writes     [][]byte

	gate    chan struct{}
	entered chan struct{}
}

// NewConn creates a connection with a unique handle.
func NewConn() *Conn {
	h := nextHandle.Add(1)
	return &Conn{
		handle: h,
		remote: &net.TCPAddr{IP: net.IPv4(192, 0, 2, 1), Port: int(h % 60000)},
	}
}

// Feed queues chunks to be returned by successive reads. A chunk larger than
// the read buffer is delivered over several reads.
func (c *Conn) Feed(chunks ...[]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range chunks {
		c.inbox = append(c.inbox, append([]byte(nil), ch...))
	}
}

// SetEOF makes reads return io.EOF once the queued chunks are consumed.
func (c *Conn) SetEOF() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eof = true
}

// TryRead implements api.Conn.
func (c *Conn) TryRead(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, api.ErrTransportClosed
	}
	if c.readError != nil {
		return 0, c.readError
	}
	if len(c.inbox) == 0 {
		if c.eof {
			return 0, io.EOF
		}
		return 0, nil
	}
	n := copy(p, c.inbox[0])
	if n == len(c.inbox[0]) {
		c.inbox[0] = nil
		c.inbox = c.inbox[1:]
	} else {
		c.inbox[0] = c.inbox[0][n:]
	}
	return n, nil
}

// TryWrite implements api.Conn.
func (c *Conn) TryWrite(p []byte) (int, error) {
	c.mu.Lock()
	gate, entered := c.gate, c.entered
	c.mu.Unlock()
	if gate != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-gate
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, api.ErrTransportClosed
	}
	if c.writeError != nil {
		return 0, c.writeError
	}
	if c.stalled {
		return 0, nil
	}
	n := len(p)
	if c.writeLimit > 0 && n > c.writeLimit {
		n = c.writeLimit
	}
	c.writes = append(c.writes, append([]byte(nil), p[:n]...))
	return n, nil
}

// Handle implements api.Conn.
func (c *Conn) Handle() uintptr { return c.handle }

// RemoteAddr implements api.Conn.
func (c *Conn) RemoteAddr() net.Addr { return c.remote }

// Close implements api.Conn.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closeError != nil {
		return c.closeError
	}
	c.closed = true
	return nil
}

// Closed reports whether Close succeeded.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Writes returns a copy of every recorded write.
func (c *Conn) Writes() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.writes))
	copy(out, c.writes)
	return out
}

// Written returns all recorded bytes concatenated.
func (c *Conn) Written() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return bytes.Join(c.writes, nil)
}

// ResetWrites discards recorded writes.
func (c *Conn) ResetWrites() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = nil
}

// SetReadError configures the connection to fail reads.
func (c *Conn) SetReadError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readError = err
}

// SetWriteError configures the connection to fail writes.
func (c *Conn) SetWriteError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeError = err
}

// SetCloseError configures the connection to fail Close.
func (c *Conn) SetCloseError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeError = err
}

// SetWriteLimit caps the bytes accepted by each write; 0 removes the cap.
func (c *Conn) SetWriteLimit(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeLimit = n
}

// SetStalled makes writes accept nothing, as with a full send buffer.
func (c *Conn) SetStalled(stalled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stalled = stalled
}

// HoldWrites blocks every write until the returned release function is
// called. The returned channel receives once a write is blocked.
func (c *Conn) HoldWrites() (entered <-chan struct{}, release func()) {
	gate := make(chan struct{})
	ch := make(chan struct{}, 1)
	c.mu.Lock()
	c.gate, c.entered = gate, ch
	c.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			c.gate, c.entered = nil, nil
			c.mu.Unlock()
			close(gate)
		})
	}
}

var _ api.Conn = (*Conn)(nil)
