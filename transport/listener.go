// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package transport

import (
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"syscall"

	"github.com/momentics/hioload-ofd/api"
)

// ListenerConfig holds configuration for the TCP listener.
type ListenerConfig struct {
	Addr    string // TCP address to bind (e.g., ":6633")
	NoDelay bool   // Disable Nagle on accepted connections
}

// Listener accepts switch connections.
type Listener struct {
	ln      *net.TCPListener
	noDelay bool
}

// Listen opens the listening socket.
func Listen(cfg ListenerConfig) (*Listener, error) {
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("tcp listen on %s: %w", cfg.Addr, err)
	}
	return &Listener{ln: ln.(*net.TCPListener), noDelay: cfg.NoDelay}, nil
}

// Accept blocks until a switch connects.
func (l *Listener) Accept() (*Conn, error) {
	tc, err := l.ln.AcceptTCP()
	if err != nil {
		if errors.Is(err, net.ErrClosed) {
			return nil, api.ErrTransportClosed
		}
		return nil, fmt.Errorf("accept: %w", err)
	}
	c, err := NewConn(tc, l.noDelay)
	if err != nil {
		tc.Close()
		return nil, err
	}
	return c, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Close stops accepting. A blocked Accept returns api.ErrTransportClosed.
func (l *Listener) Close() error { return l.ln.Close() }

// Conn is a non-blocking switch connection.
type Conn struct {
	tc     *net.TCPConn
	raw    syscall.RawConn
	fd     uintptr
	remote net.Addr
	closed atomic.Bool
}

// NewConn wraps an established TCP connection.
func NewConn(tc *net.TCPConn, noDelay bool) (*Conn, error) {
	if err := tc.SetNoDelay(noDelay); err != nil {
		return nil, fmt.Errorf("set nodelay: %w", err)
	}
	raw, err := tc.SyscallConn()
	if err != nil {
		return nil, fmt.Errorf("syscall conn: %w", err)
	}
	c := &Conn{tc: tc, raw: raw, remote: tc.RemoteAddr()}
	if err := raw.Control(func(fd uintptr) { c.fd = fd }); err != nil {
		return nil, fmt.Errorf("socket descriptor: %w", err)
	}
	return c, nil
}

// Handle returns the socket descriptor.
func (c *Conn) Handle() uintptr { return c.fd }

// RemoteAddr returns the switch address.
func (c *Conn) RemoteAddr() net.Addr { return c.remote }

// Close closes the socket once.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.tc.Close()
}

func (c *Conn) closedErr(err error) error {
	if c.closed.Load() || errors.Is(err, net.ErrClosed) {
		return api.ErrTransportClosed
	}
	return err
}

var _ api.Conn = (*Conn)(nil)
