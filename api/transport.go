// File: api/transport.go
// Author: momentics <momentics@gmail.com>
//
// Defines the transport session abstraction consumed by the driver's
// scheduling loops. Reads and writes never park the calling worker.

package api

import "net"

// Conn abstracts one stream connection to a forwarding device.
type Conn interface {
	// TryRead reads whatever is immediately available into p.
	// It returns (0, nil) when nothing is readable and io.EOF once the peer closed.
	TryRead(p []byte) (n int, err error)

	// TryWrite writes as much of p as the socket accepts right now.
	// A short count with a nil error means the send buffer is full.
	TryWrite(p []byte) (n int, err error)

	// Handle returns the OS-level descriptor identifying this connection.
	Handle() uintptr

	// RemoteAddr returns the peer address.
	RemoteAddr() net.Addr

	// Close shuts down the connection.
	Close() error
}

// Readiness blocks a worker until at least one registered handle is readable.
type Readiness interface {
	// Register adds a handle to the readiness set.
	Register(handle uintptr) error

	// Unregister removes a handle from the readiness set.
	Unregister(handle uintptr) error

	// Wait blocks for at most timeoutMs milliseconds and returns the number of ready handles.
	Wait(timeoutMs int) (int, error)

	// Close releases the readiness set.
	Close() error
}
