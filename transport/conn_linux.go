//go:build linux

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package transport

import (
	"errors"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// TryRead reads whatever the socket holds without waiting. The callback
// returns true unconditionally so the runtime poller never parks the worker.
func (c *Conn) TryRead(p []byte) (int, error) {
	var n int
	var opErr error
	if err := c.raw.Read(func(fd uintptr) bool {
		n, opErr = unix.Read(int(fd), p)
		return true
	}); err != nil {
		return 0, c.closedErr(err)
	}
	switch {
	case errors.Is(opErr, unix.EAGAIN), errors.Is(opErr, unix.EINTR):
		return 0, nil
	case opErr != nil:
		return 0, os.NewSyscallError("read", opErr)
	case n == 0 && len(p) > 0:
		return 0, io.EOF
	}
	return n, nil
}

// TryWrite writes as much of p as the send buffer accepts.
func (c *Conn) TryWrite(p []byte) (int, error) {
	var n int
	var opErr error
	if err := c.raw.Write(func(fd uintptr) bool {
		n, opErr = unix.Write(int(fd), p)
		return true
	}); err != nil {
		return 0, c.closedErr(err)
	}
	switch {
	case errors.Is(opErr, unix.EAGAIN), errors.Is(opErr, unix.EINTR):
		return 0, nil
	case opErr != nil:
		return 0, os.NewSyscallError("write", opErr)
	}
	return n, nil
}
