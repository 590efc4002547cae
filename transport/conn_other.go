//go:build !linux

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package transport

import (
	"errors"
	"os"
	"time"
)

// pollWindow bounds a single read or write. The runtime checks an expired
// deadline before attempting I/O, so it must lie in the future.
const pollWindow = 50 * time.Microsecond

// TryRead reads whatever arrives within pollWindow.
func (c *Conn) TryRead(p []byte) (int, error) {
	if err := c.tc.SetReadDeadline(time.Now().Add(pollWindow)); err != nil {
		return 0, c.closedErr(err)
	}
	n, err := c.tc.Read(p)
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return n, nil
	}
	if err != nil {
		return n, c.closedErr(err)
	}
	return n, nil
}

// TryWrite writes as much of p as fits within pollWindow.
func (c *Conn) TryWrite(p []byte) (int, error) {
	if err := c.tc.SetWriteDeadline(time.Now().Add(pollWindow)); err != nil {
		return 0, c.closedErr(err)
	}
	n, err := c.tc.Write(p)
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return n, nil
	}
	if err != nil {
		return n, c.closedErr(err)
	}
	return n, nil
}
