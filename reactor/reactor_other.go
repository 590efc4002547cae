//go:build !linux

// File: reactor/reactor_other.go
// Author: momentics <momentics@gmail.com>
//
// Timed readiness for platforms without an epoll binding. Wait pauses for a
// bounded interval and reports every registered handle as possibly ready.

package reactor

import (
	"sync"
	"time"

	"github.com/momentics/hioload-ofd/api"
)

const maxPause = time.Millisecond

type timedReadiness struct {
	mu      sync.Mutex
	handles map[uintptr]struct{}
	closed  bool
}

func newReadiness() (api.Readiness, error) {
	return &timedReadiness{handles: make(map[uintptr]struct{})}, nil
}

func (r *timedReadiness) Register(h uintptr) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return api.ErrTransportClosed
	}
	r.handles[h] = struct{}{}
	return nil
}

func (r *timedReadiness) Unregister(h uintptr) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handles, h)
	return nil
}

func (r *timedReadiness) Wait(timeoutMs int) (int, error) {
	pause := maxPause
	if timeoutMs >= 0 {
		if t := time.Duration(timeoutMs) * time.Millisecond; t < pause {
			pause = t
		}
	}
	if pause > 0 {
		time.Sleep(pause)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles), nil
}

func (r *timedReadiness) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.handles = map[uintptr]struct{}{}
	return nil
}
