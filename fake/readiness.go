// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package fake

import (
	"sync"
	"time"

	"github.com/momentics/hioload-ofd/api"
)

// Readiness is a test api.Readiness. Wait reports every registered handle
// as ready after a short pause bounded by the timeout.
type Readiness struct {
	mu      sync.Mutex
	handles map[uintptr]struct{}
	waits   int
}

func NewReadiness() *Readiness {
	return &Readiness{handles: make(map[uintptr]struct{})}
}

func (r *Readiness) Register(h uintptr) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[h] = struct{}{}
	return nil
}

func (r *Readiness) Unregister(h uintptr) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handles, h)
	return nil
}

func (r *Readiness) Wait(timeoutMs int) (int, error) {
	pause := 50 * time.Microsecond
	if t := time.Duration(timeoutMs) * time.Millisecond; t >= 0 && t < pause {
		pause = t
	}
	time.Sleep(pause)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waits++
	return len(r.handles), nil
}

func (r *Readiness) Close() error { return nil }

// Registered reports whether h is registered.
func (r *Readiness) Registered(h uintptr) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.handles[h]
	return ok
}

// Waits returns the number of Wait calls.
func (r *Readiness) Waits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.waits
}

var _ api.Readiness = (*Readiness)(nil)
