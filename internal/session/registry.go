// File: internal/session/registry.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package session

import (
	"sort"
	"sync"

	"github.com/momentics/hioload-ofd/api"
)

// Registry indexes live sessions by datapath id and by transport handle and
// schedules them round-robin. Every session with a bound identity is present
// in both indexes. A single mutex covers both indexes, the pool
// and its cursor, so membership changes never race a scan.
type Registry struct {
	mu       sync.Mutex
	byDPID   map[uint64]*Session
	byHandle map[uintptr]*Session
	pool     []*Session
	cursor   int

	onCorrupt func(error)
}

// NewRegistry returns an empty registry. onCorrupt is invoked, outside the
// registry lock, if the scheduling cursor is ever found outside the pool; it
// is expected not to return.
func NewRegistry(onCorrupt func(error)) *Registry {
	return &Registry{
		byDPID:    make(map[uint64]*Session),
		byHandle:  make(map[uintptr]*Session),
		onCorrupt: onCorrupt,
	}
}

// Add registers an accepted session by handle and appends it to the pool.
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byHandle[s.handle] = s
	r.pool = append(r.pool, s)
}

// Bind records dpid as the identity of s. Rebinding the same identity is a
// no-op. If another session already holds dpid, as after a reconnect that
// raced the old connection's teardown, the mapping moves to s and the
// previous holder is returned with its identity cleared; it stays scheduled
// until torn down.
func (r *Registry) Bind(s *Session, dpid uint64) (previous *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byHandle[s.handle] != s {
		return nil
	}
	if old, ok := s.DPID(); ok {
		if old == dpid && r.byDPID[dpid] == s {
			return nil
		}
		if r.byDPID[old] == s {
			delete(r.byDPID, old)
		}
	}
	if cur := r.byDPID[dpid]; cur != nil && cur != s {
		previous = cur
		cur.unbind()
	}
	r.byDPID[dpid] = s
	s.bind(dpid)
	return previous
}

// Remove unregisters s from both indexes and the pool. It reports whether s
// was registered.
func (r *Registry) Remove(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byHandle[s.handle] != s {
		return false
	}
	delete(r.byHandle, s.handle)
	if dpid, ok := s.DPID(); ok && r.byDPID[dpid] == s {
		delete(r.byDPID, dpid)
	}
	for i, p := range r.pool {
		if p != s {
			continue
		}
		last := len(r.pool) - 1
		copy(r.pool[i:], r.pool[i+1:])
		r.pool[last] = nil
		r.pool = r.pool[:last]
		if i < r.cursor {
			r.cursor--
		}
		if r.cursor >= len(r.pool) {
			r.cursor = 0
		}
		break
	}
	return true
}

// Lookup returns the session bound to dpid.
func (r *Registry) Lookup(dpid uint64) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byDPID[dpid]
}

// LookupHandle returns the session registered under a transport handle.
func (r *Registry) LookupHandle(h uintptr) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byHandle[h]
}

// Next scans at most one full pass of the pool from the cursor and returns
// the first session whose Scheduled flag it could set, or nil if every
// session is busy or the pool is empty. The caller must Release(Scheduled)
// exactly once.
func (r *Registry) Next() *Session {
	r.mu.Lock()
	n := len(r.pool)
	for i := 0; i < n; i++ {
		if r.cursor < 0 || r.cursor >= n {
			cursor := r.cursor
			r.mu.Unlock()
			r.corrupt(cursor, n)
			return nil
		}
		s := r.pool[r.cursor]
		r.cursor = (r.cursor + 1) % n
		if s.TryAcquire(Scheduled) {
			r.mu.Unlock()
			return s
		}
	}
	r.mu.Unlock()
	return nil
}

func (r *Registry) corrupt(cursor, size int) {
	err := api.ErrPoolCorrupted.WithContext("cursor", cursor).WithContext("size", size)
	if r.onCorrupt != nil {
		r.onCorrupt(err)
		return
	}
	panic(err)
}

// Len returns the pool size.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pool)
}

// Bound returns the number of sessions with a bound identity.
func (r *Registry) Bound() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byDPID)
}

// Snapshot returns the sessions bound to an identity ordered by datapath id.
func (r *Registry) Snapshot() []*Session {
	r.mu.Lock()
	out := make([]*Session, 0, len(r.byDPID))
	for _, s := range r.byDPID {
		out = append(out, s)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		a, _ := out[i].DPID()
		b, _ := out[j].DPID()
		return a < b
	})
	return out
}

// All returns every pooled session in scheduling order.
func (r *Registry) All() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Session(nil), r.pool...)
}
