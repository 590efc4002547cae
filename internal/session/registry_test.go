package session_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-ofd/fake"
	"github.com/momentics/hioload-ofd/internal/session"
)

func newSession() *session.Session {
	return session.New(fake.NewConn(), nil, logr.Discard())
}

func newRegistry(t *testing.T, n int) (*session.Registry, []*session.Session) {
	t.Helper()
	r := session.NewRegistry(func(err error) { t.Errorf("unexpected pool corruption: %v", err) })
	out := make([]*session.Session, n)
	for i := range out {
		out[i] = newSession()
		r.Add(out[i])
	}
	return r, out
}

func TestNextRoundRobin(t *testing.T) {
	r, ss := newRegistry(t, 3)
	for round := 0; round < 2; round++ {
		for i := 0; i < 3; i++ {
			s := r.Next()
			require.Same(t, ss[i], s)
			require.True(t, s.Holds(session.Scheduled))
			require.True(t, s.Release(session.Scheduled))
		}
	}
}

func TestNextSkipsBusy(t *testing.T) {
	r, ss := newRegistry(t, 3)
	require.True(t, ss[0].TryAcquire(session.Scheduled))
	require.True(t, ss[2].TryAcquire(session.Scheduled))

	assert.Same(t, ss[1], r.Next())
	assert.Nil(t, r.Next(), "all sessions busy")

	// A writer does not block scheduling.
	require.True(t, ss[1].Release(session.Scheduled))
	require.True(t, ss[1].TryAcquire(session.Writing))
	assert.Same(t, ss[1], r.Next())
}

func TestNextEmptyPool(t *testing.T) {
	r := session.NewRegistry(nil)
	assert.Nil(t, r.Next())
	assert.Zero(t, r.Len())
}

func TestReleaseDetectsDoubleUnmark(t *testing.T) {
	s := newSession()
	require.True(t, s.TryAcquire(session.Scheduled))
	require.False(t, s.TryAcquire(session.Scheduled))
	require.True(t, s.Release(session.Scheduled))
	assert.False(t, s.Release(session.Scheduled))
	assert.False(t, s.Holds(session.Scheduled))
}

func TestFlagsAreIndependent(t *testing.T) {
	s := newSession()
	require.True(t, s.TryAcquire(session.Scheduled))
	require.True(t, s.TryAcquire(session.Writing))
	require.True(t, s.Release(session.Scheduled))
	assert.True(t, s.Holds(session.Writing))
	assert.False(t, s.Holds(session.Scheduled))
}

func TestConcurrentWorkersNeverShareSession(t *testing.T) {
	const workers, sessions, rounds = 16, 5, 2000
	r, ss := newRegistry(t, sessions)

	owners := make([]atomic.Int32, sessions)
	index := make(map[*session.Session]int, sessions)
	for i, s := range ss {
		index[s] = i
	}
	var busy atomic.Int32
	var picked, released atomic.Int64

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				s := r.Next()
				if s == nil {
					continue
				}
				picked.Add(1)
				if n := busy.Add(1); n > sessions {
					t.Errorf("%d sessions busy, pool has %d", n, sessions)
				}
				idx := index[s]
				if owners[idx].Add(1) != 1 {
					t.Errorf("session %d scheduled twice", idx)
				}
				owners[idx].Add(-1)
				busy.Add(-1)
				if s.Release(session.Scheduled) {
					released.Add(1)
				} else {
					t.Errorf("session %d released twice", idx)
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, picked.Load(), released.Load())
	for _, s := range ss {
		assert.False(t, s.Holds(session.Scheduled))
	}
}

func TestRemoveDuringScheduling(t *testing.T) {
	r, ss := newRegistry(t, 8)
	var wg sync.WaitGroup
	stop := make(chan struct{})
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if s := r.Next(); s != nil {
					s.Release(session.Scheduled)
				}
			}
		}()
	}
	for _, s := range ss[:6] {
		require.True(t, r.Remove(s))
	}
	close(stop)
	wg.Wait()

	assert.Equal(t, 2, r.Len())
	seen := map[*session.Session]bool{}
	for i := 0; i < 4; i++ {
		s := r.Next()
		require.NotNil(t, s)
		seen[s] = true
		s.Release(session.Scheduled)
	}
	assert.Len(t, seen, 2)
	assert.True(t, seen[ss[6]])
	assert.True(t, seen[ss[7]])
}

func TestRemoveKeepsRotation(t *testing.T) {
	r, ss := newRegistry(t, 4)
	// Cursor now points at ss[2].
	for i := 0; i < 2; i++ {
		r.Next().Release(session.Scheduled)
	}
	require.True(t, r.Remove(ss[0]))
	s := r.Next()
	assert.Same(t, ss[2], s, "removing an earlier entry must not skip the next one")
	s.Release(session.Scheduled)

	require.True(t, r.Remove(ss[3]))
	s = r.Next()
	assert.Same(t, ss[1], s)
	s.Release(session.Scheduled)

	assert.False(t, r.Remove(ss[3]), "second remove is a no-op")
}

func TestBindIsIdempotent(t *testing.T) {
	r, ss := newRegistry(t, 2)
	s := ss[0]
	assert.Nil(t, r.Bind(s, 0xab))
	assert.Nil(t, r.Bind(s, 0xab))

	assert.Same(t, s, r.Lookup(0xab))
	assert.Same(t, s, r.LookupHandle(s.Handle()))
	assert.Equal(t, 1, r.Bound())
	dpid, ok := s.DPID()
	require.True(t, ok)
	assert.Equal(t, uint64(0xab), dpid)

	// A different identity replaces the old mapping.
	assert.Nil(t, r.Bind(s, 0xcd))
	assert.Nil(t, r.Lookup(0xab))
	assert.Same(t, s, r.Lookup(0xcd))
	assert.Equal(t, 1, r.Bound())
}

func TestBindAfterReconnect(t *testing.T) {
	r, ss := newRegistry(t, 2)
	old, cur := ss[0], ss[1]
	r.Bind(old, 7)
	assert.Same(t, old, r.Bind(cur, 7))
	assert.Same(t, cur, r.Lookup(7))
	assert.Equal(t, 1, r.Bound())

	// The superseded session no longer claims the identity.
	_, bound := old.DPID()
	assert.False(t, bound)
	assert.Same(t, old, r.LookupHandle(old.Handle()))
	for _, s := range r.All() {
		if id, ok := s.DPID(); ok {
			assert.Same(t, s, r.Lookup(id))
			assert.Same(t, s, r.LookupHandle(s.Handle()))
		}
	}

	// Tearing down the stale session keeps the new mapping.
	require.True(t, r.Remove(old))
	assert.Same(t, cur, r.Lookup(7))
	assert.Nil(t, r.LookupHandle(old.Handle()))
	assert.Same(t, cur, r.LookupHandle(cur.Handle()))
}

func TestBindUnregisteredSession(t *testing.T) {
	r := session.NewRegistry(nil)
	s := newSession()
	assert.Nil(t, r.Bind(s, 1))
	assert.Nil(t, r.Lookup(1))
	_, ok := s.DPID()
	assert.False(t, ok)
}

func TestRemoveUnbindsIdentity(t *testing.T) {
	r, ss := newRegistry(t, 1)
	r.Bind(ss[0], 3)
	require.True(t, r.Remove(ss[0]))
	assert.Nil(t, r.Lookup(3))
	assert.Zero(t, r.Bound())
	assert.Zero(t, r.Len())
}

func TestSnapshotOrderedByDPID(t *testing.T) {
	r, ss := newRegistry(t, 3)
	r.Bind(ss[0], 30)
	r.Bind(ss[1], 10)
	snap := r.Snapshot()
	require.Len(t, snap, 2)
	assert.Same(t, ss[1], snap[0])
	assert.Same(t, ss[0], snap[1])
	assert.Len(t, r.All(), 3)
}
