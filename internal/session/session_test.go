package session_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-ofd/api"
	"github.com/momentics/hioload-ofd/event"
	"github.com/momentics/hioload-ofd/fake"
	"github.com/momentics/hioload-ofd/internal/concurrency"
	"github.com/momentics/hioload-ofd/internal/session"
)

func quickBackoff(limit int) concurrency.Backoff {
	return concurrency.NewBackoff(time.Microsecond, 10*time.Microsecond, limit)
}

func TestDrainPreservesReceiptOrder(t *testing.T) {
	s := newSession()
	assert.Nil(t, s.Drain(1))
	for i := 0; i < 5; i++ {
		s.Enqueue(&event.Discovery{SrcDPID: uint64(i), SrcPort: uint16(i)})
	}
	require.Equal(t, 5, s.PendingLen())

	got := s.Drain(99)
	require.Len(t, got, 5)
	for i, d := range got {
		assert.Equal(t, uint64(i), d.SrcDPID)
		assert.Equal(t, uint64(99), d.DstDPID)
	}
	assert.Zero(t, s.PendingLen())
	assert.Nil(t, s.Drain(99))
}

func TestHelloClaimedOnce(t *testing.T) {
	s := newSession()
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.MarkHelloSent() {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestSendCompletesShortWrites(t *testing.T) {
	conn := fake.NewConn()
	conn.SetWriteLimit(3)
	s := session.New(conn, nil, logr.Discard())

	msg := []byte("0123456789")
	n, err := s.Send(msg, quickBackoff(10))
	require.NoError(t, err)
	assert.Equal(t, len(msg), n)
	assert.Equal(t, msg, conn.Written())
	assert.Len(t, conn.Writes(), 4)
	assert.Equal(t, uint64(len(msg)), s.Counters.BytesWritten.Load())
}

func TestSendAbandonsStalledWrite(t *testing.T) {
	conn := fake.NewConn()
	conn.SetStalled(true)
	s := session.New(conn, nil, logr.Discard())

	n, err := s.Send([]byte("abc"), quickBackoff(5))
	assert.Zero(t, n)
	require.ErrorIs(t, err, api.ErrWriteAbandoned)
	assert.Equal(t, api.ErrCodeWriteAbandoned, api.CodeOf(err))
}

func TestSendReportsTransportError(t *testing.T) {
	conn := fake.NewConn()
	boom := errors.New("boom")
	conn.SetWriteError(boom)
	s := session.New(conn, nil, logr.Discard())

	_, err := s.Send([]byte("abc"), quickBackoff(5))
	assert.ErrorIs(t, err, boom)
}

func TestSendSerializesWriters(t *testing.T) {
	conn := fake.NewConn()
	conn.SetWriteLimit(1)
	s := session.New(conn, nil, logr.Discard())

	var wg sync.WaitGroup
	for _, m := range []string{"aaaa", "bbbb"} {
		wg.Add(1)
		go func(m string) {
			defer wg.Done()
			_, err := s.Send([]byte(m), quickBackoff(10))
			assert.NoError(t, err)
		}(m)
	}
	wg.Wait()
	got := string(conn.Written())
	assert.Contains(t, []string{"aaaabbbb", "bbbbaaaa"}, got)
}

func TestCloseOnce(t *testing.T) {
	conn := fake.NewConn()
	s := session.New(conn, nil, logr.Discard())
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.True(t, conn.Closed())
	select {
	case <-s.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestSessionIdentity(t *testing.T) {
	conn := fake.NewConn()
	s := session.New(conn, nil, logr.Discard())
	assert.Equal(t, conn.Handle(), s.Handle())
	assert.Equal(t, conn.RemoteAddr().String(), s.Remote())
	assert.NotEqual(t, newSession().ID(), s.ID())
	_, ok := s.DPID()
	assert.False(t, ok)
}
