package concurrency_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-ofd/internal/concurrency"
)

func TestBackoffDoublesUpToMax(t *testing.T) {
	b := concurrency.NewBackoff(time.Microsecond, 8*time.Microsecond, 0)
	want := []time.Duration{1, 2, 4, 8, 8, 8}
	for i, w := range want {
		require.Equal(t, w*time.Microsecond, b.Next(), "step %d", i)
		require.True(t, b.Wait())
	}
	assert.Equal(t, len(want), b.Attempts())

	b.Reset()
	assert.Zero(t, b.Attempts())
	assert.Equal(t, time.Microsecond, b.Next())
}

func TestBackoffGivesUpAfterLimit(t *testing.T) {
	b := concurrency.NewBackoff(time.Microsecond, time.Microsecond, 3)
	for i := 0; i < 3; i++ {
		require.True(t, b.Wait())
	}
	assert.False(t, b.Wait())
	assert.Equal(t, 3, b.Attempts())
}

func TestBackoffZeroValue(t *testing.T) {
	var b concurrency.Backoff
	assert.Equal(t, concurrency.DefaultMinBackoff, b.Next())
	for i := 0; i < 20; i++ {
		require.True(t, b.Wait())
	}
	assert.Equal(t, concurrency.DefaultMaxBackoff, b.Next())
}

func TestPinCurrentThread(t *testing.T) {
	done := make(chan error, 1)
	go func() {
		defer concurrency.UnpinCurrentThread()
		done <- concurrency.PinCurrentThread(-1)
	}()
	assert.NoError(t, <-done)
}
