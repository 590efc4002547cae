// File: internal/concurrency/backoff.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import (
	"runtime"
	"time"
)

// Default bounds of a Backoff.
const (
	DefaultMinBackoff = time.Microsecond
	DefaultMaxBackoff = time.Millisecond
)

// Backoff doubles its pause on every Wait, from Min up to Max, and gives up
// after Limit waits. Pauses below yieldBelow only yield the processor.
// The zero value uses the default bounds and never gives up.
type Backoff struct {
	Min   time.Duration
	Max   time.Duration
	Limit int

	cur      time.Duration
	attempts int
}

const yieldBelow = time.Microsecond

// NewBackoff returns a backoff giving up after limit waits; limit <= 0 means
// unbounded.
func NewBackoff(lo, hi time.Duration, limit int) Backoff {
	return Backoff{Min: lo, Max: hi, Limit: limit}
}

// Wait pauses for the current interval and advances it. It returns false
// without pausing once Limit waits have been made.
func (b *Backoff) Wait() bool {
	if b.Limit > 0 && b.attempts >= b.Limit {
		return false
	}
	if b.cur == 0 {
		b.cur = b.Min
		if b.cur <= 0 {
			b.cur = DefaultMinBackoff
		}
	}
	b.attempts++
	if b.cur < yieldBelow {
		runtime.Gosched()
	} else {
		time.Sleep(b.cur)
	}
	ceil := b.Max
	if ceil <= 0 {
		ceil = DefaultMaxBackoff
	}
	if b.cur *= 2; b.cur > ceil {
		b.cur = ceil
	}
	return true
}

// Reset restarts from Min with no attempts made.
func (b *Backoff) Reset() {
	b.cur = 0
	b.attempts = 0
}

// Attempts returns the number of waits since the last Reset.
func (b *Backoff) Attempts() int { return b.attempts }

// Next returns the pause the next Wait will make.
func (b *Backoff) Next() time.Duration {
	if b.cur == 0 {
		if b.Min <= 0 {
			return DefaultMinBackoff
		}
		return b.Min
	}
	return b.cur
}
