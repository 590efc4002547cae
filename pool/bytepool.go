// File: pool/bytepool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"math/bits"
	"sync"
	"sync/atomic"
)

// Size classes are powers of two between minClass and maxClass bytes.
// Larger requests bypass the pool.
const (
	minClassShift = 6  // 64 B
	maxClassShift = 16 // 64 KiB, one maximum-size frame rounded up
)

// Stats reports allocation counters of a BytePool.
type Stats struct {
	TotalAlloc int64
	TotalFree  int64
	InUse      int64
}

// BytePool hands out byte slices from power-of-two size classes.
type BytePool struct {
	classes [maxClassShift - minClassShift + 1]sync.Pool

	totalAlloc atomic.Int64
	totalFree  atomic.Int64
}

func NewBytePool() *BytePool {
	bp := &BytePool{}
	for i := range bp.classes {
		size := 1 << (minClassShift + i)
		bp.classes[i].New = func() any {
			b := make([]byte, size)
			return &b
		}
	}
	return bp
}

// classOf returns the class index serving n bytes, or -1 if none does.
func classOf(n int) int {
	if n <= 1<<minClassShift {
		return 0
	}
	shift := bits.Len(uint(n - 1))
	if shift > maxClassShift {
		return -1
	}
	return shift - minClassShift
}

// GetBuffer returns a slice of length n.
func (bp *BytePool) GetBuffer(n int) []byte {
	bp.totalAlloc.Add(1)
	c := classOf(n)
	if c < 0 {
		return make([]byte, n)
	}
	return (*bp.classes[c].Get().(*[]byte))[:n]
}

// PutBuffer returns a buffer obtained from GetBuffer. Buffers whose capacity
// is not an exact class size are left to the garbage collector.
func (bp *BytePool) PutBuffer(buf []byte) {
	bp.totalFree.Add(1)
	c := classOf(cap(buf))
	if c < 0 || cap(buf) != 1<<(minClassShift+c) {
		return
	}
	buf = buf[:cap(buf)]
	bp.classes[c].Put(&buf)
}

func (bp *BytePool) Stats() Stats {
	a, f := bp.totalAlloc.Load(), bp.totalFree.Load()
	return Stats{TotalAlloc: a, TotalFree: f, InUse: a - f}
}
