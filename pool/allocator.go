// File: pool/allocator.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"github.com/momentics/hioload-ofd/event"
)

// Allocator is the allocate/free capability the driver uses for every
// protocol object it creates or consumes. Objects must be returned to the
// allocator they came from; returning them to a HeapAllocator is a no-op.
type Allocator interface {
	// Buffer returns a byte slice of length n.
	Buffer(n int) []byte
	FreeBuffer(b []byte)

	PacketIn() *event.PacketIn
	FreePacketIn(p *event.PacketIn)

	PacketOut() *event.PacketOut
	FlowMod() *event.FlowMod
	// FreeCommand releases a command built by PacketOut or FlowMod.
	FreeCommand(c event.Command)

	// Pooled reports whether frees recycle memory.
	Pooled() bool
}

// HeapAllocator allocates from the heap and never recycles.
type HeapAllocator struct{}

func (HeapAllocator) Buffer(n int) []byte          { return make([]byte, n) }
func (HeapAllocator) FreeBuffer([]byte)            {}
func (HeapAllocator) PacketIn() *event.PacketIn    { return new(event.PacketIn) }
func (HeapAllocator) FreePacketIn(*event.PacketIn) {}
func (HeapAllocator) PacketOut() *event.PacketOut  { return new(event.PacketOut) }
func (HeapAllocator) FlowMod() *event.FlowMod      { return new(event.FlowMod) }
func (HeapAllocator) FreeCommand(event.Command)    {}
func (HeapAllocator) Pooled() bool                 { return false }

// PooledAllocator recycles events, commands and buffers.
type PooledAllocator struct {
	bytes      *BytePool
	packetIns  *SyncPool[*event.PacketIn]
	packetOuts *SyncPool[*event.PacketOut]
	flowMods   *SyncPool[*event.FlowMod]
}

func NewPooledAllocator() *PooledAllocator {
	return &PooledAllocator{
		bytes: NewBytePool(),
		packetIns: NewSyncPool(
			func() *event.PacketIn { return new(event.PacketIn) },
			(*event.PacketIn).Reset,
		),
		packetOuts: NewSyncPool(
			func() *event.PacketOut { return new(event.PacketOut) },
			(*event.PacketOut).Reset,
		),
		flowMods: NewSyncPool(
			func() *event.FlowMod { return new(event.FlowMod) },
			(*event.FlowMod).Reset,
		),
	}
}

func (a *PooledAllocator) Buffer(n int) []byte { return a.bytes.GetBuffer(n) }

func (a *PooledAllocator) FreeBuffer(b []byte) {
	if b != nil {
		a.bytes.PutBuffer(b)
	}
}

func (a *PooledAllocator) PacketIn() *event.PacketIn { return a.packetIns.Get() }

// FreePacketIn releases p along with its Data buffer.
func (a *PooledAllocator) FreePacketIn(p *event.PacketIn) {
	if p == nil {
		return
	}
	a.FreeBuffer(p.Data)
	p.Data = nil
	a.packetIns.Put(p)
}

func (a *PooledAllocator) PacketOut() *event.PacketOut { return a.packetOuts.Get() }

func (a *PooledAllocator) FlowMod() *event.FlowMod { return a.flowMods.Get() }

func (a *PooledAllocator) FreeCommand(c event.Command) {
	switch c := c.(type) {
	case *event.PacketOut:
		a.packetOuts.Put(c)
	case *event.FlowMod:
		a.flowMods.Put(c)
	}
}

func (a *PooledAllocator) Pooled() bool { return true }

// Stats reports buffer allocation counters.
func (a *PooledAllocator) Stats() Stats { return a.bytes.Stats() }

var (
	_ Allocator = HeapAllocator{}
	_ Allocator = (*PooledAllocator)(nil)
)
