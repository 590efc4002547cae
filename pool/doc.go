// Package pool
// Author: momentics <momentics@gmail.com>
//
// Allocation strategies for protocol objects. The driver obtains events,
// commands and byte buffers through an Allocator and returns them when done;
// HeapAllocator leaves reclamation to the garbage collector while
// PooledAllocator recycles objects through sync.Pool and size-classed buffers.
package pool
