// File: protocol/reassembler.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Stream-to-message reassembly. Complete frames contained in a read are
// referenced in place; only frames straddling two reads are spliced into a
// freshly allocated buffer.

package protocol

import (
	"encoding/binary"

	"github.com/momentics/hioload-ofd/api"
)

// DefaultPendingCap is the initial capacity of the per-connection leftover
// region. It grows on demand but never beyond one maximum-size frame.
const DefaultPendingCap = 1024

// Reassembler carries the trailing incomplete frame of one connection across
// reads. It is not safe for concurrent use; the scheduled flag of the owning
// session serializes access.
type Reassembler struct {
	pending []byte
	alloc   func(n int) []byte
}

// NewReassembler returns a reassembler that obtains spliced frame buffers
// from alloc. A nil alloc means plain make.
func NewReassembler(alloc func(n int) []byte) *Reassembler {
	if alloc == nil {
		alloc = func(n int) []byte { return make([]byte, n) }
	}
	return &Reassembler{
		pending: make([]byte, 0, DefaultPendingCap),
		alloc:   alloc,
	}
}

// Pending returns the number of leftover bytes held from previous reads.
func (r *Reassembler) Pending() int { return len(r.pending) }

// Reset drops any leftover bytes.
func (r *Reassembler) Reset() { r.pending = r.pending[:0] }

// Feed appends to dst every frame completed by chunk and keeps the trailing
// partial frame for the next call. Frames that are not Owned alias chunk and
// are valid only until chunk is reused.
//
// A declared length shorter than the header aborts the read: the remainder of
// chunk and any leftover are discarded and api.ErrFraming is returned along
// with the frames completed before the bad header.
func (r *Reassembler) Feed(dst []Frame, chunk []byte) ([]Frame, error) {
	if len(r.pending) > 0 {
		if len(r.pending) < HeaderLen {
			need := HeaderLen - len(r.pending)
			if len(chunk) < need {
				r.pending = append(r.pending, chunk...)
				return dst, nil
			}
			r.pending = append(r.pending, chunk[:need]...)
			chunk = chunk[need:]
		}

		length := int(binary.BigEndian.Uint16(r.pending[LengthOffset:]))
		if length < HeaderLen {
			r.pending = r.pending[:0]
			return dst, framingError(length)
		}
		rest := length - len(r.pending)
		if rest > len(chunk) {
			r.pending = append(r.pending, chunk...)
			return dst, nil
		}

		b := r.alloc(length)[:length]
		n := copy(b, r.pending)
		copy(b[n:], chunk[:rest])
		chunk = chunk[rest:]
		r.pending = r.pending[:0]
		dst = append(dst, Frame{b: b, owned: true})
	}

	for len(chunk) > 0 {
		if len(chunk) < HeaderLen {
			r.pending = append(r.pending[:0], chunk...)
			break
		}
		length := int(binary.BigEndian.Uint16(chunk[LengthOffset:]))
		if length < HeaderLen {
			return dst, framingError(length)
		}
		if length > len(chunk) {
			r.pending = append(r.pending[:0], chunk...)
			break
		}
		dst = append(dst, Frame{b: chunk[:length:length]})
		chunk = chunk[length:]
	}
	return dst, nil
}

func framingError(length int) error {
	return api.ErrFraming.WithContext("declared_length", length)
}
