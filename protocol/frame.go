// File: protocol/frame.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Frame is one complete length-delimited message as it appears on the wire.

package protocol

import (
	"encoding/binary"

	"github.com/momentics/hioload-ofd/api"
)

// Frame views a complete message. A frame either references the read buffer
// it was sliced from or owns a spliced copy; Owned reports the latter.
type Frame struct {
	b     []byte
	owned bool
}

// NewFrame wraps a complete message without copying.
func NewFrame(b []byte) Frame {
	return Frame{b: b}
}

// Bytes returns the raw message including its header.
func (f Frame) Bytes() []byte { return f.b }

// Owned reports whether the frame holds a spliced copy rather than a view.
func (f Frame) Owned() bool { return f.owned }

// Len returns the number of bytes in the frame.
func (f Frame) Len() int { return len(f.b) }

// Version returns the header version octet.
func (f Frame) Version() uint8 { return f.b[0] }

// Type returns the header message type.
func (f Frame) Type() MsgType { return MsgType(f.b[1]) }

// Length returns the declared total length.
func (f Frame) Length() uint16 { return binary.BigEndian.Uint16(f.b[LengthOffset:]) }

// XID returns the transaction id.
func (f Frame) XID() uint32 { return binary.BigEndian.Uint32(f.b[4:]) }

// Payload returns the bytes following the fixed header.
func (f Frame) Payload() []byte { return f.b[HeaderLen:] }

// SetType rewrites the message type in place.
func (f Frame) SetType(t MsgType) { f.b[1] = byte(t) }

// Header is the fixed message prefix.
type Header struct {
	Version uint8
	Type    MsgType
	Length  uint16
	XID     uint32
}

// CheckLen reports whether a message of n bytes can be described by the
// 16-bit header length. The Append encoders do not check; callers building
// messages from external data must.
func CheckLen(n int) error {
	if n < HeaderLen || n > MaxFrameLen {
		return api.ErrInvalidArgument.WithContext("length", n).WithContext("max", MaxFrameLen)
	}
	return nil
}

// AppendHeader appends h in wire order.
func AppendHeader(b []byte, h Header) []byte {
	b = append(b, h.Version, byte(h.Type))
	b = binary.BigEndian.AppendUint16(b, h.Length)
	return binary.BigEndian.AppendUint32(b, h.XID)
}

// PutHeader writes h into the first HeaderLen bytes of b.
func PutHeader(b []byte, h Header) {
	b[0] = h.Version
	b[1] = byte(h.Type)
	binary.BigEndian.PutUint16(b[2:], h.Length)
	binary.BigEndian.PutUint32(b[4:], h.XID)
}
