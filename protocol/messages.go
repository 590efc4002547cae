// File: protocol/messages.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Fixed-layout message codecs. All multi-byte integers are big-endian.

package protocol

import (
	"bytes"
	"encoding/binary"

	"github.com/momentics/hioload-ofd/api"
)

// AppendHello appends a hello message.
func AppendHello(b []byte, xid uint32) []byte {
	return AppendHeader(b, Header{Version: Version, Type: TypeHello, Length: HeaderLen, XID: xid})
}

// AppendFeaturesRequest appends a features request.
func AppendFeaturesRequest(b []byte, xid uint32) []byte {
	return AppendHeader(b, Header{Version: Version, Type: TypeFeaturesRequest, Length: HeaderLen, XID: xid})
}

// AppendEchoRequest appends an echo request carrying data. The encoded size
// must not exceed MaxFrameLen.
func AppendEchoRequest(b []byte, xid uint32, data []byte) []byte {
	b = AppendHeader(b, Header{Version: Version, Type: TypeEchoRequest, Length: uint16(HeaderLen + len(data)), XID: xid})
	return append(b, data...)
}

// PhyPort describes one physical switch port.
type PhyPort struct {
	PortNo     uint16
	HWAddr     [EthAddrLen]byte
	Name       [MaxPortNameLen]byte
	Config     uint32
	State      uint32
	Curr       uint32
	Advertised uint32
	Supported  uint32
	Peer       uint32
}

// NameString returns the port name without trailing NULs.
func (p *PhyPort) NameString() string {
	if i := bytes.IndexByte(p.Name[:], 0); i >= 0 {
		return string(p.Name[:i])
	}
	return string(p.Name[:])
}

func decodePhyPort(b []byte) PhyPort {
	var p PhyPort
	p.PortNo = binary.BigEndian.Uint16(b)
	copy(p.HWAddr[:], b[2:8])
	copy(p.Name[:], b[8:24])
	p.Config = binary.BigEndian.Uint32(b[24:])
	p.State = binary.BigEndian.Uint32(b[28:])
	p.Curr = binary.BigEndian.Uint32(b[32:])
	p.Advertised = binary.BigEndian.Uint32(b[36:])
	p.Supported = binary.BigEndian.Uint32(b[40:])
	p.Peer = binary.BigEndian.Uint32(b[44:])
	return p
}

// AppendPhyPort appends p in wire order.
func AppendPhyPort(b []byte, p *PhyPort) []byte {
	b = binary.BigEndian.AppendUint16(b, p.PortNo)
	b = append(b, p.HWAddr[:]...)
	b = append(b, p.Name[:]...)
	b = binary.BigEndian.AppendUint32(b, p.Config)
	b = binary.BigEndian.AppendUint32(b, p.State)
	b = binary.BigEndian.AppendUint32(b, p.Curr)
	b = binary.BigEndian.AppendUint32(b, p.Advertised)
	b = binary.BigEndian.AppendUint32(b, p.Supported)
	return binary.BigEndian.AppendUint32(b, p.Peer)
}

// FeaturesReply is the decoded switch features message.
type FeaturesReply struct {
	XID          uint32
	DatapathID   uint64
	NBuffers     uint32
	NTables      uint8
	Capabilities uint32
	Actions      uint32
	Ports        []PhyPort
}

// DecodeFeaturesReply parses a features reply. The port count is derived from
// the declared length; a trailing fragment shorter than one port is ignored.
func DecodeFeaturesReply(f Frame) (FeaturesReply, error) {
	b := f.Bytes()
	if len(b) < SwitchFeaturesLen {
		return FeaturesReply{}, api.ErrShortMessage.
			WithContext("type", f.Type().String()).
			WithContext("length", len(b))
	}
	r := FeaturesReply{
		XID:          f.XID(),
		DatapathID:   binary.BigEndian.Uint64(b[8:]),
		NBuffers:     binary.BigEndian.Uint32(b[16:]),
		NTables:      b[20],
		Capabilities: binary.BigEndian.Uint32(b[24:]),
		Actions:      binary.BigEndian.Uint32(b[28:]),
	}
	n := (len(b) - SwitchFeaturesLen) / PhyPortLen
	if n > 0 {
		r.Ports = make([]PhyPort, n)
		for i := range r.Ports {
			off := SwitchFeaturesLen + i*PhyPortLen
			r.Ports[i] = decodePhyPort(b[off : off+PhyPortLen])
		}
	}
	return r, nil
}

// AppendFeaturesReply appends r in wire order.
func AppendFeaturesReply(b []byte, r *FeaturesReply) []byte {
	length := SwitchFeaturesLen + len(r.Ports)*PhyPortLen
	b = AppendHeader(b, Header{Version: Version, Type: TypeFeaturesReply, Length: uint16(length), XID: r.XID})
	b = binary.BigEndian.AppendUint64(b, r.DatapathID)
	b = binary.BigEndian.AppendUint32(b, r.NBuffers)
	b = append(b, r.NTables, 0, 0, 0)
	b = binary.BigEndian.AppendUint32(b, r.Capabilities)
	b = binary.BigEndian.AppendUint32(b, r.Actions)
	for i := range r.Ports {
		b = AppendPhyPort(b, &r.Ports[i])
	}
	return b
}

// PacketIn is the decoded packet-in message. Data aliases the frame.
type PacketIn struct {
	XID      uint32
	BufferID uint32
	TotalLen uint16
	InPort   uint16
	Reason   uint8
	Data     []byte
}

// DecodePacketIn parses a packet-in. TotalLen keeps the declared value while
// Data always spans the rest of the frame.
func DecodePacketIn(f Frame) (PacketIn, error) {
	b := f.Bytes()
	if len(b) < PacketInDataOff {
		return PacketIn{}, api.ErrShortMessage.
			WithContext("type", f.Type().String()).
			WithContext("length", len(b))
	}
	return PacketIn{
		XID:      f.XID(),
		BufferID: binary.BigEndian.Uint32(b[8:]),
		TotalLen: binary.BigEndian.Uint16(b[12:]),
		InPort:   binary.BigEndian.Uint16(b[14:]),
		Reason:   b[16],
		Data:     b[PacketInDataOff:],
	}, nil
}

// AppendPacketIn appends p in wire order. The encoded size must not exceed
// MaxFrameLen.
func AppendPacketIn(b []byte, p *PacketIn) []byte {
	b = AppendHeader(b, Header{Version: Version, Type: TypePacketIn, Length: uint16(PacketInDataOff + len(p.Data)), XID: p.XID})
	b = binary.BigEndian.AppendUint32(b, p.BufferID)
	b = binary.BigEndian.AppendUint16(b, p.TotalLen)
	b = binary.BigEndian.AppendUint16(b, p.InPort)
	b = append(b, p.Reason, 0)
	return append(b, p.Data...)
}

// Action is one entry of a packet-out or flow-mod action list.
type Action interface {
	Len() int
	Append(b []byte) []byte
}

// OutputAction forwards the packet to Port.
type OutputAction struct {
	Port   uint16
	MaxLen uint16
}

func (a OutputAction) Len() int { return ActionOutputLen }

func (a OutputAction) Append(b []byte) []byte {
	b = binary.BigEndian.AppendUint16(b, ActionOutput)
	b = binary.BigEndian.AppendUint16(b, ActionOutputLen)
	b = binary.BigEndian.AppendUint16(b, a.Port)
	return binary.BigEndian.AppendUint16(b, a.MaxLen)
}

func actionsLen(actions []Action) int {
	n := 0
	for _, a := range actions {
		n += a.Len()
	}
	return n
}

// PacketOut instructs the switch to emit a packet.
type PacketOut struct {
	XID      uint32
	BufferID uint32
	InPort   uint16
	Actions  []Action
	Data     []byte
}

// Len returns the encoded size. Data is sent only when BufferID is NoBuffer.
func (p *PacketOut) Len() int {
	n := PacketOutLen + actionsLen(p.Actions)
	if p.BufferID == NoBuffer {
		n += len(p.Data)
	}
	return n
}

// Append appends p in wire order. Len must not exceed MaxFrameLen; see
// CheckLen.
func (p *PacketOut) Append(b []byte) []byte {
	al := actionsLen(p.Actions)
	b = AppendHeader(b, Header{Version: Version, Type: TypePacketOut, Length: uint16(p.Len()), XID: p.XID})
	b = binary.BigEndian.AppendUint32(b, p.BufferID)
	b = binary.BigEndian.AppendUint16(b, p.InPort)
	b = binary.BigEndian.AppendUint16(b, uint16(al))
	for _, a := range p.Actions {
		b = a.Append(b)
	}
	if p.BufferID == NoBuffer {
		b = append(b, p.Data...)
	}
	return b
}

// FlowMod adds, modifies or deletes a flow table entry.
type FlowMod struct {
	XID         uint32
	Match       Match
	Cookie      uint64
	Command     uint16
	IdleTimeout uint16
	HardTimeout uint16
	Priority    uint16
	BufferID    uint32
	OutPort     uint16
	Flags       uint16
	Actions     []Action
}

// Len returns the encoded size.
func (m *FlowMod) Len() int {
	return FlowModLen + actionsLen(m.Actions)
}

// Append appends m in wire order. Len must not exceed MaxFrameLen.
func (m *FlowMod) Append(b []byte) []byte {
	b = AppendHeader(b, Header{Version: Version, Type: TypeFlowMod, Length: uint16(m.Len()), XID: m.XID})
	b = m.Match.Append(b)
	b = binary.BigEndian.AppendUint64(b, m.Cookie)
	b = binary.BigEndian.AppendUint16(b, m.Command)
	b = binary.BigEndian.AppendUint16(b, m.IdleTimeout)
	b = binary.BigEndian.AppendUint16(b, m.HardTimeout)
	b = binary.BigEndian.AppendUint16(b, m.Priority)
	b = binary.BigEndian.AppendUint32(b, m.BufferID)
	b = binary.BigEndian.AppendUint16(b, m.OutPort)
	b = binary.BigEndian.AppendUint16(b, m.Flags)
	for _, a := range m.Actions {
		b = a.Append(b)
	}
	return b
}
