// Package event
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Application-facing events posted by the driver and the commands
// applications hand back to it.

package event

import (
	"github.com/momentics/hioload-ofd/protocol"
)

// Kind identifies an inbound event type.
type Kind uint8

const (
	KindSwitchJoin Kind = iota + 1
	KindSwitchLeave
	KindDiscovery
	KindPacketIn
	KindFlush
)

func (k Kind) String() string {
	switch k {
	case KindSwitchJoin:
		return "switch_join"
	case KindSwitchLeave:
		return "switch_leave"
	case KindDiscovery:
		return "discovery"
	case KindPacketIn:
		return "packet_in"
	case KindFlush:
		return "flush"
	default:
		return "unknown"
	}
}

// Event is an inbound event.
type Event interface {
	Kind() Kind
}

// SwitchJoin is posted once a switch completes its features handshake.
type SwitchJoin struct {
	DPID         uint64
	NBuffers     uint32
	NTables      uint8
	Capabilities uint32
	Actions      uint32
	Ports        []protocol.PhyPort
}

func (*SwitchJoin) Kind() Kind { return KindSwitchJoin }

// SwitchLeave is posted when a switch with a bound identity disconnects.
type SwitchLeave struct {
	DPID uint64
}

func (*SwitchLeave) Kind() Kind { return KindSwitchLeave }

// Discovery reports that a probe sent out of SrcDPID:SrcPort was received on
// DstDPID:DstPort.
type Discovery struct {
	SrcDPID uint64
	SrcPort uint16
	DstDPID uint64
	DstPort uint16
	TTL     uint16
}

func (*Discovery) Kind() Kind { return KindDiscovery }

// PacketIn is a packet punted to the controller. Data is owned by the event.
type PacketIn struct {
	DPID     uint64
	XID      uint32
	BufferID uint32
	TotalLen uint16
	InPort   uint16
	Reason   uint8
	Data     []byte

	// Flow holds the exact-match fields of Data and FlowHash their digest.
	Flow     protocol.Match
	FlowHash uint64

	// Flush is set on the packet that closes a batch.
	Flush bool
}

func (*PacketIn) Kind() Kind { return KindPacketIn }

// Reset clears p for reuse, keeping the capacity of Data.
func (p *PacketIn) Reset() {
	*p = PacketIn{Data: p.Data[:0]}
}

// Flush forces downstream stages to drain partial batches.
type Flush struct{}

func (*Flush) Kind() Kind { return KindFlush }
