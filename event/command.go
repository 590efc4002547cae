// File: event/command.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package event

import "github.com/momentics/hioload-ofd/protocol"

// Command is an outbound instruction addressed to one switch.
type Command interface {
	DPID() uint64
	// Len is the exact encoded size.
	Len() int
	// Append encodes the command onto b.
	Append(b []byte) []byte
}

// PacketOut sends a packet through a switch.
type PacketOut struct {
	Datapath uint64
	protocol.PacketOut
}

func (p *PacketOut) DPID() uint64 { return p.Datapath }

// Reset clears p for reuse, keeping the capacity of Actions. Data is not
// owned by the command and is dropped.
func (p *PacketOut) Reset() {
	p.Datapath = 0
	p.PacketOut = protocol.PacketOut{Actions: p.Actions[:0]}
}

// FlowMod changes a switch flow table.
type FlowMod struct {
	Datapath uint64
	protocol.FlowMod
}

func (m *FlowMod) DPID() uint64 { return m.Datapath }

// Reset clears m for reuse, keeping the capacity of Actions.
func (m *FlowMod) Reset() {
	m.Datapath = 0
	m.FlowMod = protocol.FlowMod{Actions: m.Actions[:0]}
}
