package protocol_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-ofd/api"
	"github.com/momentics/hioload-ofd/protocol"
)

func testPort(no uint16, name string) protocol.PhyPort {
	p := protocol.PhyPort{
		PortNo: no,
		HWAddr: [6]byte{0x02, 0, 0, 0, 0, byte(no)},
		State:  1,
		Curr:   0x2a0,
	}
	copy(p.Name[:], name)
	return p
}

func TestFeaturesReplyDecode(t *testing.T) {
	in := protocol.FeaturesReply{
		XID:          7,
		DatapathID:   0x0000_0000_0000_00ab,
		NBuffers:     256,
		NTables:      2,
		Capabilities: 0xc7,
		Actions:      0xfff,
		Ports:        []protocol.PhyPort{testPort(1, "eth1"), testPort(2, "eth2")},
	}
	b := protocol.AppendFeaturesReply(nil, &in)
	require.Len(t, b, protocol.SwitchFeaturesLen+2*protocol.PhyPortLen)

	out, err := protocol.DecodeFeaturesReply(protocol.NewFrame(b))
	require.NoError(t, err)
	assert.Equal(t, in, out)
	assert.Equal(t, "eth2", out.Ports[1].NameString())
}

func TestFeaturesReplyWithoutPorts(t *testing.T) {
	b := protocol.AppendFeaturesReply(nil, &protocol.FeaturesReply{DatapathID: 1})
	out, err := protocol.DecodeFeaturesReply(protocol.NewFrame(b))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), out.DatapathID)
	assert.Empty(t, out.Ports)
}

func TestFeaturesReplyIgnoresTrailingFragment(t *testing.T) {
	in := protocol.FeaturesReply{DatapathID: 3, Ports: []protocol.PhyPort{testPort(1, "p1")}}
	b := protocol.AppendFeaturesReply(nil, &in)
	b = append(b, make([]byte, 20)...)
	binary.BigEndian.PutUint16(b[protocol.LengthOffset:], uint16(len(b)))

	out, err := protocol.DecodeFeaturesReply(protocol.NewFrame(b))
	require.NoError(t, err)
	assert.Len(t, out.Ports, 1)
}

func TestFeaturesReplyTooShort(t *testing.T) {
	b := protocol.AppendHeader(nil, protocol.Header{Version: protocol.Version, Type: protocol.TypeFeaturesReply, Length: 16})
	b = append(b, make([]byte, 8)...)
	_, err := protocol.DecodeFeaturesReply(protocol.NewFrame(b))
	assert.ErrorIs(t, err, api.ErrShortMessage)
}

func TestPacketInDecode(t *testing.T) {
	payload := []byte{1, 2, 3, 4, 5}
	b := protocol.AppendPacketIn(nil, &protocol.PacketIn{
		XID:      11,
		BufferID: protocol.NoBuffer,
		TotalLen: 60,
		InPort:   4,
		Reason:   1,
		Data:     payload,
	})
	require.Len(t, b, protocol.PacketInDataOff+len(payload))

	f := protocol.NewFrame(b)
	assert.Equal(t, protocol.TypePacketIn, f.Type())
	assert.Equal(t, uint16(len(b)), f.Length())

	pi, err := protocol.DecodePacketIn(f)
	require.NoError(t, err)
	assert.Equal(t, uint32(11), pi.XID)
	assert.Equal(t, protocol.NoBuffer, pi.BufferID)
	assert.Equal(t, uint16(60), pi.TotalLen)
	assert.Equal(t, uint16(4), pi.InPort)
	assert.Equal(t, uint8(1), pi.Reason)
	assert.Equal(t, payload, pi.Data)
}

func TestPacketInTooShort(t *testing.T) {
	b := protocol.AppendHeader(nil, protocol.Header{Version: protocol.Version, Type: protocol.TypePacketIn, Length: 12})
	b = append(b, 0, 0, 0, 0)
	_, err := protocol.DecodePacketIn(protocol.NewFrame(b))
	assert.ErrorIs(t, err, api.ErrShortMessage)
}

func TestPacketOutEncoding(t *testing.T) {
	data := make([]byte, 64)
	po := protocol.PacketOut{
		XID:      5,
		BufferID: protocol.NoBuffer,
		InPort:   protocol.PortNone,
		Actions:  []protocol.Action{protocol.OutputAction{Port: protocol.PortFlood}},
		Data:     data,
	}
	require.Equal(t, protocol.PacketOutLen+protocol.ActionOutputLen+len(data), po.Len())

	b := po.Append(nil)
	require.Len(t, b, po.Len())
	f := protocol.NewFrame(b)
	assert.Equal(t, protocol.TypePacketOut, f.Type())
	assert.Equal(t, uint16(po.Len()), f.Length())
	assert.Equal(t, uint16(protocol.ActionOutputLen), binary.BigEndian.Uint16(b[14:]))
	assert.Equal(t, protocol.PortFlood, binary.BigEndian.Uint16(b[protocol.PacketOutLen+4:]))

	// A buffered packet-out references switch memory and carries no data.
	po.BufferID = 42
	assert.Equal(t, protocol.PacketOutLen+protocol.ActionOutputLen, po.Len())
	assert.Len(t, po.Append(nil), po.Len())
}

func TestFlowModEncoding(t *testing.T) {
	fm := protocol.FlowMod{
		XID:         9,
		Match:       protocol.Match{Wildcards: protocol.WildcardAll &^ protocol.WildcardInPort, InPort: 3},
		Cookie:      0xfeed,
		Command:     protocol.FlowAdd,
		IdleTimeout: 10,
		Priority:    0x8000,
		BufferID:    protocol.NoBuffer,
		OutPort:     protocol.PortNone,
		Actions:     []protocol.Action{protocol.OutputAction{Port: 1}, protocol.OutputAction{Port: 2}},
	}
	b := fm.Append(nil)
	require.Len(t, b, protocol.FlowModLen+2*protocol.ActionOutputLen)
	assert.Equal(t, uint16(len(b)), protocol.NewFrame(b).Length())

	m := protocol.DecodeMatch(b[protocol.HeaderLen : protocol.HeaderLen+protocol.MatchLen])
	assert.Equal(t, fm.Match, m)
	assert.Equal(t, uint64(0xfeed), binary.BigEndian.Uint64(b[48:]))
	assert.Equal(t, uint16(0x8000), binary.BigEndian.Uint16(b[62:]))
}

func TestControlMessages(t *testing.T) {
	b := protocol.AppendHello(nil, 1)
	b = protocol.AppendFeaturesRequest(b, 2)
	b = protocol.AppendEchoRequest(b, 3, []byte("ping"))

	r := protocol.NewReassembler(nil)
	frames, err := r.Feed(nil, b)
	require.NoError(t, err)
	require.Len(t, frames, 3)
	assert.Equal(t, protocol.TypeHello, frames[0].Type())
	assert.Equal(t, protocol.TypeFeaturesRequest, frames[1].Type())
	assert.Equal(t, protocol.TypeEchoRequest, frames[2].Type())
	assert.Equal(t, []byte("ping"), frames[2].Payload())

	frames[2].SetType(protocol.TypeEchoReply)
	assert.Equal(t, protocol.TypeEchoReply, frames[2].Type())
	assert.Equal(t, uint32(3), frames[2].XID())
	assert.Equal(t, uint8(protocol.Version), frames[2].Version())
}

func TestCheckLen(t *testing.T) {
	assert.NoError(t, protocol.CheckLen(protocol.HeaderLen))
	assert.NoError(t, protocol.CheckLen(protocol.MaxFrameLen))

	po := &protocol.PacketOut{
		BufferID: protocol.NoBuffer,
		Actions:  []protocol.Action{protocol.OutputAction{Port: protocol.PortFlood}},
		Data:     make([]byte, protocol.MaxFrameLen-protocol.PacketOutLen-protocol.ActionOutputLen+1),
	}
	err := protocol.CheckLen(po.Len())
	require.Error(t, err)
	assert.Equal(t, api.ErrCodeInvalidArgument, api.CodeOf(err))
	assert.Error(t, protocol.CheckLen(protocol.HeaderLen-1))
}
