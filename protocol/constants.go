// Package protocol
// Author: momentics <momentics@gmail.com>
//
// OpenFlow 1.0 wire protocol constants.

package protocol

// Version is the only protocol version this driver speaks.
const Version = 0x01

// MsgType is the header type octet.
type MsgType uint8

const (
	TypeHello MsgType = iota
	TypeError
	TypeEchoRequest
	TypeEchoReply
	TypeVendor
	TypeFeaturesRequest
	TypeFeaturesReply
	TypeGetConfigRequest
	TypeGetConfigReply
	TypeSetConfig
	TypePacketIn
	TypeFlowRemoved
	TypePortStatus
	TypePacketOut
	TypeFlowMod
)

func (t MsgType) String() string {
	switch t {
	case TypeHello:
		return "hello"
	case TypeError:
		return "error"
	case TypeEchoRequest:
		return "echo_request"
	case TypeEchoReply:
		return "echo_reply"
	case TypeVendor:
		return "vendor"
	case TypeFeaturesRequest:
		return "features_request"
	case TypeFeaturesReply:
		return "features_reply"
	case TypeGetConfigRequest:
		return "get_config_request"
	case TypeGetConfigReply:
		return "get_config_reply"
	case TypeSetConfig:
		return "set_config"
	case TypePacketIn:
		return "packet_in"
	case TypeFlowRemoved:
		return "flow_removed"
	case TypePortStatus:
		return "port_status"
	case TypePacketOut:
		return "packet_out"
	case TypeFlowMod:
		return "flow_mod"
	default:
		return "unknown"
	}
}

// Fixed layout sizes.
const (
	HeaderLen         = 8
	LengthOffset      = 2
	MaxFrameLen       = 0xFFFF
	SwitchFeaturesLen = 32
	PhyPortLen        = 48
	PacketInDataOff   = 18 // header + buffer_id + total_len + in_port + reason + pad
	PacketOutLen      = 16
	MatchLen          = 40
	FlowModLen        = 72
	ActionOutputLen   = 8
	EthAddrLen        = 6
	MaxPortNameLen    = 16
)

// Link-layer constants.
const (
	EthTypeIPv4 = 0x0800
	EthTypeARP  = 0x0806
	EthTypeVLAN = 0x8100
	EthTypeLLDP = 0x88cc

	IPProtoICMP = 1
	IPProtoTCP  = 6
	IPProtoUDP  = 17

	EthHeaderLen  = 14
	VLANTagLen    = 4
	IPv4MinHdrLen = 20
)

// Port numbers with special meaning.
const (
	PortMax        uint16 = 0xff00
	PortInPort     uint16 = 0xfff8
	PortTable      uint16 = 0xfff9
	PortNormal     uint16 = 0xfffa
	PortFlood      uint16 = 0xfffb
	PortAll        uint16 = 0xfffc
	PortController uint16 = 0xfffd
	PortLocal      uint16 = 0xfffe
	PortNone       uint16 = 0xffff
)

// NoBuffer marks a packet-in/packet-out without a switch-side buffer.
const NoBuffer uint32 = 0xffffffff

// Flow-mod commands.
const (
	FlowAdd uint16 = iota
	FlowModify
	FlowModifyStrict
	FlowDelete
	FlowDeleteStrict
)

// Match wildcard bits.
const (
	WildcardInPort  uint32 = 1 << 0
	WildcardDLVLAN  uint32 = 1 << 1
	WildcardDLSrc   uint32 = 1 << 2
	WildcardDLDst   uint32 = 1 << 3
	WildcardDLType  uint32 = 1 << 4
	WildcardNWProto uint32 = 1 << 5
	WildcardTPSrc   uint32 = 1 << 6
	WildcardTPDst   uint32 = 1 << 7
	WildcardNWSrc   uint32 = 32 << 8
	WildcardNWDst   uint32 = 32 << 14
	WildcardDLPCP   uint32 = 1 << 20
	WildcardNWTOS   uint32 = 1 << 21
	WildcardAll     uint32 = (1 << 22) - 1
)

// Action types.
const (
	ActionOutput uint16 = 0
)
