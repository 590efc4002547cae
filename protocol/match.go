// File: protocol/match.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

import (
	"encoding/binary"
	"net/netip"

	"github.com/cespare/xxhash/v2"
)

// Match holds the flow-identifying fields of a packet in ofp_match layout.
type Match struct {
	Wildcards uint32
	InPort    uint16
	DLSrc     [EthAddrLen]byte
	DLDst     [EthAddrLen]byte
	DLVLAN    uint16
	DLVLANPCP uint8
	DLType    uint16
	NWTos     uint8
	NWProto   uint8
	NWSrc     uint32
	NWDst     uint32
	TPSrc     uint16
	TPDst     uint16
}

// Append appends m in wire order.
func (m *Match) Append(b []byte) []byte {
	b = binary.BigEndian.AppendUint32(b, m.Wildcards)
	b = binary.BigEndian.AppendUint16(b, m.InPort)
	b = append(b, m.DLSrc[:]...)
	b = append(b, m.DLDst[:]...)
	b = binary.BigEndian.AppendUint16(b, m.DLVLAN)
	b = append(b, m.DLVLANPCP, 0)
	b = binary.BigEndian.AppendUint16(b, m.DLType)
	b = append(b, m.NWTos, m.NWProto, 0, 0)
	b = binary.BigEndian.AppendUint32(b, m.NWSrc)
	b = binary.BigEndian.AppendUint32(b, m.NWDst)
	b = binary.BigEndian.AppendUint16(b, m.TPSrc)
	return binary.BigEndian.AppendUint16(b, m.TPDst)
}

// DecodeMatch parses a MatchLen-byte ofp_match.
func DecodeMatch(b []byte) Match {
	var m Match
	m.Wildcards = binary.BigEndian.Uint32(b)
	m.InPort = binary.BigEndian.Uint16(b[4:])
	copy(m.DLSrc[:], b[6:12])
	copy(m.DLDst[:], b[12:18])
	m.DLVLAN = binary.BigEndian.Uint16(b[18:])
	m.DLVLANPCP = b[20]
	m.DLType = binary.BigEndian.Uint16(b[22:])
	m.NWTos = b[24]
	m.NWProto = b[25]
	m.NWSrc = binary.BigEndian.Uint32(b[28:])
	m.NWDst = binary.BigEndian.Uint32(b[32:])
	m.TPSrc = binary.BigEndian.Uint16(b[36:])
	m.TPDst = binary.BigEndian.Uint16(b[38:])
	return m
}

// Hash returns a stable 64-bit digest of the exact-match fields, suitable for
// sharding flows across downstream workers.
func (m *Match) Hash() uint64 {
	var buf [MatchLen]byte
	return xxhash.Sum64(m.Append(buf[:0]))
}

// SrcAddr returns the network source as an IPv4 address.
func (m *Match) SrcAddr() netip.Addr { return addr4(m.NWSrc) }

// DstAddr returns the network destination as an IPv4 address.
func (m *Match) DstAddr() netip.Addr { return addr4(m.NWDst) }

func addr4(v uint32) netip.Addr {
	var a [4]byte
	binary.BigEndian.PutUint32(a[:], v)
	return netip.AddrFrom4(a)
}

// ExtractMatch derives the exact-match fields of a received packet the way a
// switch would: ARP carries its opcode in NWProto and its protocol addresses in
// NWSrc/NWDst, ICMP carries type and code in TPSrc/TPDst, and transport ports
// are read only from unfragmented IPv4 datagrams.
func ExtractMatch(inPort uint16, eth *Ethernet) Match {
	m := Match{
		InPort:    inPort,
		DLSrc:     eth.Src,
		DLDst:     eth.Dst,
		DLVLAN:    eth.VLAN,
		DLVLANPCP: eth.VLANPCP,
		DLType:    eth.Type,
	}
	p := eth.Payload
	switch eth.Type {
	case EthTypeARP:
		// htype(2) ptype(2) hlen(1) plen(1) oper(2) sha(6) spa(4) tha(6) tpa(4)
		if len(p) >= 28 && p[4] == EthAddrLen && p[5] == 4 {
			m.NWProto = uint8(binary.BigEndian.Uint16(p[6:]))
			m.NWSrc = binary.BigEndian.Uint32(p[14:])
			m.NWDst = binary.BigEndian.Uint32(p[24:])
		}
	case EthTypeIPv4:
		if len(p) < IPv4MinHdrLen || p[0]>>4 != 4 {
			break
		}
		ihl := int(p[0]&0x0f) * 4
		m.NWTos = p[1] & 0xfc
		m.NWProto = p[9]
		m.NWSrc = binary.BigEndian.Uint32(p[12:])
		m.NWDst = binary.BigEndian.Uint32(p[16:])
		fragOff := binary.BigEndian.Uint16(p[6:]) & 0x1fff
		if ihl < IPv4MinHdrLen || len(p) < ihl || fragOff != 0 {
			break
		}
		l4 := p[ihl:]
		switch m.NWProto {
		case IPProtoTCP, IPProtoUDP:
			if len(l4) >= 4 {
				m.TPSrc = binary.BigEndian.Uint16(l4)
				m.TPDst = binary.BigEndian.Uint16(l4[2:])
			}
		case IPProtoICMP:
			if len(l4) >= 2 {
				m.TPSrc = uint16(l4[0])
				m.TPDst = uint16(l4[1])
			}
		}
	}
	return m
}
