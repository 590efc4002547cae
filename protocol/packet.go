// File: protocol/packet.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Link-layer parsing of packet-in payloads: Ethernet II, 802.1Q and LLDP.

package protocol

import (
	"encoding/binary"

	"github.com/momentics/hioload-ofd/api"
)

// VLANNone is the DLVLAN value of an untagged frame.
const VLANNone uint16 = 0xffff

// Ethernet is a parsed link-layer header. Payload aliases the input.
type Ethernet struct {
	Dst     [EthAddrLen]byte
	Src     [EthAddrLen]byte
	VLAN    uint16
	VLANPCP uint8
	Type    uint16
	Payload []byte
}

// ParseEthernet parses an Ethernet II header with at most one 802.1Q tag.
func ParseEthernet(data []byte) (Ethernet, error) {
	if len(data) < EthHeaderLen {
		return Ethernet{}, api.ErrShortMessage.
			WithContext("layer", "ethernet").
			WithContext("length", len(data))
	}
	var eth Ethernet
	copy(eth.Dst[:], data[0:6])
	copy(eth.Src[:], data[6:12])
	eth.VLAN = VLANNone
	eth.Type = binary.BigEndian.Uint16(data[12:])
	off := EthHeaderLen
	if eth.Type == EthTypeVLAN {
		if len(data) < EthHeaderLen+VLANTagLen {
			return Ethernet{}, api.ErrShortMessage.
				WithContext("layer", "vlan").
				WithContext("length", len(data))
		}
		tci := binary.BigEndian.Uint16(data[14:])
		eth.VLAN = tci & 0x0fff
		eth.VLANPCP = uint8(tci >> 13)
		eth.Type = binary.BigEndian.Uint16(data[16:])
		off += VLANTagLen
	}
	eth.Payload = data[off:]
	return eth, nil
}

// AppendEthernet appends an untagged Ethernet II header followed by payload.
func AppendEthernet(b []byte, dst, src [EthAddrLen]byte, ethType uint16, payload []byte) []byte {
	b = append(b, dst[:]...)
	b = append(b, src[:]...)
	b = binary.BigEndian.AppendUint16(b, ethType)
	return append(b, payload...)
}

// LLDP TLV types used by discovery probes.
const (
	lldpTLVEnd       = 0
	lldpTLVChassisID = 1
	lldpTLVPortID    = 2
	lldpTLVTTL       = 3

	lldpChassisLocal  = 7
	lldpPortComponent = 2
)

// LLDP holds the mandatory TLVs of a discovery probe. ChassisID and PortID
// exclude their subtype octet.
type LLDP struct {
	ChassisID []byte
	PortID    []byte
	TTL       uint16
}

// ParseLLDP parses the mandatory chassis, port and TTL TLVs in order.
func ParseLLDP(data []byte) (LLDP, error) {
	var l LLDP
	for i, want := range [...]uint8{lldpTLVChassisID, lldpTLVPortID, lldpTLVTTL} {
		if len(data) < 2 {
			return LLDP{}, malformedLLDP("truncated tlv header", i)
		}
		hdr := binary.BigEndian.Uint16(data)
		typ, n := uint8(hdr>>9), int(hdr&0x1ff)
		if typ != want || len(data) < 2+n {
			return LLDP{}, malformedLLDP("unexpected tlv", i)
		}
		v := data[2 : 2+n]
		switch typ {
		case lldpTLVChassisID, lldpTLVPortID:
			if n < 2 {
				return LLDP{}, malformedLLDP("empty id tlv", i)
			}
			if typ == lldpTLVChassisID {
				l.ChassisID = v[1:]
			} else {
				l.PortID = v[1:]
			}
		case lldpTLVTTL:
			if n < 2 {
				return LLDP{}, malformedLLDP("short ttl tlv", i)
			}
			l.TTL = binary.BigEndian.Uint16(v)
		}
		data = data[2+n:]
	}
	return l, nil
}

func malformedLLDP(reason string, tlv int) error {
	return api.ErrMalformedDiscovery.WithContext("reason", reason).WithContext("tlv", tlv)
}

// Probe is the content of a discovery probe emitted by a controller: the
// datapath and port it was sent out of.
type Probe struct {
	DPID uint64
	Port uint16
	TTL  uint16
}

// DecodeProbe extracts the origin of a discovery probe from its LLDP TLVs.
func DecodeProbe(data []byte) (Probe, error) {
	l, err := ParseLLDP(data)
	if err != nil {
		return Probe{}, err
	}
	if len(l.ChassisID) < 8 || len(l.PortID) < 2 {
		return Probe{}, api.ErrMalformedDiscovery.
			WithContext("chassis_len", len(l.ChassisID)).
			WithContext("port_len", len(l.PortID))
	}
	return Probe{
		DPID: binary.BigEndian.Uint64(l.ChassisID),
		Port: binary.BigEndian.Uint16(l.PortID),
		TTL:  l.TTL,
	}, nil
}

// AppendProbe appends the LLDP payload of a discovery probe.
func AppendProbe(b []byte, p Probe) []byte {
	b = appendTLV(b, lldpTLVChassisID, 9)
	b = append(b, lldpChassisLocal)
	b = binary.BigEndian.AppendUint64(b, p.DPID)
	b = appendTLV(b, lldpTLVPortID, 3)
	b = append(b, lldpPortComponent)
	b = binary.BigEndian.AppendUint16(b, p.Port)
	b = appendTLV(b, lldpTLVTTL, 2)
	b = binary.BigEndian.AppendUint16(b, p.TTL)
	return appendTLV(b, lldpTLVEnd, 0)
}

func appendTLV(b []byte, typ uint8, n int) []byte {
	return binary.BigEndian.AppendUint16(b, uint16(typ)<<9|uint16(n))
}
