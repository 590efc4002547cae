package driver

import (
	"encoding/binary"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-ofd/fake"
	"github.com/momentics/hioload-ofd/internal/session"
	"github.com/momentics/hioload-ofd/protocol"
)

var (
	macA          = [6]byte{0x02, 0, 0, 0, 0, 0x0a}
	macB          = [6]byte{0x02, 0, 0, 0, 0, 0x0b}
	lldpMulticast = [6]byte{0x01, 0x80, 0xc2, 0x00, 0x00, 0x0e}
	hostA         = netip.MustParseAddr("10.0.0.1")
	hostB         = netip.MustParseAddr("10.0.0.2")
)

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.ListenAddr = ""
	cfg.Workers = 1
	cfg.WriteBackoffMin = 0
	cfg.WriteBackoffMax = 0
	cfg.MaxWriteAttempts = 3
	return cfg
}

func newTestDriver(t *testing.T, cfg *Config, opts ...Option) (*Driver, *fake.Sink) {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	sink := &fake.Sink{}
	base := []Option{
		WithReadiness(fake.NewReadiness()),
		WithFatalHandler(func(err error) { t.Errorf("unexpected fatal: %v", err) }),
	}
	d, err := New(cfg, sink, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d, sink
}

func attach(t *testing.T, d *Driver) (*fake.Conn, *session.Session) {
	t.Helper()
	c := fake.NewConn()
	require.NoError(t, d.Attach(c))
	s := d.registry.LookupHandle(c.Handle())
	require.NotNil(t, s)
	return c, s
}

// serveOnce runs one worker cycle on s.
func serveOnce(t *testing.T, w *worker, s *session.Session) bool {
	t.Helper()
	require.True(t, s.TryAcquire(session.Scheduled), "session already scheduled")
	return w.serve(s)
}

func featuresReply(dpid uint64, ports ...uint16) []byte {
	fr := &protocol.FeaturesReply{
		XID:          1,
		DatapathID:   dpid,
		NBuffers:     256,
		NTables:      2,
		Capabilities: 0xc7,
		Actions:      0xfff,
	}
	for _, p := range ports {
		pp := protocol.PhyPort{PortNo: p, HWAddr: macA}
		copy(pp.Name[:], "eth")
		fr.Ports = append(fr.Ports, pp)
	}
	return protocol.AppendFeaturesReply(nil, fr)
}

func tcpPayload(src, dst netip.Addr, sport, dport uint16) []byte {
	l4 := make([]byte, 20)
	binary.BigEndian.PutUint16(l4, sport)
	binary.BigEndian.PutUint16(l4[2:], dport)
	l4[12] = 5 << 4

	h := make([]byte, protocol.IPv4MinHdrLen)
	h[0] = 0x45
	binary.BigEndian.PutUint16(h[2:], uint16(len(h)+len(l4)))
	h[8] = 64
	h[9] = protocol.IPProtoTCP
	s, d := src.As4(), dst.As4()
	copy(h[12:], s[:])
	copy(h[16:], d[:])
	return protocol.AppendEthernet(nil, macB, macA, protocol.EthTypeIPv4, append(h, l4...))
}

func packetIn(xid uint32, inPort uint16, data []byte) []byte {
	return protocol.AppendPacketIn(nil, &protocol.PacketIn{
		XID:      xid,
		BufferID: protocol.NoBuffer,
		TotalLen: uint16(len(data)),
		InPort:   inPort,
		Data:     data,
	})
}

func probeIn(inPort uint16, from protocol.Probe) []byte {
	eth := protocol.AppendEthernet(nil, lldpMulticast, macA, protocol.EthTypeLLDP, protocol.AppendProbe(nil, from))
	return packetIn(0, inPort, eth)
}
