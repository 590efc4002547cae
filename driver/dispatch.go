// File: driver/dispatch.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package driver

import (
	"github.com/momentics/hioload-ofd/event"
	"github.com/momentics/hioload-ofd/internal/datalog"
	"github.com/momentics/hioload-ofd/internal/logging"
	"github.com/momentics/hioload-ofd/internal/session"
	"github.com/momentics/hioload-ofd/protocol"
)

// dispatch handles one complete frame. It reports whether a packet-in event
// was posted, which is what the batching controller counts. Unknown message
// types are ignored.
func (d *Driver) dispatch(w *worker, s *session.Session, f protocol.Frame, flush bool) bool {
	switch f.Type() {
	case protocol.TypeHello:
		d.handleHello(s, f)
	case protocol.TypeEchoRequest:
		f.SetType(protocol.TypeEchoReply)
		d.send(s, f.Bytes())
	case protocol.TypeFeaturesReply:
		d.handleFeaturesReply(s, f)
	case protocol.TypePacketIn:
		return d.handlePacketIn(w, s, f, flush)
	default:
		s.Logger().V(logging.TRACE).Info("ignoring message", "type", f.Type().String(), "length", f.Len())
	}
	return false
}

// handleHello answers with the controller hello, unless one was already sent
// on accept, followed by a features request.
func (d *Driver) handleHello(s *session.Session, f protocol.Frame) {
	var scratch [2 * protocol.HeaderLen]byte
	b := scratch[:0]
	if s.MarkHelloSent() {
		b = protocol.AppendHello(b, f.XID())
	}
	b = protocol.AppendFeaturesRequest(b, d.nextXID())
	d.send(s, b)
}

// handleFeaturesReply binds the datapath id, announces the switch and
// releases the discovery events queued while the id was unknown. All but the
// newest of those are posted without triggering downstream stages.
func (d *Driver) handleFeaturesReply(s *session.Session, f protocol.Frame) {
	fr, err := protocol.DecodeFeaturesReply(f)
	if err != nil {
		d.decodeError(s, err)
		return
	}
	if prev := d.registry.Bind(s, fr.DatapathID); prev != nil {
		s.Logger().Info("datapath reconnected, superseding previous session",
			"previous", prev.ID().String())
	}
	d.post(&event.SwitchJoin{
		DPID:         fr.DatapathID,
		NBuffers:     fr.NBuffers,
		NTables:      fr.NTables,
		Capabilities: fr.Capabilities,
		Actions:      fr.Actions,
		Ports:        fr.Ports,
	}, event.DefaultPost)
	d.datalog.Record(datalog.KindSwitchJoin, fr.DatapathID, int64(len(fr.Ports)))
	s.Logger().V(logging.VERBOSE).Info("switch joined", "ports", len(fr.Ports), "tables", fr.NTables)

	pending := s.Drain(fr.DatapathID)
	for i, ev := range pending {
		opts := event.DefaultPost
		opts.NoTrigger = i < len(pending)-1
		d.post(ev, opts)
	}
}

// handlePacketIn posts a discovery event for LLDP probes and a PacketIn for
// everything else. Discovery seen before the datapath id is known is queued
// on the session.
func (d *Driver) handlePacketIn(w *worker, s *session.Session, f protocol.Frame, flush bool) bool {
	msg, err := protocol.DecodePacketIn(f)
	if err != nil {
		d.decodeError(s, err)
		return false
	}
	eth, err := protocol.ParseEthernet(msg.Data)
	if err != nil {
		d.decodeError(s, err)
		return false
	}
	dpid, bound := s.DPID()

	if eth.Type == protocol.EthTypeLLDP {
		probe, err := protocol.DecodeProbe(eth.Payload)
		if err != nil {
			d.decodeError(s, err)
			return false
		}
		ev := &event.Discovery{
			SrcDPID: probe.DPID,
			SrcPort: probe.Port,
			DstDPID: dpid,
			DstPort: msg.InPort,
			TTL:     probe.TTL,
		}
		if !bound {
			s.Enqueue(ev)
			return false
		}
		d.post(ev, event.DefaultPost)
		return false
	}

	pi := d.alloc.PacketIn()
	pi.DPID = dpid
	pi.XID = msg.XID
	pi.BufferID = msg.BufferID
	pi.TotalLen = msg.TotalLen
	pi.InPort = msg.InPort
	pi.Reason = msg.Reason
	pi.Data = d.alloc.Buffer(len(msg.Data))
	copy(pi.Data, msg.Data)
	pi.Flow = protocol.ExtractMatch(msg.InPort, &eth)
	pi.FlowHash = pi.Flow.Hash()
	pi.Flush = flush
	d.post(pi, w.postOptions())
	return true
}

func (d *Driver) decodeError(s *session.Session, err error) {
	dpid, _ := s.DPID()
	d.metrics.DecodeErrors.Inc()
	d.datalog.Record(datalog.KindDecode, dpid, 1)
	s.Logger().Error(err, "dropping undecodable frame")
}
