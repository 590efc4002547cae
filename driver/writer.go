// File: driver/writer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package driver

import (
	"errors"

	"github.com/momentics/hioload-ofd/api"
	"github.com/momentics/hioload-ofd/control"
	"github.com/momentics/hioload-ofd/event"
	"github.com/momentics/hioload-ofd/internal/datalog"
	"github.com/momentics/hioload-ofd/internal/logging"
	"github.com/momentics/hioload-ofd/internal/session"
	"github.com/momentics/hioload-ofd/protocol"
)

// Commit writes a batch of commands addressed to one datapath. It reports
// whether the batch was accepted for sending: false if the datapath is
// unknown, if a previous batch to it is still being written, if the
// commands do not share a destination, or if one of them does not fit the
// 16-bit message length. A rejected batch is dropped, never
// queued; the caller keeps ownership of its commands. An accepted batch is
// serialized and its commands are freed to the allocator. Acceptance does not
// imply delivery: a send that exhausts its retry budget is abandoned and only
// logged.
func (d *Driver) Commit(cmds []event.Command) bool {
	if len(cmds) == 0 {
		d.metrics.Commit(control.CommitEmpty)
		return true
	}
	if cmds[0] == nil {
		d.metrics.Commit(control.CommitInvalid)
		return false
	}
	dpid := cmds[0].DPID()
	for i, c := range cmds {
		if c == nil || c.DPID() != dpid {
			d.metrics.Commit(control.CommitInvalid)
			d.log.Error(api.ErrInvalidArgument.WithContext("dpid", dpid), "commit batch mixes destinations")
			return false
		}
		if err := protocol.CheckLen(c.Len()); err != nil {
			d.metrics.Commit(control.CommitInvalid)
			d.log.Error(err, "commit rejects oversized command", "dpid", dpid, "index", i)
			return false
		}
	}

	s := d.registry.Lookup(dpid)
	if s == nil {
		d.metrics.Commit(control.CommitUnknown)
		return false
	}
	if !s.TryAcquire(session.Writing) {
		d.metrics.Commit(control.CommitBusy)
		return false
	}
	defer s.Release(session.Writing)

	_, packetOuts := cmds[0].(*event.PacketOut)
	if packetOuts {
		s.Counters.Processed.Add(uint64(len(cmds)))
	}
	d.writePartition(s, cmds)
	if packetOuts {
		d.committed.Add(uint64(len(cmds)))
		d.datalog.Record(datalog.KindCommit, dpid, int64(len(cmds)))
	}
	d.metrics.Commit(control.CommitAccepted)
	return true
}

// writePartition serializes cmds either into one contiguous buffer or one
// buffer per command, then frees them. Output whose size disagrees with the
// commands' Len is dropped: its headers cannot be trusted to frame the stream.
func (d *Driver) writePartition(s *session.Session, cmds []event.Command) {
	if d.cfg.BatchOutput {
		total := 0
		for _, c := range cmds {
			total += c.Len()
		}
		buf := d.alloc.Buffer(total)
		b := buf[:0]
		for _, c := range cmds {
			b = c.Append(b)
			d.alloc.FreeCommand(c)
		}
		if d.encoded(s, len(b), total) {
			d.send(s, b)
		}
		d.alloc.FreeBuffer(buf)
		return
	}
	for _, c := range cmds {
		n := c.Len()
		buf := d.alloc.Buffer(n)
		b := c.Append(buf[:0])
		d.alloc.FreeCommand(c)
		if d.encoded(s, len(b), n) {
			d.send(s, b)
		}
		d.alloc.FreeBuffer(buf)
	}
}

// encoded reports whether got bytes were produced for a declared size of want.
func (d *Driver) encoded(s *session.Session, got, want int) bool {
	if got == want {
		return true
	}
	dpid, _ := s.DPID()
	d.metrics.EncodeErrors.Inc()
	d.datalog.Record(datalog.KindEncode, dpid, int64(got-want))
	s.Logger().Error(api.ErrInvalidArgument.WithContext("encoded", got).WithContext("declared", want),
		"dropping output whose size disagrees with its command length")
	return false
}

// send writes b to s under its write lock. Failures are logged and counted,
// never returned: the transport error tears the session down on its next
// read, and an abandoned write is a documented best-effort outcome.
func (d *Driver) send(s *session.Session, b []byte) bool {
	n, err := s.Send(b, d.backoff())
	d.metrics.BytesWritten.Add(float64(n))
	if err == nil {
		return true
	}
	dpid, _ := s.DPID()
	if errors.Is(err, api.ErrWriteAbandoned) {
		d.metrics.WriteAbandons.Inc()
		d.datalog.Record(datalog.KindAbandoned, dpid, int64(len(b)-n))
		s.Logger().Error(err, "write abandoned", "written", n, "size", len(b))
		return false
	}
	s.Logger().V(logging.VERBOSE).Info("write failed", "error", err.Error(), "written", n, "size", len(b))
	return false
}
