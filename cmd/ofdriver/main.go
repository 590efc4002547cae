// File: cmd/ofdriver/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// ofdriver accepts OpenFlow 1.0 switch connections and logs the events they
// produce. With --hub every punted packet is flooded back out of its switch.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/spf13/pflag"

	"github.com/momentics/hioload-ofd/control"
	"github.com/momentics/hioload-ofd/driver"
	"github.com/momentics/hioload-ofd/event"
	"github.com/momentics/hioload-ofd/internal/logging"
	"github.com/momentics/hioload-ofd/pool"
	"github.com/momentics/hioload-ofd/protocol"
)

func main() {
	cfg := driver.DefaultConfig()
	fs := pflag.NewFlagSet("ofdriver", pflag.ExitOnError)
	cfg.AddFlags(fs)
	verbosity := fs.IntP("verbosity", "v", logging.DEFAULT, "log verbosity")
	development := fs.Bool("dev", false, "human readable development logging")
	adminAddr := fs.String("admin", "127.0.0.1:8086", "diagnostics listen address, empty to disable")
	pooled := fs.Bool("pooled", true, "draw events and buffers from pools")
	hub := fs.Bool("hub", false, "flood every packet-in back out of its switch")
	_ = fs.Parse(os.Args[1:])

	log, err := logging.NewLogger(*development, *verbosity)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logging.Sync(log)

	if err := run(cfg, log, *adminAddr, *pooled, *hub); err != nil {
		logging.Fatal(log, err, "ofdriver failed")
	}
}

func run(cfg *driver.Config, log logr.Logger, adminAddr string, pooled, hub bool) error {
	var alloc pool.Allocator = pool.HeapAllocator{}
	if pooled {
		alloc = pool.NewPooledAllocator()
	}

	var d *driver.Driver
	sink := event.SinkFunc(func(ev event.Event, opts event.PostOptions) {
		handle(d, log, hub, ev, opts)
	})
	d, err := driver.New(cfg, sink, driver.WithAllocator(alloc), driver.WithLogger(log))
	if err != nil {
		return err
	}
	defer func() {
		if err := d.Close(); err != nil {
			log.Error(err, "driver close")
		}
	}()
	control.RegisterPlatformProbes(d.Probes())

	if adminAddr != "" {
		admin, err := control.NewAdminServer(adminAddr, d, d.Probes(), d.Metrics(), log)
		if err != nil {
			return err
		}
		admin.Start()
		defer func() {
			if err := admin.Stop(context.Background()); err != nil {
				log.Error(err, "admin server stop")
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return d.Run(ctx)
}

func handle(d *driver.Driver, log logr.Logger, hub bool, ev event.Event, opts event.PostOptions) {
	switch e := ev.(type) {
	case *event.SwitchJoin:
		log.Info("switch joined", "dpid", fmt.Sprintf("%016x", e.DPID), "ports", len(e.Ports))
	case *event.SwitchLeave:
		log.Info("switch left", "dpid", fmt.Sprintf("%016x", e.DPID))
	case *event.Discovery:
		log.V(logging.VERBOSE).Info("link",
			"src", fmt.Sprintf("%016x:%d", e.SrcDPID, e.SrcPort),
			"dst", fmt.Sprintf("%016x:%d", e.DstDPID, e.DstPort),
			"batched", opts.NoTrigger)
	case *event.PacketIn:
		log.V(logging.TRACE).Info("packet in", "dpid", e.DPID, "port", e.InPort,
			"flow", e.FlowHash, "flush", e.Flush)
		if hub {
			flood(d, log, e)
		}
		d.Allocator().FreePacketIn(e)
	case *event.Flush:
		log.V(logging.TRACE).Info("flush", "worker", opts.Worker)
	}
}

// flood sends pi back out of every port but its ingress.
func flood(d *driver.Driver, log logr.Logger, pi *event.PacketIn) {
	alloc := d.Allocator()
	po := alloc.PacketOut()
	po.Datapath = pi.DPID
	po.XID = pi.XID
	po.BufferID = pi.BufferID
	po.InPort = pi.InPort
	po.Actions = append(po.Actions, protocol.OutputAction{Port: protocol.PortFlood})
	if pi.BufferID == protocol.NoBuffer {
		po.Data = pi.Data
	}
	if !d.Commit([]event.Command{po}) {
		log.V(logging.DEBUG).Info("flood rejected", "dpid", pi.DPID)
		alloc.FreeCommand(po)
	}
}
