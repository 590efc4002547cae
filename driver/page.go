// File: driver/page.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package driver

import (
	"bufio"
	"fmt"
	"io"
	"time"
)

// WritePage renders the driver diagnostics page:
//
//	DRIVER
//	SystemTime <unix nanoseconds>
//	Uptime <duration>
//	TotalSwitches <n>
//	Switch <dpid> Processed <packet-outs>
//
// with one Switch line per bound datapath, ordered by datapath id.
func (d *Driver) WritePage(w io.Writer) error {
	bw := bufio.NewWriter(w)
	now := time.Now()
	switches := d.registry.Snapshot()
	fmt.Fprintf(bw, "DRIVER\n")
	fmt.Fprintf(bw, "SystemTime %d\n", now.UnixNano())
	fmt.Fprintf(bw, "Uptime %s\n", now.Sub(d.started).Truncate(time.Millisecond))
	fmt.Fprintf(bw, "TotalSwitches %d\n", len(switches))
	for _, s := range switches {
		dpid, _ := s.DPID()
		fmt.Fprintf(bw, "Switch %016x Processed %d\n", dpid, s.Counters.Processed.Load())
	}
	return bw.Flush()
}
