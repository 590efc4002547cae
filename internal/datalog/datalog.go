// Package datalog
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// In-memory diagnostic log. Hot paths append fixed-size records to a ring;
// the ring is dumped to disk as a msgpack stream when a connection is torn
// down and, best effort, before a fatal exit.

package datalog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/momentics/hioload-ofd/internal/logging"
)

// Record kinds written by the driver.
const (
	KindCommit      = "commit"
	KindFraming     = "framing"
	KindDecode      = "decode"
	KindAbandoned   = "abandoned"
	KindEncode      = "encode"
	KindSwitchJoin  = "join"
	KindSwitchLeave = "leave"
)

// DefaultCapacity is the ring size used when none is configured.
const DefaultCapacity = 4096

// Entry is one diagnostic record.
type Entry struct {
	Time  int64  `msgpack:"t"`
	Kind  string `msgpack:"k"`
	DPID  uint64 `msgpack:"d"`
	Value int64  `msgpack:"v"`
}

// Manager owns the ring and its dumps. A Manager with an empty directory
// records in memory but never writes files.
type Manager struct {
	mu    sync.Mutex
	ring  []Entry
	next  int
	full  bool
	dir   string
	dumps int
	now   func() time.Time
	log   logr.Logger
}

// New returns a manager holding up to capacity records and dumping into dir.
func New(capacity int, dir string, log logr.Logger) *Manager {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Manager{
		ring: make([]Entry, capacity),
		dir:  dir,
		now:  time.Now,
		log:  log.WithName("datalog"),
	}
}

// Record appends an entry, overwriting the oldest once the ring is full.
func (m *Manager) Record(kind string, dpid uint64, value int64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.ring[m.next] = Entry{Time: m.now().UnixNano(), Kind: kind, DPID: dpid, Value: value}
	m.next++
	if m.next == len(m.ring) {
		m.next = 0
		m.full = true
	}
	m.mu.Unlock()
}

// Len returns the number of buffered entries.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lenLocked()
}

func (m *Manager) lenLocked() int {
	if m.full {
		return len(m.ring)
	}
	return m.next
}

// Entries returns the buffered entries, oldest first.
func (m *Manager) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entriesLocked()
}

func (m *Manager) entriesLocked() []Entry {
	out := make([]Entry, 0, m.lenLocked())
	if m.full {
		out = append(out, m.ring[m.next:]...)
	}
	return append(out, m.ring[:m.next]...)
}

// WriteTo encodes the buffered entries, oldest first, as a msgpack stream.
func (m *Manager) WriteTo(w io.Writer) (int64, error) {
	entries := m.Entries()
	cw := &countingWriter{w: w}
	enc := msgpack.NewEncoder(cw)
	for i := range entries {
		if err := enc.Encode(&entries[i]); err != nil {
			return cw.n, fmt.Errorf("encode datalog entry: %w", err)
		}
	}
	return cw.n, nil
}

// Dump writes the buffered entries to a new file in the configured directory
// and clears the ring. It returns the file path, or "" when nothing was
// written.
func (m *Manager) Dump() (string, error) {
	if m == nil {
		return "", nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dir == "" || m.lenLocked() == 0 {
		return "", nil
	}
	entries := m.entriesLocked()
	m.dumps++
	name := filepath.Join(m.dir, fmt.Sprintf("datalog-%d-%04d.msgpack", m.now().Unix(), m.dumps))
	if err := writeFile(name, entries); err != nil {
		return "", err
	}
	m.next, m.full = 0, false
	m.log.V(logging.DEBUG).Info("Dumped data log", "path", name, "entries", len(entries))
	return name, nil
}

func writeFile(name string, entries []Entry) (err error) {
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create datalog dump: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close datalog dump: %w", cerr)
		}
	}()
	bw := bufio.NewWriter(f)
	enc := msgpack.NewEncoder(bw)
	for i := range entries {
		if err := enc.Encode(&entries[i]); err != nil {
			return fmt.Errorf("encode datalog entry: %w", err)
		}
	}
	return bw.Flush()
}

// Read decodes a msgpack stream produced by WriteTo or Dump.
func Read(r io.Reader) ([]Entry, error) {
	dec := msgpack.NewDecoder(r)
	var out []Entry
	for {
		var e Entry
		if err := dec.Decode(&e); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, fmt.Errorf("decode datalog entry: %w", err)
		}
		out = append(out, e)
	}
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
