// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Prometheus collectors for the driver hot path.

package control

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	Namespace = "ofdriver"

	subsystemWire    = "wire"
	subsystemEvents  = "events"
	subsystemCommit  = "commit"
	subsystemSession = "session"
	subsystemBatch   = "batch"
)

// Commit outcomes.
const (
	CommitAccepted = "accepted"
	CommitBusy     = "busy"
	CommitUnknown  = "unknown"
	CommitEmpty    = "empty"
	CommitInvalid  = "invalid"
)

// Metrics groups every collector the driver updates. Each instance owns its
// registry so tests and embedded drivers never collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	Frames        prometheus.Counter
	BytesRead     prometheus.Counter
	BytesWritten  prometheus.Counter
	FramingErrors prometheus.Counter
	DecodeErrors  prometheus.Counter
	EncodeErrors  prometheus.Counter
	Events        *prometheus.CounterVec
	Commits       *prometheus.CounterVec
	WriteAbandons prometheus.Counter
	Sessions      prometheus.Gauge
	BatchTarget   *prometheus.GaugeVec
	BatchSize     prometheus.Histogram
}

// NewMetrics builds and registers the driver collectors together with the
// process and Go runtime collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: subsystemWire,
			Name:      "frames_total",
			Help:      "Complete protocol frames reassembled from switch connections.",
		}),
		BytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: subsystemWire,
			Name:      "read_bytes_total",
			Help:      "Bytes read from switch connections.",
		}),
		BytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: subsystemWire,
			Name:      "written_bytes_total",
			Help:      "Bytes written to switch connections.",
		}),
		FramingErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: subsystemWire,
			Name:      "framing_errors_total",
			Help:      "Reads aborted because a frame declared an invalid length.",
		}),
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: subsystemWire,
			Name:      "decode_errors_total",
			Help:      "Frames dropped because their payload could not be decoded.",
		}),
		EncodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: subsystemWire,
			Name:      "encode_errors_total",
			Help:      "Outbound writes dropped because a command encoded to a size other than its declared length.",
		}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: subsystemEvents,
			Name:      "posted_total",
			Help:      "Events posted upstream, by kind.",
		}, []string{"kind"}),
		Commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: subsystemCommit,
			Name:      "partitions_total",
			Help:      "Outbound partitions by commit outcome.",
		}, []string{"outcome"}),
		WriteAbandons: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: subsystemCommit,
			Name:      "write_abandoned_total",
			Help:      "Sends given up after the write retry budget ran out.",
		}),
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: subsystemSession,
			Name:      "active",
			Help:      "Connected switch sessions.",
		}),
		BatchTarget: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: subsystemBatch,
			Name:      "target",
			Help:      "Current adaptive batch target, by worker.",
		}, []string{"worker"}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: subsystemBatch,
			Name:      "size",
			Help:      "Frames dispatched per completed batch.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
		}),
	}
	m.registry.MustRegister(
		m.Frames,
		m.BytesRead,
		m.BytesWritten,
		m.FramingErrors,
		m.DecodeErrors,
		m.EncodeErrors,
		m.Events,
		m.Commits,
		m.WriteAbandons,
		m.Sessions,
		m.BatchTarget,
		m.BatchSize,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the private registry for gathering and tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveTarget records a worker's current batch target.
func (m *Metrics) ObserveTarget(worker, target int) {
	m.BatchTarget.WithLabelValues(strconv.Itoa(worker)).Set(float64(target))
}

// Commit counts one partition outcome.
func (m *Metrics) Commit(outcome string) {
	m.Commits.WithLabelValues(outcome).Inc()
}
