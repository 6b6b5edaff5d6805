package buflog

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the counters and gauges a Manager updates as it runs.
// Each Manager owns its own prometheus.Registry rather than registering
// against the global default registry, so multiple Managers can coexist
// in one process (e.g. one per audited subsystem) without collector name
// collisions.
type Metrics struct {
	Registry *prometheus.Registry

	recordsAccepted prometheus.Counter
	flushes         prometheus.Counter
	flushErrors     prometheus.Counter
	bytesWritten    prometheus.Counter
	fsyncFailures   prometheus.Counter
	incomingBytes   prometheus.Gauge
}

// NewMetrics builds a Metrics bound to a fresh registry and registers all
// of its collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		recordsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "buflog_records_accepted_total",
			Help: "Records accepted by Manager.Write.",
		}),
		flushes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "buflog_flushes_total",
			Help: "Successful flush cycles.",
		}),
		flushErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "buflog_flush_errors_total",
			Help: "Flush cycles whose sink I/O failed.",
		}),
		bytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "buflog_bytes_written_total",
			Help: "Bytes successfully written to the sink.",
		}),
		fsyncFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "buflog_fsync_failures_total",
			Help: "Full-durability writes that observed ErrFsyncFailed.",
		}),
		incomingBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "buflog_incoming_buffer_bytes",
			Help: "Bytes currently buffered in the incoming buffer.",
		}),
	}
	reg.MustRegister(m.recordsAccepted, m.flushes, m.flushErrors, m.bytesWritten, m.fsyncFailures, m.incomingBytes)
	return m
}
