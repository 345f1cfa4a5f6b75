package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ServerMetrics holds all Prometheus metrics for the log server.
type ServerMetrics struct {
	EventsTotal      *prometheus.CounterVec
	BytesTotal       prometheus.Counter
	Subscribers      prometheus.Gauge
	AlertsTotal      prometheus.Counter
	FilesPrunedTotal prometheus.Counter
	RotationsTotal   prometheus.Counter
}

// NewServerMetrics initializes and registers the Prometheus metrics.
func NewServerMetrics() *ServerMetrics {
	return &ServerMetrics{
		EventsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logpipe",
			Subsystem: "ingest",
			Name:      "events_total",
			Help:      "Total number of ingested events by status.",
		}, []string{"status"}), // status: accepted, error_validation, error_storage, error_rate_limited
		BytesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "logpipe",
			Subsystem: "ingest",
			Name:      "bytes_total",
			Help:      "Total number of bytes ingested.",
		}),
		Subscribers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "logpipe",
			Subsystem: "stream",
			Name:      "subscribers",
			Help:      "Number of currently connected live subscribers.",
		}),
		AlertsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "logpipe",
			Subsystem: "alert",
			Name:      "alerts_total",
			Help:      "Total number of threshold alerts emitted.",
		}),
		FilesPrunedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "logpipe",
			Subsystem: "store",
			Name:      "files_pruned_total",
			Help:      "Total number of log files removed by retention sweeps.",
		}),
		RotationsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "logpipe",
			Subsystem: "store",
			Name:      "rotations_total",
			Help:      "Total number of log file rotations.",
		}),
	}
}
