// Package metrics records run statistics in a private Prometheus registry
// and writes them in the node-exporter textfile format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "orphasnap"

// Metrics holds the collectors for one process.
type Metrics struct {
	registry *prometheus.Registry

	FetchedBytes   *prometheus.CounterVec
	Codes          prometheus.Gauge
	Records        *prometheus.GaugeVec
	FeedEntries    *prometheus.GaugeVec
	RunDuration    prometheus.Gauge
	LastSuccess    prometheus.Gauge
	RunFailures    prometheus.Counter
	PublishedFiles prometheus.Gauge
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		FetchedBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetched_bytes_total",
			Help:      "Bytes downloaded per source feed.",
		}, []string{"feed"}),
		Codes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "codes",
			Help:      "Disease codes in the requested code set.",
		}),
		Records: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records",
			Help:      "Rows written per dataset.",
		}, []string{"dataset"}),
		FeedEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_entries",
			Help:      "Codes with at least one extracted value per feed.",
		}, []string{"feed"}),
		RunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
		RunFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_failures_total",
			Help:      "Runs that ended with an error.",
		}),
		PublishedFiles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "published_files",
			Help:      "Files in the last published snapshot.",
		}),
	}

	m.registry.MustRegister(
		m.FetchedBytes,
		m.Codes,
		m.Records,
		m.FeedEntries,
		m.RunDuration,
		m.LastSuccess,
		m.RunFailures,
		m.PublishedFiles,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveRun records the outcome of a run that started at start.
func (m *Metrics) ObserveRun(start time.Time, err error) {
	m.RunDuration.Set(time.Since(start).Seconds())
	if err != nil {
		m.RunFailures.Inc()
		return
	}
	m.LastSuccess.Set(float64(time.Now().Unix()))
}

// WriteTextfile writes the registry atomically for the node-exporter
// textfile collector. An empty path is a no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
