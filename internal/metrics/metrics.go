// Package metrics exposes Prometheus instrumentation for dataset fetches
// and graph loads. A nil *Metrics is valid and records nothing.
package metrics

import (
	"errors"
	"time"

	"fedigraph/internal/errs"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fedigraph"

// Fetch outcomes.
const (
	FetchPresent    = "present"
	FetchDownloaded = "downloaded"
	FetchFailed     = "failed"
)

type Metrics struct {
	FetchTotal   *prometheus.CounterVec
	GraphLoads   *prometheus.CounterVec
	LoadDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		FetchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_total",
				Help:      "Dataset presence checks by outcome",
			},
			[]string{"outcome"},
		),
		GraphLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "graph",
				Name:      "loads_total",
				Help:      "Graph resolutions and loads by status",
			},
			[]string{"software", "graph_type", "status"},
		),
		LoadDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "graph",
				Name:      "load_duration_seconds",
				Help:      "Time spent deserializing a snapshot",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"software", "graph_type"},
		),
	}

	for _, c := range []prometheus.Collector{m.FetchTotal, m.GraphLoads, m.LoadDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) ObserveFetch(outcome string) {
	if m == nil {
		return
	}
	m.FetchTotal.WithLabelValues(outcome).Inc()
}

// ObserveLoad records one GetGraph call. Duration is only recorded for
// successful loads.
func (m *Metrics) ObserveLoad(software, graphType string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.GraphLoads.WithLabelValues(software, graphType, Status(err)).Inc()
	if err == nil {
		m.LoadDuration.WithLabelValues(software, graphType).Observe(d.Seconds())
	}
}

// Status maps an error onto a low-cardinality label value.
func Status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, errs.ErrUnknownPlatform):
		return "unknown_platform"
	case errors.Is(err, errs.ErrUnknownGraphType):
		return "unknown_graph_type"
	case errors.Is(err, errs.ErrUnknownDate):
		return "unknown_date"
	case errors.Is(err, errs.ErrMalformedArtifact):
		return "malformed"
	default:
		return "error"
	}
}
