package search

import (
	"github.com/fyrsmithlabs/llmsearch/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the search counters.
type Metrics struct {
	requests *prometheus.CounterVec
	results  *prometheus.CounterVec
}

// NewMetrics registers the search counters on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "llmsearch",
				Subsystem: "search",
				Name:      "requests_total",
				Help:      "Search requests by mode and access level",
			},
			[]string{"mode", "access"},
		),
		results: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "llmsearch",
				Subsystem: "search",
				Name:      "results_total",
				Help:      "Records returned by mode",
			},
			[]string{"mode"},
		),
	}
	var err error
	if m.requests, err = telemetry.Register(reg, m.requests); err != nil {
		return nil, err
	}
	if m.results, err = telemetry.Register(reg, m.results); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) record(mode string, authorized bool, results int) {
	if m == nil {
		return
	}
	access := "anonymous"
	if authorized {
		access = "authorized"
	}
	m.requests.WithLabelValues(mode, access).Inc()
	m.results.WithLabelValues(mode).Add(float64(results))
}
