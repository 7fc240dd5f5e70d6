package vectorstore

import (
	"context"
	"errors"
	"time"

	"github.com/fyrsmithlabs/llmsearch/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
)

// Metrics holds the Prometheus collectors for store calls.
type Metrics struct {
	queries  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	breaker  *prometheus.GaugeVec
}

// NewMetrics registers the store collectors on reg. Collectors that are
// already registered are reused, so several stores can share one registry.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	queries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "llmsearch",
			Subsystem: "vectorstore",
			Name:      "queries_total",
			Help:      "Vector store searches by provider and result",
		},
		[]string{"provider", "result"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "llmsearch",
			Subsystem: "vectorstore",
			Name:      "query_duration_seconds",
			Help:      "Duration of vector store searches in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider"},
	)
	breaker := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "llmsearch",
			Subsystem: "vectorstore",
			Name:      "breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"breaker"},
	)

	m := &Metrics{}
	var err error
	if m.queries, err = telemetry.Register(reg, queries); err != nil {
		return nil, err
	}
	if m.duration, err = telemetry.Register(reg, duration); err != nil {
		return nil, err
	}
	if m.breaker, err = telemetry.Register(reg, breaker); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) observe(provider string, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "success"
	switch {
	case errors.Is(err, context.Canceled):
		result = "canceled"
	case err != nil:
		result = "error"
	}
	m.queries.WithLabelValues(provider, result).Inc()
	m.duration.WithLabelValues(provider).Observe(d.Seconds())
}

// BreakerStateChanged records a breaker transition. It matches the
// onChange hook of WithBreaker.
func (m *Metrics) BreakerStateChanged(name string, to gobreaker.State) {
	if m == nil {
		return
	}
	m.breaker.WithLabelValues(name).Set(float64(to))
}

// instrumented records every search on the wrapped store.
type instrumented struct {
	Store
	provider string
	metrics  *Metrics
	now      func() time.Time
}

// Instrument wraps next so each Search is counted and timed under provider.
func Instrument(next Store, provider string, m *Metrics) Store {
	if m == nil {
		return next
	}
	return &instrumented{Store: next, provider: provider, metrics: m, now: time.Now}
}

func (s *instrumented) Search(ctx context.Context, q Query) ([]Record, error) {
	start := s.now()
	records, err := s.Store.Search(ctx, q)
	s.metrics.observe(s.provider, s.now().Sub(start), err)
	return records, err
}
