// Package metrics instruments the generation pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	Generations        *prometheus.CounterVec
	GenerationDuration *prometheus.HistogramVec
	Refusals           *prometheus.CounterVec
	ReferenceFallbacks prometheus.Counter
	Variations         prometheus.Histogram
	InFlight           prometheus.Gauge
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Generations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adgen_generations_total",
				Help: "Generation attempts by outcome (ok or error kind).",
			},
			[]string{"outcome"},
		),
		GenerationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "adgen_generation_duration_seconds",
				Help:    "Wall time of generation attempts that reached the models.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160},
			},
			[]string{"outcome"},
		),
		Refusals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adgen_usage_refusals_total",
				Help: "Generations refused by the usage gate.",
			},
			[]string{"reason"},
		),
		ReferenceFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "adgen_reference_search_fallbacks_total",
			Help: "Reference searches that failed and fell back to presets.",
		}),
		Variations: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "adgen_variations_returned",
			Help:    "Variations returned per request.",
			Buckets: []float64{0, 1, 2, 3, 4, 5},
		}),
		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "adgen_generations_in_flight",
			Help: "Generations currently running.",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveGeneration records one finished attempt.
func (m *Metrics) ObserveGeneration(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.Generations.WithLabelValues(outcome).Inc()
	m.GenerationDuration.WithLabelValues(outcome).Observe(took.Seconds())
}

func (m *Metrics) ObserveRefusal(reason string) {
	if m == nil {
		return
	}
	m.Refusals.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveReferenceFallback() {
	if m == nil {
		return
	}
	m.ReferenceFallbacks.Inc()
}

func (m *Metrics) ObserveVariations(n int) {
	if m == nil {
		return
	}
	m.Variations.Observe(float64(n))
}

func (m *Metrics) TrackInFlight() func() {
	if m == nil {
		return func() {}
	}
	m.InFlight.Inc()
	return m.InFlight.Dec
}
