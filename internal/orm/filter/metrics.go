package filter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the compiler
type Metrics struct {
	// compiles tracks compilations by resource and outcome
	compiles *prometheus.CounterVec

	// duration tracks compilation duration in seconds
	duration *prometheus.HistogramVec

	// ruleClaims tracks criteria claimed by rule and event
	ruleClaims *prometheus.CounterVec
}

// NewMetrics registers the compiler collectors on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		compiles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "criteria",
				Subsystem: "compiler",
				Name:      "compilations_total",
				Help:      "Total number of criteria compilations by resource and outcome",
			},
			[]string{"resource", "outcome"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "criteria",
				Subsystem: "compiler",
				Name:      "compilation_duration_seconds",
				Help:      "Duration of criteria compilations in seconds",
				Buckets:   []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.05},
			},
			[]string{"resource"},
		),
		ruleClaims: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "criteria",
				Subsystem: "rules",
				Name:      "claims_total",
				Help:      "Total number of criteria claimed by rule and event",
			},
			[]string{"rule", "event"},
		),
	}
}
