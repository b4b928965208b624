package actions

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	generationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zemini_generations_total",
			Help: "Image generations by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	generationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zemini_generation_duration_seconds",
			Help:    "End to end image generation latency",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		},
		[]string{"kind"},
	)

	registrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zemini_registrations_total",
			Help: "Registration attempts by outcome",
		},
		[]string{"outcome"},
	)
)
