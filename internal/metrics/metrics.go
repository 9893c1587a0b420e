package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AllocationsTotal counts allocation attempts by outcome:
	// admitted, displaced, rejected_full, rejected_unavailable, error.
	AllocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "opd",
		Subsystem: "tokens",
		Name:      "allocations_total",
		Help:      "Token allocation attempts by outcome",
	}, []string{"outcome"})

	DisplacementsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "opd",
		Subsystem: "tokens",
		Name:      "displacements_total",
		Help:      "Active tokens displaced by higher priority arrivals",
	})

	LifecycleTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "opd",
		Subsystem: "tokens",
		Name:      "lifecycle_transitions_total",
		Help:      "Token lifecycle transitions by target status",
	}, []string{"status"})
)
