package simulator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus 指标
var (
	availabilityTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parking_simulator_ticks_total",
		Help: "Total number of availability perturbation ticks.",
	})

	spotsPerturbed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "parking_simulator_spots_perturbed_total",
		Help: "Total number of spot availability perturbations applied.",
	})

	connectivityGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parking_simulator_connected",
		Help: "Simulated connectivity state (1 connected, 0 disconnected).",
	})

	availableTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "parking_spots_available_total",
		Help: "Sum of available spaces across all spots, sampled each tick.",
	})
)
