package orchestrator

import "github.com/prometheus/client_golang/prometheus"

var (
	admissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tierd",
			Name:      "admissions_total",
			Help:      "Specialist admission attempts by outcome and phase",
		},
		[]string{"outcome", "phase"},
	)

	gateDenialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tierd",
			Name:      "gate_denials_total",
			Help:      "Resource gate denials by reason",
		},
		[]string{"reason"},
	)

	availableMemoryMB = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tierd",
		Name:      "available_memory_mb",
		Help:      "Available memory at the last gate check",
	})

	cpuUsageRatio = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tierd",
		Name:      "cpu_usage_ratio",
		Help:      "CPU usage at the last gate check",
	})
)

// Outcome label values.
const (
	outcomeStarted   = "started"
	outcomeExhausted = "exhausted"
	outcomeSlotBusy  = "slot_busy"
	outcomeError     = "error"
)

// Denial reasons.
const (
	reasonMemory = "memory"
	reasonCPU    = "cpu"
)

func init() {
	prometheus.MustRegister(admissionsTotal, gateDenialsTotal, availableMemoryMB, cpuUsageRatio)
}
