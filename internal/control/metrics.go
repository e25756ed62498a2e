package control

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var controlCallsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tierd",
		Subsystem: "control",
		Name:      "calls_total",
		Help:      "Process control actions by action and exit code",
	},
	[]string{"action", "exit_code"},
)

func init() {
	prometheus.MustRegister(controlCallsTotal)
}

func observeCall(action string, res Result) {
	controlCallsTotal.WithLabelValues(action, strconv.Itoa(res.ExitCode)).Inc()
}
