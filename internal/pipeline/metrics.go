package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"tierd/pkg/types"
)

var (
	queriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tierd",
			Name:      "queries_total",
			Help:      "Queries by final status and answering tier",
		},
		[]string{"status", "tier"},
	)

	queryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tierd",
			Name:      "query_duration_seconds",
			Help:      "End-to-end query latency",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(queriesTotal, queryDuration)
}

func observeQuery(resp types.QueryResponse, d time.Duration) {
	tier := resp.Tier
	if tier == "" {
		tier = "none"
	}
	queriesTotal.WithLabelValues(resp.Status, tier).Inc()
	queryDuration.WithLabelValues(resp.Status).Observe(d.Seconds())
}
