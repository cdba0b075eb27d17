package keyedstore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pps_store_request_duration_seconds",
		Help:    "Latency of keyed store requests by table and operation",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"table", "op"})

	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pps_store_requests_total",
		Help: "Keyed store requests by table, operation and outcome",
	}, []string{"table", "op", "outcome"})
)

func observe(table, op string, start time.Time, err error) {
	requestDuration.WithLabelValues(table, op).Observe(time.Since(start).Seconds())
	requestsTotal.WithLabelValues(table, op, outcome(err)).Inc()
}
