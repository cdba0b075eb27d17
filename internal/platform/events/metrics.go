package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	published = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pps_events_published_total",
		Help: "Domain events handed to the broker, by type and outcome",
	}, []string{"type", "outcome"})

	breakerOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pps_events_breaker_open",
		Help: "Event publisher circuit state (0=closed, 1=open)",
	})
)

var consumed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pps_events_consumed_total",
	Help: "Consumed domain events, by type and outcome",
}, []string{"type", "outcome"})
