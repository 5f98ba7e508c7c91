package vfs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "forestvfs",
		Subsystem: "events",
		Name:      "sent_total",
		Help:      "Number of events sent on any event bus, by cause.",
	}, []string{"cause"})
	eventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "forestvfs",
		Subsystem: "events",
		Name:      "dropped_total",
		Help:      "Number of event deliveries dropped because a subscriber buffer was full, by cause.",
	}, []string{"cause"})
	backendSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "forestvfs",
		Subsystem: "backend",
		Name:      "operation_seconds",
		Help:      "Time spent in backend calls by backend type, operation and outcome (ok, logical, transport).",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
	}, []string{"backend_type", "op", "outcome"})
)
