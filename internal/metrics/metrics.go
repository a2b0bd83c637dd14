package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "saga_events_published_total",
		Help: "Saga events written to the broker, by topic.",
	}, []string{"topic"})

	EventsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "saga_events_consumed_total",
		Help: "Saga events fetched from the broker, by topic.",
	}, []string{"topic"})

	HandlerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "saga_handler_failures_total",
		Help: "Handler errors that left the offset uncommitted, by topic.",
	}, []string{"topic"})

	OrderOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_terminal_total",
		Help: "Orders that reached a terminal status, purchased or failed, by status.",
	}, []string{"status"})
)
