package notifier

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "discussbridge",
	Name:      "events_total",
	Help:      "Discussion events handled, by outcome.",
}, []string{"outcome"})
