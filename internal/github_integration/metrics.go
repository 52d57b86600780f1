package github_integration

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var deliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "discussbridge",
	Name:      "webhook_deliveries_total",
	Help:      "Webhook deliveries received, by result.",
}, []string{"result"})
