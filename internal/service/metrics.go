package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

var webhookCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gateway_webhooks_total",
		Help: "Inbound webhooks by provider and outcome.",
	},
	[]string{"provider", "outcome"},
)

func init() {
	prometheus.MustRegister(webhookCounter)
}

func observeWebhook(provider, outcome string) {
	webhookCounter.WithLabelValues(provider, outcome).Inc()
}
