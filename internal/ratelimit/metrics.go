package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
)

var verdictCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gateway_rate_limit_checks_total",
		Help: "Rate limit checks by scope and verdict.",
	},
	[]string{"scope", "verdict"},
)

func init() {
	prometheus.MustRegister(verdictCounter)
}

func observeVerdict(scope, verdict string) {
	verdictCounter.WithLabelValues(scope, verdict).Inc()
}
