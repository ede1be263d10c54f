package civicrm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	hostRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "civicrm_api_requests_total",
		Help: "Host CRM API calls by entity, action and outcome",
	}, []string{
		"entity",
		"action",
		"outcome", // ok, api_error, unreachable
	})

	hostRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "civicrm_api_request_duration_seconds",
		Help:    "Host CRM API round trip latency",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15},
	}, []string{"entity", "action"})
)
