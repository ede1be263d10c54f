package merchantware

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	gatewayRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "merchantware_requests_total",
		Help: "Merchantware SOAP calls by operation and outcome",
	}, []string{
		"operation", // sale, board_card
		"outcome",   // approved, declined, error, boarded, unreachable, protocol_error
	})

	gatewayRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "merchantware_request_duration_seconds",
		Help:    "Merchantware round trip latency",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
	}, []string{"operation"})

	circuitBreakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "merchantware_circuit_breaker_state",
		Help: "Breaker position: 0 closed, 1 open, 2 half-open",
	})
)
