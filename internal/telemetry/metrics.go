package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PaymentsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payway_payments_created_total",
		Help: "Payment creation attempts by outcome.",
	}, []string{"outcome"})

	CallbacksReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payway_callbacks_total",
		Help: "Provider callbacks by outcome.",
	}, []string{"outcome"})

	PaymentTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payway_payment_transitions_total",
		Help: "Applied payment status transitions.",
	}, []string{"from", "to"})

	ProviderRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payway_provider_request_duration_seconds",
		Help:    "Latency of PayWay purchase requests.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"outcome"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payway_http_requests_total",
		Help: "HTTP requests served.",
	}, []string{"method", "route", "status"})
)
