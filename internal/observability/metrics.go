package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Resultado de cada operación de autenticación.
	AuthRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_requests_total",
			Help: "Total number of authentication operations by outcome",
		},
		[]string{"operation", "status"},
	)

	// Requests rechazadas por el gate de admisión.
	RateLimitRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rate_limit_rejections_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
	)
)

// Register registra los collectors en el registry global. Llamar una sola
// vez al arrancar.
func Register() {
	prometheus.MustRegister(AuthRequests, RateLimitRejections)
}
