package apiclient

import "github.com/prometheus/client_golang/prometheus"

var clientRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chat_client_requests_total",
		Help: "Total number of requests issued by the chat engine.",
	},
	[]string{"method", "route", "status"},
)

func init() {
	prometheus.MustRegister(clientRequestsTotal)
}

func observeRequest(method, route, status string) {
	clientRequestsTotal.WithLabelValues(method, route, status).Inc()
}
