package sender

import "github.com/prometheus/client_golang/prometheus"

var sendsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chat_client_sends_total",
		Help: "Total number of send attempts by message type and outcome.",
	},
	[]string{"type", "result"},
)

func init() {
	prometheus.MustRegister(sendsTotal)
}

func observeSend(messageType, result string) {
	sendsTotal.WithLabelValues(messageType, result).Inc()
}
