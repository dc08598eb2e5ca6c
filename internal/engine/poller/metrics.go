package poller

import "github.com/prometheus/client_golang/prometheus"

var syncCyclesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chat_client_sync_cycles_total",
		Help: "Total number of sync cycles by outcome.",
	},
	[]string{"result"},
)

func init() {
	prometheus.MustRegister(syncCyclesTotal)
}

func observeSync(result string) {
	syncCyclesTotal.WithLabelValues(result).Inc()
}
