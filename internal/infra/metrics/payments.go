package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(paymentsTotal, rateUpdatesTotal)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Robokassa payments by status (initiated/succeeded/failed/rejected).",
		},
		[]string{"status"},
	)

	rateUpdatesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rate_updates_total",
			Help: "Total number of exchange rate refreshes.",
		},
	)
)

func IncPayment(status string) {
	paymentsTotal.WithLabelValues(norm(status)).Inc()
}

func IncRateUpdate() { rateUpdatesTotal.Inc() }
