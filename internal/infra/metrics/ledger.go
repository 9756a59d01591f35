package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		ledgerChargesTotal,
		ledgerDepositsTotal,
		ledgerRefundsTotal,
		promocodeAppliesTotal,
	)
}

var (
	ledgerChargesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_charges_total",
			Help: "Service charges by currency and outcome.",
		},
		[]string{"currency", "outcome"}, // 'ok', 'rejected'
	)

	ledgerDepositsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_deposits_total",
			Help: "Balance deposits by currency.",
		},
		[]string{"currency"},
	)

	ledgerRefundsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_refunds_total",
			Help: "Total number of refunded purchases.",
		},
	)

	promocodeAppliesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promocode_applies_total",
			Help: "Promocode applications by outcome.",
		},
		[]string{"outcome"}, // 'ok', 'rejected'
	)
)

func IncCharge(currency, outcome string) {
	ledgerChargesTotal.WithLabelValues(norm(currency), norm(outcome)).Inc()
}

func IncDeposit(currency string) {
	ledgerDepositsTotal.WithLabelValues(norm(currency)).Inc()
}

func IncRefund() { ledgerRefundsTotal.Inc() }

func IncPromocodeApply(outcome string) {
	promocodeAppliesTotal.WithLabelValues(norm(outcome)).Inc()
}
