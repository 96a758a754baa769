package counters

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var connectionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "server",
	Name:      "connections_active",
	Help:      "Number of active ws connections",
})

var activeTransactionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "server",
	Name:      "transactions_active",
	Help:      "Number of active transactions",
})

var transactionCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ocpp",
	Name:      "transaction_count",
	Help:      "Total number of transactions.",
}, []string{"charge_point_id"})

var callTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ocpp",
	Name:      "call_timeout_count",
	Help:      "Calls left without reply until the call timeout.",
}, []string{"charge_point_id", "action"})

var callErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ocpp",
	Name:      "call_error_count",
	Help:      "CallError replies received, by error code.",
}, []string{"charge_point_id", "code"})

func ObserveConnections(count int) {
	connectionsGauge.Set(float64(count))
}

func ObserveTransactions(count int) {
	activeTransactionsGauge.Set(float64(count))
}

func CountTransaction(chargePointId string) {
	if len(chargePointId) == 0 {
		return
	}
	transactionCounter.With(prometheus.Labels{"charge_point_id": chargePointId}).Inc()
}

func CountCallTimeout(chargePointId, action string) {
	if len(chargePointId) == 0 || len(action) == 0 {
		return
	}
	callTimeouts.With(prometheus.Labels{"charge_point_id": chargePointId, "action": action}).Inc()
}

func CountCallError(chargePointId, code string) {
	if len(chargePointId) == 0 || len(code) == 0 {
		return
	}
	callErrors.With(prometheus.Labels{"charge_point_id": chargePointId, "code": code}).Inc()
}
