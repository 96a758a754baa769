package server

import (
	"evlink/ocpp/core"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var errorCounts = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ocpp",
	Name:      "status_error_count",
	Help:      "Status notifications carrying an error code, by charge point.",
}, []string{"code", "charge_point_id"})

func observeError(chargePointId string, code core.ChargePointErrorCode) {
	if len(chargePointId) == 0 || len(code) == 0 || code == core.NoError {
		return
	}
	errorCounts.With(prometheus.Labels{"code": string(code), "charge_point_id": chargePointId}).Inc()
}
