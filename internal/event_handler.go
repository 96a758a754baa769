package internal

import "time"

// EventHandler receives charge point events after the central system has processed them
type EventHandler interface {
	OnStatusNotification(event *EventMessage)
	OnTransactionStart(event *EventMessage)
	OnTransactionStop(event *EventMessage)
}

type EventMessage struct {
	ChargePointId string    `json:"charge_point_id"`
	ConnectorId   int       `json:"connector_id"`
	Time          time.Time `json:"time"`
	IdTag         string    `json:"id_tag"`
	TransactionId int       `json:"transaction_id"`
	Status        string    `json:"status"`
	Info          string    `json:"info"`
}
