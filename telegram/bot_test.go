package telegram

import (
	"evlink/internal"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	assert.Equal(t, "CP\\-1", sanitize("CP-1"))
	assert.Equal(t, "consumed 1\\.5 kWh; Remote", sanitize("consumed 1.5 kWh; Remote"))
	assert.Equal(t, "plain", sanitize("plain"))
}

func TestStatusMessageOnlyFaults(t *testing.T) {
	event := &internal.EventMessage{ChargePointId: "CP1", ConnectorId: 1, Status: "Charging"}
	assert.Empty(t, statusMessage(event))

	event.Status = "Faulted"
	event.Info = "GroundFailure"
	msg := statusMessage(event)
	assert.Contains(t, msg, "*CP1*: Connector 1: `Faulted`")
	assert.Contains(t, msg, "GroundFailure")
}

func TestTransactionMessage(t *testing.T) {
	event := &internal.EventMessage{
		ChargePointId: "CP1",
		ConnectorId:   1,
		IdTag:         "X",
		TransactionId: 7,
		Status:        "Charging",
	}
	msg := transactionMessage(event, "START")
	assert.Contains(t, msg, "Transaction ID: 7 START")
	assert.Contains(t, msg, "ID Tag: X")
	assert.NotContains(t, msg, "Info:")
}
