package models

import (
	"time"
)

// Transaction is one charging session bounded by StartTransaction and StopTransaction;
// Id stays zero on the charge point side until the central system assigns it
type Transaction struct {
	Id            int        `json:"transaction_id"`
	ChargePointId string     `json:"charge_point_id"`
	ConnectorId   int        `json:"connector_id"`
	IdTag         string     `json:"id_tag"`
	MeterStart    int        `json:"meter_start"`
	MeterStop     *int       `json:"meter_stop,omitempty"`
	TimeStart     time.Time  `json:"time_start"`
	TimeStop      *time.Time `json:"time_stop,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	IsFinished    bool       `json:"is_finished"`
}

func (t *Transaction) Finish(meterStop int, timeStop time.Time, reason string) {
	t.MeterStop = &meterStop
	t.TimeStop = &timeStop
	t.Reason = reason
	t.IsFinished = true
}

// Consumed returns energy in Wh, zero while the transaction is running
func (t *Transaction) Consumed() int {
	if t.MeterStop == nil {
		return 0
	}
	return *t.MeterStop - t.MeterStart
}

func (t *Transaction) Copy() *Transaction {
	if t == nil {
		return nil
	}
	c := *t
	if t.MeterStop != nil {
		meterStop := *t.MeterStop
		c.MeterStop = &meterStop
	}
	if t.TimeStop != nil {
		timeStop := *t.TimeStop
		c.TimeStop = &timeStop
	}
	return &c
}
