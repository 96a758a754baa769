package models

import "time"

// ChargePoint is a point-in-time view of a connected charge point
type ChargePoint struct {
	Id            string    `json:"charge_point_id"`
	Vendor        string    `json:"vendor"`
	Model         string    `json:"model"`
	Status        string    `json:"status"`
	ErrorCode     string    `json:"error_code"`
	TransactionId int       `json:"transaction_id,omitempty"`
	ConnectedAt   time.Time `json:"connected_at"`
	LastSeen      time.Time `json:"last_seen"`
}
