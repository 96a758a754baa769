package chargepoint

import (
	"evlink/internal/config"
	"time"
)

type Settings struct {
	Id                string
	CentralUrl        string
	ConnectorId       int
	Vendor            string
	Model             string
	PreparingDelay    time.Duration
	FinishingDelay    time.Duration
	HeartbeatInterval time.Duration
	CallTimeout       time.Duration
	ChargingPower     int
	DialAttempts      uint
}

func SettingsFromConfig(conf *config.Config) *Settings {
	return &Settings{
		Id:                conf.ChargePoint.Id,
		CentralUrl:        conf.ChargePoint.CentralUrl,
		ConnectorId:       conf.ChargePoint.ConnectorId,
		Vendor:            conf.ChargePoint.Vendor,
		Model:             conf.ChargePoint.Model,
		PreparingDelay:    conf.ChargePoint.PreparingDelay,
		FinishingDelay:    conf.ChargePoint.FinishingDelay,
		HeartbeatInterval: conf.ChargePoint.HeartbeatInterval,
		CallTimeout:       conf.Ocpp.CallTimeout,
		ChargingPower:     conf.ChargePoint.ChargingPower,
		DialAttempts:      conf.ChargePoint.DialAttempts,
	}
}
