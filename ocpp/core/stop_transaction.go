package core

import (
	"evlink/types"
	"reflect"
)

const StopTransactionFeatureName = "StopTransaction"

type Reason string

const (
	ReasonDeAuthorized   Reason = "DeAuthorized"
	ReasonEmergencyStop  Reason = "EmergencyStop"
	ReasonEVDisconnected Reason = "EVDisconnected"
	ReasonHardReset      Reason = "HardReset"
	ReasonLocal          Reason = "Local"
	ReasonOther          Reason = "Other"
	ReasonPowerLoss      Reason = "PowerLoss"
	ReasonReboot         Reason = "Reboot"
	ReasonRemote         Reason = "Remote"
	ReasonSoftReset      Reason = "SoftReset"
	ReasonUnlockCommand  Reason = "UnlockCommand"
)

type StopTransactionRequest struct {
	IdTag         string          `json:"idTag,omitempty" validate:"max=20"`
	MeterStop     int             `json:"meterStop" validate:"gte=0"`
	Timestamp     *types.DateTime `json:"timestamp" validate:"required"`
	TransactionId int             `json:"transactionId"`
	Reason        Reason          `json:"reason,omitempty"`
}

type StopTransactionResponse struct {
	IdTagInfo *types.IdTagInfo `json:"idTagInfo,omitempty" validate:"omitempty"`
}

type StopTransactionFeature struct{}

func (f StopTransactionFeature) GetFeatureName() string {
	return StopTransactionFeatureName
}

func (f StopTransactionFeature) GetRequestType() reflect.Type {
	return reflect.TypeOf(StopTransactionRequest{})
}

func (f StopTransactionFeature) GetResponseType() reflect.Type {
	return reflect.TypeOf(StopTransactionResponse{})
}

func (r StopTransactionRequest) GetFeatureName() string {
	return StopTransactionFeatureName
}

func (c StopTransactionResponse) GetFeatureName() string {
	return StopTransactionFeatureName
}

func NewStopTransactionRequest(meterStop int, timestamp *types.DateTime, transactionId int, reason Reason) *StopTransactionRequest {
	return &StopTransactionRequest{MeterStop: meterStop, Timestamp: timestamp, TransactionId: transactionId, Reason: reason}
}

func NewStopTransactionResponse(idTagInfo *types.IdTagInfo) *StopTransactionResponse {
	return &StopTransactionResponse{IdTagInfo: idTagInfo}
}
