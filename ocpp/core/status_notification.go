package core

import (
	"evlink/types"
	"reflect"
	"time"
)

const StatusNotificationFeatureName = "StatusNotification"

type ChargePointErrorCode string

type ChargePointStatus string

const (
	ConnectorLockFailure         ChargePointErrorCode = "ConnectorLockFailure"
	EVCommunicationError         ChargePointErrorCode = "EVCommunicationError"
	GroundFailure                ChargePointErrorCode = "GroundFailure"
	HighTemperature              ChargePointErrorCode = "HighTemperature"
	InternalError                ChargePointErrorCode = "InternalError"
	NoError                      ChargePointErrorCode = "NoError"
	OtherError                   ChargePointErrorCode = "OtherError"
	OverCurrentFailure           ChargePointErrorCode = "OverCurrentFailure"
	OverVoltage                  ChargePointErrorCode = "OverVoltage"
	PowerMeterFailure            ChargePointErrorCode = "PowerMeterFailure"
	PowerSwitchFailure           ChargePointErrorCode = "PowerSwitchFailure"
	ReaderFailure                ChargePointErrorCode = "ReaderFailure"
	UnderVoltage                 ChargePointErrorCode = "UnderVoltage"
	WeakSignal                   ChargePointErrorCode = "WeakSignal"
	ChargePointStatusAvailable   ChargePointStatus    = "Available"
	ChargePointStatusPreparing   ChargePointStatus    = "Preparing"
	ChargePointStatusCharging    ChargePointStatus    = "Charging"
	ChargePointStatusFinishing   ChargePointStatus    = "Finishing"
	ChargePointStatusUnavailable ChargePointStatus    = "Unavailable"
	ChargePointStatusFaulted     ChargePointStatus    = "Faulted"
)

type StatusNotificationRequest struct {
	ConnectorId     int                  `json:"connectorId" validate:"gte=0"`
	ErrorCode       ChargePointErrorCode `json:"errorCode" validate:"required"`
	Info            string               `json:"info,omitempty" validate:"max=50"`
	Status          ChargePointStatus    `json:"status" validate:"required,oneof=Available Preparing Charging SuspendedEVSE SuspendedEV Finishing Reserved Unavailable Faulted"`
	Timestamp       *types.DateTime      `json:"timestamp,omitempty"`
	VendorErrorCode string               `json:"vendorErrorCode,omitempty" validate:"max=50"`
}

type StatusNotificationResponse struct {
}

type StatusNotificationFeature struct{}

func (f StatusNotificationFeature) GetFeatureName() string {
	return StatusNotificationFeatureName
}

func (f StatusNotificationFeature) GetRequestType() reflect.Type {
	return reflect.TypeOf(StatusNotificationRequest{})
}

func (f StatusNotificationFeature) GetResponseType() reflect.Type {
	return reflect.TypeOf(StatusNotificationResponse{})
}

func (r StatusNotificationRequest) GetFeatureName() string {
	return StatusNotificationFeatureName
}

func (c StatusNotificationResponse) GetFeatureName() string {
	return StatusNotificationFeatureName
}

func NewStatusNotificationRequest(connectorId int, errorCode ChargePointErrorCode, status ChargePointStatus) *StatusNotificationRequest {
	return &StatusNotificationRequest{
		ConnectorId: connectorId,
		ErrorCode:   errorCode,
		Status:      status,
		Timestamp:   types.NewDateTime(time.Now()),
	}
}

func NewStatusNotificationResponse() *StatusNotificationResponse {
	return &StatusNotificationResponse{}
}

// IsFault reports statuses that are raised by the device itself rather than by a transaction step
func (s ChargePointStatus) IsFault() bool {
	return s == ChargePointStatusFaulted || s == ChargePointStatusUnavailable
}
