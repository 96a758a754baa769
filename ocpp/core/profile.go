package core

import "evlink/ocpp"

const ProfileName = "core"

// Profile holds every feature exchanged between the central system and a charge point
var Profile = ocpp.NewProfile(
	ProfileName,
	BootNotificationFeature{},
	HeartbeatFeature{},
	StatusNotificationFeature{},
	StartTransactionFeature{},
	StopTransactionFeature{},
	RemoteStartTransactionFeature{},
	RemoteStopTransactionFeature{},
)
