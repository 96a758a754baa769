package utility

import (
	"github.com/google/uuid"
)

// NewUUID returns a random identifier used as OCPP message unique id
func NewUUID() string {
	return uuid.New().String()
}
