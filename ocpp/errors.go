package ocpp

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

type ErrorCode string

const (
	NotImplemented                ErrorCode = "NotImplemented"
	NotSupported                  ErrorCode = "NotSupported"
	InternalError                 ErrorCode = "InternalError"
	ProtocolError                 ErrorCode = "ProtocolError"
	SecurityError                 ErrorCode = "SecurityError"
	FormationViolation            ErrorCode = "FormationViolation"
	PropertyConstraintViolation   ErrorCode = "PropertyConstraintViolation"
	OccurrenceConstraintViolation ErrorCode = "OccurrenceConstraintViolation"
	TypeConstraintViolation       ErrorCode = "TypeConstraintViolation"
	GenericError                  ErrorCode = "GenericError"
)

var (
	// ErrMalformedEnvelope is connection-fatal: the peer sent something that is not an OCPP-J frame
	ErrMalformedEnvelope  = errors.New("malformed envelope")
	ErrUnknownMessageId   = errors.New("unknown message id")
	ErrDuplicateMessageId = errors.New("duplicate message id")
	ErrTimeout            = errors.New("call timed out")
	ErrConnectionClosed   = errors.New("connection closed")
)

// Error is a CallError received from the remote party in reply to one of our calls
type Error struct {
	MessageId   string
	Code        ErrorCode
	Description string
	Details     json.RawMessage
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func NewError(code ErrorCode, description string) *Error {
	return &Error{Code: code, Description: description}
}
