package ocpp

import (
	"encoding/json"

	"github.com/pkg/errors"
)

type CallType int

const (
	CallTypeRequest CallType = 2
	CallTypeResult  CallType = 3
	CallTypeError   CallType = 4
)

var emptyPayload = json.RawMessage("{}")

// Message is one OCPP-J frame; decoded frames are *Call, *CallResult or *CallError
type Message interface {
	json.Marshaler
	GetMessageTypeId() CallType
	GetUniqueId() string
}

// Call An OCPP-J Call message, containing an OCPP Request.
type Call struct {
	UniqueId string
	Action   string
	Payload  json.RawMessage
}

func (call *Call) GetMessageTypeId() CallType {
	return CallTypeRequest
}

func (call *Call) GetUniqueId() string {
	return call.UniqueId
}

func (call *Call) MarshalJSON() ([]byte, error) {
	fields := make([]interface{}, 4)
	fields[0] = int(CallTypeRequest)
	fields[1] = call.UniqueId
	fields[2] = call.Action
	fields[3] = orEmpty(call.Payload)
	return json.Marshal(fields)
}

// CallResult An OCPP-J CallResult message, containing an OCPP Response.
type CallResult struct {
	UniqueId string
	Payload  json.RawMessage
}

func (callResult *CallResult) GetMessageTypeId() CallType {
	return CallTypeResult
}

func (callResult *CallResult) GetUniqueId() string {
	return callResult.UniqueId
}

func (callResult *CallResult) MarshalJSON() ([]byte, error) {
	fields := make([]interface{}, 3)
	fields[0] = int(CallTypeResult)
	fields[1] = callResult.UniqueId
	fields[2] = orEmpty(callResult.Payload)
	return json.Marshal(fields)
}

// CallError An OCPP-J CallError message, the negative reply to a Call.
type CallError struct {
	UniqueId         string
	ErrorCode        ErrorCode
	ErrorDescription string
	ErrorDetails     json.RawMessage
}

func (callError *CallError) GetMessageTypeId() CallType {
	return CallTypeError
}

func (callError *CallError) GetUniqueId() string {
	return callError.UniqueId
}

func (callError *CallError) MarshalJSON() ([]byte, error) {
	fields := make([]interface{}, 5)
	fields[0] = int(CallTypeError)
	fields[1] = callError.UniqueId
	fields[2] = callError.ErrorCode
	fields[3] = callError.ErrorDescription
	fields[4] = orEmpty(callError.ErrorDetails)
	return json.Marshal(fields)
}

func CreateCall(uniqueId string, request Request) (*Call, error) {
	payload, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}
	return &Call{UniqueId: uniqueId, Action: request.GetFeatureName(), Payload: payload}, nil
}

func CreateCallResult(uniqueId string, confirmation Response) (*CallResult, error) {
	payload, err := json.Marshal(confirmation)
	if err != nil {
		return nil, err
	}
	return &CallResult{UniqueId: uniqueId, Payload: payload}, nil
}

func CreateCallError(uniqueId string, code ErrorCode, description string) *CallError {
	return &CallError{
		UniqueId:         uniqueId,
		ErrorCode:        code,
		ErrorDescription: description,
		ErrorDetails:     emptyPayload,
	}
}

// Encode writes message as an OCPP-J array. A nil Call or CallResult payload is written as {},
// so it decodes back as an empty object rather than nil.
func Encode(message Message) ([]byte, error) {
	return message.MarshalJSON()
}

// Decode parses an OCPP-J frame. Only the envelope is checked here; payload shape
// belongs to the per-action handlers.
func Decode(data []byte) (Message, error) {
	var fields []json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, errors.Wrap(ErrMalformedEnvelope, "not a json array")
	}
	if len(fields) < 3 {
		return nil, errors.Wrapf(ErrMalformedEnvelope, "expected at least 3 elements, got %d", len(fields))
	}
	var typeId int
	if err := json.Unmarshal(fields[0], &typeId); err != nil {
		return nil, errors.Wrap(ErrMalformedEnvelope, "message type id is not a number")
	}
	uniqueId, err := decodeString(fields[1], "unique id")
	if err != nil {
		return nil, err
	}
	if uniqueId == "" {
		return nil, errors.Wrap(ErrMalformedEnvelope, "empty unique id")
	}

	switch CallType(typeId) {
	case CallTypeRequest:
		if len(fields) != 4 {
			return nil, errors.Wrapf(ErrMalformedEnvelope, "call expects 4 elements, got %d", len(fields))
		}
		action, err := decodeString(fields[2], "action")
		if err != nil {
			return nil, err
		}
		if action == "" {
			return nil, errors.Wrap(ErrMalformedEnvelope, "empty action")
		}
		return &Call{UniqueId: uniqueId, Action: action, Payload: fields[3]}, nil
	case CallTypeResult:
		if len(fields) != 3 {
			return nil, errors.Wrapf(ErrMalformedEnvelope, "call result expects 3 elements, got %d", len(fields))
		}
		return &CallResult{UniqueId: uniqueId, Payload: fields[2]}, nil
	case CallTypeError:
		if len(fields) != 4 && len(fields) != 5 {
			return nil, errors.Wrapf(ErrMalformedEnvelope, "call error expects 5 elements, got %d", len(fields))
		}
		code, err := decodeString(fields[2], "error code")
		if err != nil {
			return nil, err
		}
		description, err := decodeString(fields[3], "error description")
		if err != nil {
			return nil, err
		}
		callError := &CallError{
			UniqueId:         uniqueId,
			ErrorCode:        ErrorCode(code),
			ErrorDescription: description,
			ErrorDetails:     emptyPayload,
		}
		if len(fields) == 5 {
			callError.ErrorDetails = fields[4]
		}
		return callError, nil
	default:
		return nil, errors.Wrapf(ErrMalformedEnvelope, "unknown message type id %d", typeId)
	}
}

func decodeString(raw json.RawMessage, name string) (string, error) {
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", errors.Wrapf(ErrMalformedEnvelope, "%s is not a string", name)
	}
	return value, nil
}

func orEmpty(payload json.RawMessage) json.RawMessage {
	if len(payload) == 0 {
		return emptyPayload
	}
	return payload
}
