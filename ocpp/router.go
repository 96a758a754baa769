package ocpp

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

// RequestHandler answers one inbound Call from the party identified by clientId
type RequestHandler func(clientId string, request Request) (Response, error)

// Router maps an inbound action to its handler and turns the outcome into a reply frame
type Router struct {
	mutex    sync.RWMutex
	profiles []*Profile
	handlers map[string]RequestHandler
	validate *validator.Validate
}

func NewRouter(profiles ...*Profile) *Router {
	return &Router{
		profiles: profiles,
		handlers: make(map[string]RequestHandler),
		validate: validator.New(),
	}
}

func (r *Router) Handle(action string, handler RequestHandler) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.handlers[action] = handler
}

func (r *Router) Feature(action string) (Feature, bool) {
	for _, profile := range r.profiles {
		if feature, ok := profile.GetFeature(action); ok {
			return feature, true
		}
	}
	return nil, false
}

// Dispatch always produces a reply: CallResult on success, CallError otherwise
func (r *Router) Dispatch(clientId string, call *Call) Message {
	r.mutex.RLock()
	handler, ok := r.handlers[call.Action]
	r.mutex.RUnlock()
	feature, known := r.Feature(call.Action)
	if !ok || !known {
		return CreateCallError(call.UniqueId, NotImplemented, fmt.Sprintf("action not supported: %s", call.Action))
	}

	request, err := ParseRawJsonRequest(call.Payload, feature.GetRequestType())
	if err != nil {
		return CreateCallError(call.UniqueId, FormationViolation, err.Error())
	}
	if err = r.validate.Struct(request); err != nil {
		return CreateCallError(call.UniqueId, PropertyConstraintViolation, err.Error())
	}

	confirmation, err := handler(clientId, request)
	if err != nil {
		if callError, ok := err.(*Error); ok {
			return CreateCallError(call.UniqueId, callError.Code, callError.Description)
		}
		return CreateCallError(call.UniqueId, InternalError, err.Error())
	}
	result, err := CreateCallResult(call.UniqueId, confirmation)
	if err != nil {
		return CreateCallError(call.UniqueId, InternalError, err.Error())
	}
	return result
}
