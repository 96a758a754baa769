package ocpp

import (
	"context"
	"encoding/json"
	"evlink/internal"
	"evlink/metrics/counters"
	"evlink/utility"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Sender writes one encoded frame to the underlying connection; implementations serialize writes
type Sender interface {
	Write(data []byte) error
}

// Endpoint is one side of a full-duplex OCPP-J connection: it answers inbound calls through
// the router and correlates replies to the calls it issued itself
type Endpoint struct {
	id        string
	sender    Sender
	router    *Router
	pending   *PendingCalls
	logger    internal.LogHandler
	done      chan struct{}
	closeOnce sync.Once
}

func NewEndpoint(id string, sender Sender, router *Router, timeout time.Duration, logger internal.LogHandler) *Endpoint {
	return &Endpoint{
		id:      id,
		sender:  sender,
		router:  router,
		pending: NewPendingCalls(timeout),
		logger:  logger,
		done:    make(chan struct{}),
	}
}

func (e *Endpoint) ID() string {
	return e.id
}

// Start runs the expiry of unanswered calls until Close
func (e *Endpoint) Start() {
	go e.expireLoop()
}

func (e *Endpoint) expireLoop() {
	interval := e.pending.timeout / 4
	if interval > time.Second {
		interval = time.Second
	}
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-e.done:
			return
		case now := <-ticker.C:
			for _, call := range e.pending.Expire(now) {
				counters.CountCallTimeout(e.id, call.Action)
				e.logger.FeatureEvent(call.Action, e.id, fmt.Sprintf("no reply to call %s", call.UniqueId))
			}
		}
	}
}

// Call issues request and returns its unique id; exactly one of onResult or onError runs later
func (e *Endpoint) Call(request Request, onResult func(Response), onError func(error)) (string, error) {
	action := request.GetFeatureName()
	feature, ok := e.router.Feature(action)
	if !ok {
		return "", errors.Errorf("feature not supported: %s", action)
	}
	uniqueId := utility.NewUUID()
	call, err := CreateCall(uniqueId, request)
	if err != nil {
		return "", errors.Wrapf(err, "encoding %s", action)
	}

	onResolve := func(payload json.RawMessage) {
		response, err := ParseRawJsonResponse(payload, feature.GetResponseType())
		if err != nil {
			if onError != nil {
				onError(errors.Wrapf(err, "decoding %s response", action))
			}
			return
		}
		if onResult != nil {
			onResult(response)
		}
	}
	if err = e.pending.Register(uniqueId, action, onResolve, onError); err != nil {
		return "", err
	}
	if err = e.write(call); err != nil {
		e.pending.Discard(uniqueId)
		return "", err
	}
	return uniqueId, nil
}

// SendRequest issues request and blocks until the reply, the call timeout, or ctx is done
func (e *Endpoint) SendRequest(ctx context.Context, request Request) (Response, error) {
	type reply struct {
		response Response
		err      error
	}
	replies := make(chan reply, 1)
	_, err := e.Call(request,
		func(response Response) { replies <- reply{response: response} },
		func(err error) { replies <- reply{err: err} },
	)
	if err != nil {
		return nil, err
	}
	select {
	case r := <-replies:
		return r.response, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// HandleMessage processes one inbound frame. Only a malformed envelope is returned as an error
// the caller must treat as fatal; unmatched replies are logged and dropped.
func (e *Endpoint) HandleMessage(data []byte) error {
	e.logger.RawDataEvent("IN", string(data))
	message, err := Decode(data)
	if err != nil {
		return err
	}
	switch m := message.(type) {
	case *Call:
		reply := e.router.Dispatch(e.id, m)
		if callError, ok := reply.(*CallError); ok {
			e.logger.FeatureEvent(m.Action, e.id, fmt.Sprintf("%s: %s", callError.ErrorCode, callError.ErrorDescription))
		}
		if err = e.write(reply); err != nil {
			e.logger.Error(fmt.Sprintf("[%s] sending reply to %s", e.id, m.Action), err)
		}
	case *CallResult:
		if err = e.pending.Resolve(m.UniqueId, m.Payload); err != nil {
			e.logger.Warn(fmt.Sprintf("[%s] reply discarded: %s", e.id, err))
		}
	case *CallError:
		counters.CountCallError(e.id, string(m.ErrorCode))
		reason := &Error{
			MessageId:   m.UniqueId,
			Code:        m.ErrorCode,
			Description: m.ErrorDescription,
			Details:     m.ErrorDetails,
		}
		if err = e.pending.Reject(m.UniqueId, reason); err != nil {
			e.logger.Warn(fmt.Sprintf("[%s] error reply discarded: %s", e.id, err))
		}
	}
	return nil
}

// Close fails every pending call with ErrConnectionClosed; it is safe to call more than once
func (e *Endpoint) Close() {
	e.closeOnce.Do(func() {
		close(e.done)
		if n := e.pending.CancelAll(ErrConnectionClosed); n > 0 {
			e.logger.FeatureEvent("Endpoint", e.id, fmt.Sprintf("%d pending calls abandoned", n))
		}
	})
}

func (e *Endpoint) Done() <-chan struct{} {
	return e.done
}

func (e *Endpoint) PendingCalls() int {
	return e.pending.Len()
}

func (e *Endpoint) write(message Message) error {
	data, err := Encode(message)
	if err != nil {
		return errors.Wrap(err, "encoding message")
	}
	e.logger.RawDataEvent("OUT", string(data))
	return e.sender.Write(data)
}
