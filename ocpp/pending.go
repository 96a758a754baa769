package ocpp

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// PendingCall is an outstanding call waiting for CallResult or CallError
type PendingCall struct {
	UniqueId  string
	Action    string
	IssuedAt  time.Time
	onResolve func(payload json.RawMessage)
	onReject  func(err error)
}

// PendingCalls correlates replies with the calls issued on one connection. Either side
// may call at any time, so replies are matched by unique id and never by position.
// Continuations run outside the lock, on the goroutine that resolved the call.
type PendingCalls struct {
	mutex   sync.Mutex
	calls   map[string]*PendingCall
	timeout time.Duration
	closed  error
}

func NewPendingCalls(timeout time.Duration) *PendingCalls {
	return &PendingCalls{
		calls:   make(map[string]*PendingCall),
		timeout: timeout,
	}
}

func (p *PendingCalls) Register(uniqueId, action string, onResolve func(json.RawMessage), onReject func(error)) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.closed != nil {
		return p.closed
	}
	if _, ok := p.calls[uniqueId]; ok {
		return errors.Wrapf(ErrDuplicateMessageId, "%s (%s)", uniqueId, action)
	}
	p.calls[uniqueId] = &PendingCall{
		UniqueId:  uniqueId,
		Action:    action,
		IssuedAt:  time.Now(),
		onResolve: onResolve,
		onReject:  onReject,
	}
	return nil
}

func (p *PendingCalls) Resolve(uniqueId string, payload json.RawMessage) error {
	call, err := p.take(uniqueId)
	if err != nil {
		return err
	}
	if call.onResolve != nil {
		call.onResolve(payload)
	}
	return nil
}

func (p *PendingCalls) Reject(uniqueId string, reason error) error {
	call, err := p.take(uniqueId)
	if err != nil {
		return err
	}
	if call.onReject != nil {
		call.onReject(reason)
	}
	return nil
}

// Discard drops a call without running its continuations; used when the call never left
func (p *PendingCalls) Discard(uniqueId string) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	delete(p.calls, uniqueId)
}

// Expire rejects every call issued more than timeout before now with ErrTimeout
func (p *PendingCalls) Expire(now time.Time) []*PendingCall {
	p.mutex.Lock()
	var expired []*PendingCall
	for id, call := range p.calls {
		if now.Sub(call.IssuedAt) > p.timeout {
			expired = append(expired, call)
			delete(p.calls, id)
		}
	}
	p.mutex.Unlock()

	for _, call := range expired {
		if call.onReject != nil {
			call.onReject(errors.Wrapf(ErrTimeout, "%s (%s)", call.Action, call.UniqueId))
		}
	}
	return expired
}

// CancelAll rejects every outstanding call with reason and refuses new registrations
func (p *PendingCalls) CancelAll(reason error) int {
	p.mutex.Lock()
	if p.closed == nil {
		p.closed = reason
	}
	calls := p.calls
	p.calls = make(map[string]*PendingCall)
	p.mutex.Unlock()

	for _, call := range calls {
		if call.onReject != nil {
			call.onReject(reason)
		}
	}
	return len(calls)
}

func (p *PendingCalls) Len() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return len(p.calls)
}

func (p *PendingCalls) take(uniqueId string) (*PendingCall, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	call, ok := p.calls[uniqueId]
	if !ok {
		return nil, errors.Wrap(ErrUnknownMessageId, uniqueId)
	}
	delete(p.calls, uniqueId)
	return call, nil
}
