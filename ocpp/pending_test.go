package ocpp

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outcome struct {
	mutex   sync.Mutex
	payload json.RawMessage
	err     error
	calls   int
}

func (o *outcome) resolve(payload json.RawMessage) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.payload = payload
	o.calls++
}

func (o *outcome) reject(err error) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.err = err
	o.calls++
}

func TestPendingCallsResolve(t *testing.T) {
	pending := NewPendingCalls(time.Minute)
	result := &outcome{}
	require.NoError(t, pending.Register("42", "Heartbeat", result.resolve, result.reject))
	assert.Equal(t, 1, pending.Len())

	require.NoError(t, pending.Resolve("42", json.RawMessage(`{"currentTime":"2024-01-01T00:00:00Z"}`)))
	assert.Equal(t, 1, result.calls)
	assert.JSONEq(t, `{"currentTime":"2024-01-01T00:00:00Z"}`, string(result.payload))
	assert.Equal(t, 0, pending.Len())

	err := pending.Resolve("42", nil)
	assert.ErrorIs(t, err, ErrUnknownMessageId)
	assert.Equal(t, 1, result.calls)
}

func TestPendingCallsDuplicate(t *testing.T) {
	pending := NewPendingCalls(time.Minute)
	require.NoError(t, pending.Register("1", "Heartbeat", nil, nil))
	err := pending.Register("1", "StatusNotification", nil, nil)
	assert.ErrorIs(t, err, ErrDuplicateMessageId)
	assert.Equal(t, 1, pending.Len())
}

func TestPendingCallsReject(t *testing.T) {
	pending := NewPendingCalls(time.Minute)
	result := &outcome{}
	require.NoError(t, pending.Register("9", "StartTransaction", result.resolve, result.reject))

	reason := NewError(InternalError, "boom")
	require.NoError(t, pending.Reject("9", reason))
	assert.Same(t, reason, result.err)
	assert.ErrorIs(t, pending.Reject("9", reason), ErrUnknownMessageId)
}

func TestPendingCallsOutOfOrder(t *testing.T) {
	pending := NewPendingCalls(time.Minute)
	first, second := &outcome{}, &outcome{}
	require.NoError(t, pending.Register("a", "Heartbeat", first.resolve, first.reject))
	require.NoError(t, pending.Register("b", "Heartbeat", second.resolve, second.reject))

	require.NoError(t, pending.Resolve("b", json.RawMessage(`{"n":2}`)))
	require.NoError(t, pending.Resolve("a", json.RawMessage(`{"n":1}`)))
	assert.JSONEq(t, `{"n":1}`, string(first.payload))
	assert.JSONEq(t, `{"n":2}`, string(second.payload))
}

func TestPendingCallsExpire(t *testing.T) {
	pending := NewPendingCalls(time.Second)
	stale := &outcome{}
	require.NoError(t, pending.Register("old", "Heartbeat", stale.resolve, stale.reject))

	expired := pending.Expire(time.Now())
	assert.Empty(t, expired)
	assert.Equal(t, 0, stale.calls)

	expired = pending.Expire(time.Now().Add(2 * time.Second))
	require.Len(t, expired, 1)
	assert.Equal(t, "Heartbeat", expired[0].Action)
	assert.ErrorIs(t, stale.err, ErrTimeout)
	assert.Equal(t, 0, pending.Len())
}

func TestPendingCallsCancelAll(t *testing.T) {
	pending := NewPendingCalls(time.Minute)
	a, b := &outcome{}, &outcome{}
	require.NoError(t, pending.Register("a", "StatusNotification", a.resolve, a.reject))
	require.NoError(t, pending.Register("b", "StartTransaction", b.resolve, b.reject))

	assert.Equal(t, 2, pending.CancelAll(ErrConnectionClosed))
	assert.ErrorIs(t, a.err, ErrConnectionClosed)
	assert.ErrorIs(t, b.err, ErrConnectionClosed)

	err := pending.Register("c", "Heartbeat", nil, nil)
	assert.True(t, errors.Is(err, ErrConnectionClosed))
}

func TestPendingCallsDiscard(t *testing.T) {
	pending := NewPendingCalls(time.Minute)
	result := &outcome{}
	require.NoError(t, pending.Register("x", "Heartbeat", result.resolve, result.reject))
	pending.Discard("x")
	assert.Equal(t, 0, pending.Len())
	assert.Equal(t, 0, result.calls)
}
