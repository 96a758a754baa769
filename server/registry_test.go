package server

import (
	"evlink/internal"
	"evlink/models"
	"evlink/ocpp"
	"evlink/ocpp/core"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type discardSender struct{}

func (discardSender) Write([]byte) error { return nil }

func newTestSession(id string) *ChargePointSession {
	logger := internal.NewLoggerWithOutput(io.Discard)
	endpoint := ocpp.NewEndpoint(id, discardSender{}, ocpp.NewRouter(core.Profile), time.Second, logger)
	return NewChargePointSession(id, endpoint, nil)
}

func TestRegistry_AddReplacesAndRemoveIsGuarded(t *testing.T) {
	registry := NewRegistry()
	first := newTestSession("CP1")
	second := newTestSession("CP1")

	assert.Nil(t, registry.Add(first))
	assert.Same(t, first, registry.Add(second))

	assert.False(t, registry.Remove(first))
	current, ok := registry.Get("CP1")
	require.True(t, ok)
	assert.Same(t, second, current)

	assert.True(t, registry.Remove(second))
	_, ok = registry.Get("CP1")
	assert.False(t, ok)
	assert.Equal(t, 0, registry.Count())
}

func TestRegistry_Concurrent(t *testing.T) {
	registry := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			session := newTestSession(fmt.Sprintf("CP%d", i))
			registry.Add(session)
			if i%2 == 0 {
				registry.Remove(session)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 25, registry.Count())
	_, ok := registry.Get("CP1")
	assert.True(t, ok)
	_, ok = registry.Get("CP2")
	assert.False(t, ok)
}

func TestRegistry_FindByTransaction(t *testing.T) {
	registry := NewRegistry()
	idle := newTestSession("CP1")
	busy := newTestSession("CP2")
	registry.Add(idle)
	registry.Add(busy)

	_, started := busy.startTransaction(&models.Transaction{ChargePointId: "CP2", ConnectorId: 1}, func() int { return 5 })
	require.True(t, started)

	found, ok := registry.FindByTransaction(5)
	require.True(t, ok)
	assert.Same(t, busy, found)
	assert.Equal(t, 1, registry.ActiveTransactions())

	_, ok = registry.FindByTransaction(6)
	assert.False(t, ok)
}

func TestChargePointSession_BusyStartTakesNoId(t *testing.T) {
	session := newTestSession("CP1")
	calls := 0
	nextId := func() int {
		calls++
		return calls
	}

	active, started := session.startTransaction(&models.Transaction{ConnectorId: 1}, nextId)
	require.True(t, started)
	assert.Equal(t, 1, active.Id)

	active, started = session.startTransaction(&models.Transaction{ConnectorId: 1}, nextId)
	assert.False(t, started)
	assert.Equal(t, 1, active.Id)
	assert.Equal(t, 1, calls)
}
