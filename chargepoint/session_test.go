package chargepoint

import (
	"evlink/internal"
	"evlink/ocpp"
	"evlink/ocpp/core"
	"evlink/types"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTransactionId = 42

// fakeCaller answers every call asynchronously, the way replies arrive from the read loop
type fakeCaller struct {
	mutex       sync.Mutex
	requests    []ocpp.Request
	startStatus types.AuthorizationStatus
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{startStatus: types.AuthorizationStatusAccepted}
}

func (f *fakeCaller) Call(request ocpp.Request, onResult func(ocpp.Response), _ func(error)) (string, error) {
	f.mutex.Lock()
	f.requests = append(f.requests, request)
	status := f.startStatus
	f.mutex.Unlock()

	var response ocpp.Response
	switch request.(type) {
	case *core.StartTransactionRequest:
		response = core.NewStartTransactionResponse(types.NewIdTagInfo(status), testTransactionId)
	case *core.StopTransactionRequest:
		response = core.NewStopTransactionResponse(nil)
	case *core.StatusNotificationRequest:
		response = core.NewStatusNotificationResponse()
	case *core.HeartbeatRequest:
		response = core.NewHeartbeatResponse(types.NewDateTime(time.Now()))
	}
	if onResult != nil && response != nil {
		go onResult(response)
	}
	return "test", nil
}

func (f *fakeCaller) byAction(action string) []ocpp.Request {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	var found []ocpp.Request
	for _, request := range f.requests {
		if request.GetFeatureName() == action {
			found = append(found, request)
		}
	}
	return found
}

func (f *fakeCaller) statuses() []core.ChargePointStatus {
	var statuses []core.ChargePointStatus
	for _, request := range f.byAction(core.StatusNotificationFeatureName) {
		statuses = append(statuses, request.(*core.StatusNotificationRequest).Status)
	}
	return statuses
}

func testSettings() *Settings {
	return &Settings{
		Id:             "CP1",
		ConnectorId:    1,
		PreparingDelay: 20 * time.Millisecond,
		FinishingDelay: 20 * time.Millisecond,
		CallTimeout:    time.Second,
		ChargingPower:  11000,
	}
}

func newTestSession(t *testing.T) (*Session, *fakeCaller) {
	caller := newFakeCaller()
	session := NewSession(testSettings(), caller, internal.NewLoggerWithOutput(io.Discard))
	t.Cleanup(session.Close)
	return session, caller
}

func remoteStart(t *testing.T, session *Session, idTag string) types.RemoteStartStopStatus {
	response, err := session.OnRemoteStartTransaction(core.NewRemoteStartTransactionRequest(idTag))
	require.NoError(t, err)
	return response.Status
}

func remoteStop(t *testing.T, session *Session, transactionId int) types.RemoteStartStopStatus {
	response, err := session.OnRemoteStopTransaction(core.NewRemoteStopTransactionRequest(transactionId))
	require.NoError(t, err)
	return response.Status
}

func waitCharging(t *testing.T, session *Session) {
	require.Eventually(t, func() bool {
		transaction := session.ActiveTransaction()
		return session.Status() == core.ChargePointStatusCharging && transaction != nil && transaction.Id == testTransactionId
	}, time.Second, 5*time.Millisecond)
}

func TestSession_StartAndStop(t *testing.T) {
	session, caller := newTestSession(t)

	assert.Equal(t, types.RemoteStartStopStatusAccepted, remoteStart(t, session, "X"))
	assert.Equal(t, core.ChargePointStatusPreparing, session.Status())
	waitCharging(t, session)

	starts := caller.byAction(core.StartTransactionFeatureName)
	require.Len(t, starts, 1)
	start := starts[0].(*core.StartTransactionRequest)
	assert.Equal(t, "X", start.IdTag)
	assert.Equal(t, 1, start.ConnectorId)

	assert.Equal(t, types.RemoteStartStopStatusAccepted, remoteStop(t, session, testTransactionId))
	assert.Equal(t, core.ChargePointStatusFinishing, session.Status())

	require.Eventually(t, func() bool {
		return session.Status() == core.ChargePointStatusAvailable && session.ActiveTransaction() == nil
	}, time.Second, 5*time.Millisecond)

	stops := caller.byAction(core.StopTransactionFeatureName)
	require.Len(t, stops, 1)
	stop := stops[0].(*core.StopTransactionRequest)
	assert.Equal(t, testTransactionId, stop.TransactionId)
	assert.Equal(t, core.ReasonRemote, stop.Reason)
	assert.GreaterOrEqual(t, stop.MeterStop, start.MeterStart)

	assert.Equal(t, []core.ChargePointStatus{
		core.ChargePointStatusPreparing,
		core.ChargePointStatusCharging,
		core.ChargePointStatusFinishing,
		core.ChargePointStatusAvailable,
	}, caller.statuses())
}

func TestSession_RemoteStartRejectedUnlessAvailable(t *testing.T) {
	session, caller := newTestSession(t)

	require.Equal(t, types.RemoteStartStopStatusAccepted, remoteStart(t, session, "X"))
	assert.Equal(t, types.RemoteStartStopStatusRejected, remoteStart(t, session, "Y"))

	waitCharging(t, session)
	assert.Equal(t, types.RemoteStartStopStatusRejected, remoteStart(t, session, "Y"))
	assert.Equal(t, "X", session.ActiveTransaction().IdTag)
	assert.Len(t, caller.byAction(core.StartTransactionFeatureName), 1)
}

func TestSession_ConcurrentRemoteStart(t *testing.T) {
	session, caller := newTestSession(t)

	var wg sync.WaitGroup
	var mutex sync.Mutex
	accepted := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			response, err := session.OnRemoteStartTransaction(core.NewRemoteStartTransactionRequest("X"))
			if err == nil && response.Status == types.RemoteStartStopStatusAccepted {
				mutex.Lock()
				accepted++
				mutex.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	waitCharging(t, session)
	assert.Len(t, caller.byAction(core.StartTransactionFeatureName), 1)
}

func TestSession_RemoteStartUnknownConnector(t *testing.T) {
	session, _ := newTestSession(t)

	connectorId := 2
	request := core.NewRemoteStartTransactionRequest("X")
	request.ConnectorId = &connectorId
	response, err := session.OnRemoteStartTransaction(request)
	require.NoError(t, err)
	assert.Equal(t, types.RemoteStartStopStatusRejected, response.Status)
	assert.Equal(t, core.ChargePointStatusAvailable, session.Status())
}

func TestSession_RemoteStopMismatch(t *testing.T) {
	session, caller := newTestSession(t)

	require.Equal(t, types.RemoteStartStopStatusAccepted, remoteStart(t, session, "X"))
	waitCharging(t, session)

	assert.Equal(t, types.RemoteStartStopStatusRejected, remoteStop(t, session, testTransactionId+1))
	assert.Equal(t, core.ChargePointStatusCharging, session.Status())
	transaction := session.ActiveTransaction()
	require.NotNil(t, transaction)
	assert.Equal(t, testTransactionId, transaction.Id)
	assert.False(t, transaction.IsFinished)
	assert.Empty(t, caller.byAction(core.StopTransactionFeatureName))
}

func TestSession_RemoteStopWhilePreparing(t *testing.T) {
	session, _ := newTestSession(t)

	require.Equal(t, types.RemoteStartStopStatusAccepted, remoteStart(t, session, "X"))
	assert.Equal(t, types.RemoteStartStopStatusRejected, remoteStop(t, session, 0))
	assert.Equal(t, core.ChargePointStatusPreparing, session.Status())
}

func TestSession_StartNotAuthorized(t *testing.T) {
	session, caller := newTestSession(t)
	caller.startStatus = types.AuthorizationStatusInvalid

	require.Equal(t, types.RemoteStartStopStatusAccepted, remoteStart(t, session, "X"))
	require.Eventually(t, func() bool {
		return len(caller.byAction(core.StopTransactionFeatureName)) == 1 && session.Status() == core.ChargePointStatusAvailable
	}, time.Second, 5*time.Millisecond)

	stop := caller.byAction(core.StopTransactionFeatureName)[0].(*core.StopTransactionRequest)
	assert.Equal(t, core.ReasonDeAuthorized, stop.Reason)
	assert.Equal(t, testTransactionId, stop.TransactionId)
	assert.Nil(t, session.ActiveTransaction())
}

func TestSession_CloseCancelsTimers(t *testing.T) {
	session, caller := newTestSession(t)

	require.Equal(t, types.RemoteStartStopStatusAccepted, remoteStart(t, session, "X"))
	assert.Equal(t, 1, session.pendingTimers())

	session.Close()
	assert.Equal(t, 0, session.pendingTimers())

	time.Sleep(3 * testSettings().PreparingDelay)
	assert.Empty(t, caller.byAction(core.StartTransactionFeatureName))

	_, err := session.OnRemoteStartTransaction(core.NewRemoteStartTransactionRequest("X"))
	assert.Error(t, err)
	assert.ErrorIs(t, session.ReportStatus(core.ChargePointStatusFaulted, core.GroundFailure), ErrSessionClosed)
}

func TestSession_ReportStatus(t *testing.T) {
	session, caller := newTestSession(t)

	require.Equal(t, types.RemoteStartStopStatusAccepted, remoteStart(t, session, "X"))
	waitCharging(t, session)

	require.NoError(t, session.ReportStatus(core.ChargePointStatusFaulted, core.GroundFailure))
	assert.Equal(t, core.ChargePointStatusFaulted, session.Status())
	assert.Nil(t, session.ActiveTransaction())

	stops := caller.byAction(core.StopTransactionFeatureName)
	require.Len(t, stops, 1)
	assert.Equal(t, core.ReasonEmergencyStop, stops[0].(*core.StopTransactionRequest).Reason)

	notifications := caller.byAction(core.StatusNotificationFeatureName)
	last := notifications[len(notifications)-1].(*core.StatusNotificationRequest)
	assert.Equal(t, core.ChargePointStatusFaulted, last.Status)
	assert.Equal(t, core.GroundFailure, last.ErrorCode)

	assert.Equal(t, types.RemoteStartStopStatusRejected, remoteStart(t, session, "Y"))

	err := session.ReportStatus(core.ChargePointStatusCharging, core.NoError)
	assert.True(t, errors.Is(err, ErrIllegalTransition))

	require.NoError(t, session.ReportStatus(core.ChargePointStatusAvailable, core.NoError))
	assert.Equal(t, core.ChargePointStatusAvailable, session.Status())
}

func TestSession_FaultWhilePreparingDropsTransaction(t *testing.T) {
	session, caller := newTestSession(t)

	require.Equal(t, types.RemoteStartStopStatusAccepted, remoteStart(t, session, "X"))
	require.NoError(t, session.ReportStatus(core.ChargePointStatusUnavailable, core.NoError))

	time.Sleep(3 * testSettings().PreparingDelay)
	assert.Equal(t, core.ChargePointStatusUnavailable, session.Status())
	assert.Nil(t, session.ActiveTransaction())
	assert.Empty(t, caller.byAction(core.StartTransactionFeatureName))
	assert.Empty(t, caller.byAction(core.StopTransactionFeatureName))
}
