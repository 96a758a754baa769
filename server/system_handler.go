package server

import (
	"evlink/internal"
	"evlink/metrics/counters"
	"evlink/models"
	"evlink/ocpp/core"
	"evlink/types"
	"fmt"
	"time"

	"go.uber.org/atomic"
)

// SystemHandler answers the calls of connected charge points and keeps their sessions current
type SystemHandler struct {
	registry          *Registry
	logger            internal.LogHandler
	eventListeners    []internal.EventHandler
	heartbeatInterval time.Duration
	lastTransactionId *atomic.Int64
}

func NewSystemHandler(registry *Registry, heartbeatInterval time.Duration) *SystemHandler {
	return &SystemHandler{
		registry:          registry,
		heartbeatInterval: heartbeatInterval,
		lastTransactionId: atomic.NewInt64(0),
	}
}

func (h *SystemHandler) SetLogger(logger internal.LogHandler) {
	h.logger = logger
}

func (h *SystemHandler) AddEventListener(listener internal.EventHandler) {
	h.eventListeners = append(h.eventListeners, listener)
}

// nextTransactionId never repeats within the process lifetime
func (h *SystemHandler) nextTransactionId() int {
	return int(h.lastTransactionId.Inc())
}

func (h *SystemHandler) getSession(chargePointId string) (*ChargePointSession, bool) {
	session, ok := h.registry.Get(chargePointId)
	if !ok {
		h.logger.Warn(fmt.Sprintf("unknown charging point: %s", chargePointId))
	}
	return session, ok
}

func (h *SystemHandler) OnBootNotification(chargePointId string, request *core.BootNotificationRequest) (confirmation *core.BootNotificationResponse, err error) {
	regStatus := core.RegistrationStatusAccepted
	if session, ok := h.getSession(chargePointId); ok {
		session.setBoot(request.ChargePointVendor, request.ChargePointModel)
	} else {
		regStatus = core.RegistrationStatusRejected
	}
	h.logger.FeatureEvent(request.GetFeatureName(), chargePointId, fmt.Sprintf("%s %s: %s", request.ChargePointVendor, request.ChargePointModel, regStatus))
	interval := int(h.heartbeatInterval / time.Second)
	return core.NewBootNotificationResponse(types.NewDateTime(time.Now()), interval, regStatus), nil
}

func (h *SystemHandler) OnHeartbeat(chargePointId string, request *core.HeartbeatRequest) (confirmation *core.HeartbeatResponse, err error) {
	if session, ok := h.getSession(chargePointId); ok {
		session.touch()
	}
	h.logger.Debug(fmt.Sprintf("[%s] %s", chargePointId, request.GetFeatureName()))
	return core.NewHeartbeatResponse(types.NewDateTime(time.Now())), nil
}

func (h *SystemHandler) OnStatusNotification(chargePointId string, request *core.StatusNotificationRequest) (confirmation *core.StatusNotificationResponse, err error) {
	session, ok := h.getSession(chargePointId)
	if !ok {
		return core.NewStatusNotificationResponse(), nil
	}
	session.setStatus(request.Status, request.ErrorCode)
	observeError(chargePointId, request.ErrorCode)
	h.logger.FeatureEvent(request.GetFeatureName(), chargePointId, fmt.Sprintf("connector #%v status %v", request.ConnectorId, request.Status))

	eventMessage := &internal.EventMessage{
		ChargePointId: chargePointId,
		ConnectorId:   request.ConnectorId,
		Time:          time.Now(),
		Status:        string(request.Status),
		Info:          request.Info,
	}
	if request.ErrorCode != core.NoError {
		eventMessage.Info = fmt.Sprintf("%s %s", request.ErrorCode, request.Info)
	}
	if transaction := session.ActiveTransaction(); transaction != nil {
		eventMessage.TransactionId = transaction.Id
	}
	for _, listener := range h.eventListeners {
		listener.OnStatusNotification(eventMessage)
	}
	return core.NewStatusNotificationResponse(), nil
}

func (h *SystemHandler) OnStartTransaction(chargePointId string, request *core.StartTransactionRequest) (confirmation *core.StartTransactionResponse, err error) {
	session, ok := h.getSession(chargePointId)
	if !ok {
		return core.NewStartTransactionResponse(types.NewIdTagInfo(types.AuthorizationStatusBlocked), 0), nil
	}

	transaction := &models.Transaction{
		ChargePointId: chargePointId,
		ConnectorId:   request.ConnectorId,
		IdTag:         request.IdTag,
		MeterStart:    request.MeterStart,
		TimeStart:     request.Timestamp.Time,
	}
	active, started := session.startTransaction(transaction, h.nextTransactionId)
	if !started {
		h.logger.FeatureEvent(request.GetFeatureName(), chargePointId, fmt.Sprintf("connector %d is busy with transaction %d", request.ConnectorId, active.Id))
		return core.NewStartTransactionResponse(types.NewIdTagInfo(types.AuthorizationStatusConcurrentTx), active.Id), nil
	}
	counters.CountTransaction(chargePointId)
	counters.ObserveTransactions(h.registry.ActiveTransactions())

	eventMessage := &internal.EventMessage{
		ChargePointId: chargePointId,
		ConnectorId:   transaction.ConnectorId,
		Time:          transaction.TimeStart,
		IdTag:         transaction.IdTag,
		TransactionId: transaction.Id,
		Status:        string(session.Status()),
	}
	for _, listener := range h.eventListeners {
		listener.OnTransactionStart(eventMessage)
	}

	h.logger.FeatureEvent(request.GetFeatureName(), chargePointId, fmt.Sprintf("started transaction #%v for connector %v", transaction.Id, transaction.ConnectorId))
	return core.NewStartTransactionResponse(types.NewIdTagInfo(types.AuthorizationStatusAccepted), transaction.Id), nil
}

func (h *SystemHandler) OnStopTransaction(chargePointId string, request *core.StopTransactionRequest) (confirmation *core.StopTransactionResponse, err error) {
	session, ok := h.getSession(chargePointId)
	if !ok {
		return core.NewStopTransactionResponse(types.NewIdTagInfo(types.AuthorizationStatusAccepted)), nil
	}
	transaction, ok := session.stopTransaction(request.TransactionId, request.MeterStop, request.Timestamp.Time, string(request.Reason))
	if !ok {
		h.logger.Warn(fmt.Sprintf("[%s] transaction #%v not found", chargePointId, request.TransactionId))
		return core.NewStopTransactionResponse(types.NewIdTagInfo(types.AuthorizationStatusAccepted)), nil
	}
	counters.ObserveTransactions(h.registry.ActiveTransactions())

	eventMessage := &internal.EventMessage{
		ChargePointId: chargePointId,
		ConnectorId:   transaction.ConnectorId,
		Time:          *transaction.TimeStop,
		IdTag:         transaction.IdTag,
		TransactionId: transaction.Id,
		Status:        string(session.Status()),
		Info:          fmt.Sprintf("consumed %0.1f kWh; %s", float64(transaction.Consumed())/1000, transaction.Reason),
	}
	for _, listener := range h.eventListeners {
		listener.OnTransactionStop(eventMessage)
	}

	h.logger.FeatureEvent(request.GetFeatureName(), chargePointId, fmt.Sprintf("stopped transaction %v %v", request.TransactionId, request.Reason))
	return core.NewStopTransactionResponse(types.NewIdTagInfo(types.AuthorizationStatusAccepted)), nil
}
