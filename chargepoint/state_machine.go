package chargepoint

import (
	"context"
	"evlink/models"
	"evlink/ocpp"
	"evlink/ocpp/core"
	"evlink/types"
	"fmt"
	"time"

	"github.com/looplab/fsm"
	"github.com/pkg/errors"
)

const (
	eventRemoteStart   = "remote_start"
	eventBeginCharging = "begin_charging"
	eventStopCharging  = "stop_charging"
	eventFinish        = "finish"
	eventFault         = "fault"
	eventDisable       = "disable"
	eventRecover       = "recover"
)

var (
	ErrIllegalTransition   = errors.New("illegal transition")
	ErrTransactionMismatch = errors.New("transaction id does not match")
	ErrUnknownConnector    = errors.New("unknown connector")
)

var allStates = []string{
	string(core.ChargePointStatusAvailable),
	string(core.ChargePointStatusPreparing),
	string(core.ChargePointStatusCharging),
	string(core.ChargePointStatusFinishing),
	string(core.ChargePointStatusFaulted),
	string(core.ChargePointStatusUnavailable),
}

func newStateMachine(onEnter func(status core.ChargePointStatus)) *fsm.FSM {
	return fsm.NewFSM(
		string(core.ChargePointStatusAvailable),
		fsm.Events{
			{Name: eventRemoteStart, Src: []string{string(core.ChargePointStatusAvailable)}, Dst: string(core.ChargePointStatusPreparing)},
			{Name: eventBeginCharging, Src: []string{string(core.ChargePointStatusPreparing)}, Dst: string(core.ChargePointStatusCharging)},
			{Name: eventStopCharging, Src: []string{string(core.ChargePointStatusCharging)}, Dst: string(core.ChargePointStatusFinishing)},
			{Name: eventFinish, Src: []string{string(core.ChargePointStatusFinishing)}, Dst: string(core.ChargePointStatusAvailable)},
			{Name: eventFault, Src: allStates, Dst: string(core.ChargePointStatusFaulted)},
			{Name: eventDisable, Src: allStates, Dst: string(core.ChargePointStatusUnavailable)},
			{Name: eventRecover, Src: []string{string(core.ChargePointStatusFaulted), string(core.ChargePointStatusUnavailable)}, Dst: string(core.ChargePointStatusAvailable)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				onEnter(core.ChargePointStatus(e.Dst))
			},
		},
	)
}

// fire applies event; a transition the table does not allow is reported as ErrIllegalTransition
func (s *Session) fire(event string) error {
	err := s.machine.Event(context.Background(), event)
	if err == nil {
		return nil
	}
	var noTransition fsm.NoTransitionError
	if errors.As(err, &noTransition) && noTransition.Err == nil {
		return nil
	}
	return errors.Wrapf(ErrIllegalTransition, "%s in state %s", event, s.machine.Current())
}

func (s *Session) onEnterState(status core.ChargePointStatus) {
	s.logger.FeatureEvent("StateMachine", s.id, fmt.Sprintf("status %s", status))
	s.notifyStatus(status)
}

func (s *Session) notifyStatus(status core.ChargePointStatus) {
	errorCode := core.NoError
	if status == core.ChargePointStatusFaulted {
		errorCode = s.errorCode
	}
	request := core.NewStatusNotificationRequest(s.connectorId, errorCode, status)
	_, err := s.caller.Call(request, nil, func(err error) {
		s.logger.Warn(fmt.Sprintf("[%s] status notification %s: %s", s.id, status, err))
	})
	if err != nil {
		s.logger.Error(fmt.Sprintf("[%s] sending status notification", s.id), err)
	}
}

// OnRemoteStartTransaction answers Accepted only when the connector is Available and idle
func (s *Session) OnRemoteStartTransaction(request *core.RemoteStartTransactionRequest) (*core.RemoteStartTransactionResponse, error) {
	status := types.RemoteStartStopStatusRejected
	err := s.Do(func() {
		if err := s.remoteStart(request); err != nil {
			s.logger.FeatureEvent(request.GetFeatureName(), s.id, fmt.Sprintf("rejected: %s", err))
			return
		}
		status = types.RemoteStartStopStatusAccepted
	})
	if err != nil {
		return nil, ocpp.NewError(ocpp.GenericError, err.Error())
	}
	return core.NewRemoteStartTransactionResponse(status), nil
}

// OnRemoteStopTransaction answers Accepted only for the transaction currently charging
func (s *Session) OnRemoteStopTransaction(request *core.RemoteStopTransactionRequest) (*core.RemoteStopTransactionResponse, error) {
	status := types.RemoteStartStopStatusRejected
	err := s.Do(func() {
		if err := s.remoteStop(request); err != nil {
			s.logger.FeatureEvent(request.GetFeatureName(), s.id, fmt.Sprintf("rejected: %s", err))
			return
		}
		status = types.RemoteStartStopStatusAccepted
	})
	if err != nil {
		return nil, ocpp.NewError(ocpp.GenericError, err.Error())
	}
	return core.NewRemoteStopTransactionResponse(status), nil
}

func (s *Session) remoteStart(request *core.RemoteStartTransactionRequest) error {
	if request.ConnectorId != nil && *request.ConnectorId != s.connectorId {
		return errors.Wrapf(ErrUnknownConnector, "connector %d", *request.ConnectorId)
	}
	if s.transaction != nil {
		return errors.Wrap(ErrIllegalTransition, "transaction in progress")
	}
	if err := s.fire(eventRemoteStart); err != nil {
		return err
	}
	transaction := &models.Transaction{
		ChargePointId: s.id,
		ConnectorId:   s.connectorId,
		IdTag:         request.IdTag,
	}
	s.transaction = transaction
	s.schedule(s.settings.PreparingDelay, func() {
		s.beginCharging(transaction)
	})
	return nil
}

func (s *Session) beginCharging(transaction *models.Transaction) {
	if s.transaction != transaction {
		return
	}
	if err := s.fire(eventBeginCharging); err != nil {
		s.logger.Warn(fmt.Sprintf("[%s] charging not started: %s", s.id, err))
		return
	}
	now := time.Now()
	transaction.TimeStart = now
	transaction.MeterStart = s.meter.Start(now)

	request := core.NewStartTransactionRequest(transaction.ConnectorId, transaction.IdTag, transaction.MeterStart, types.NewDateTime(now))
	_, err := s.caller.Call(request,
		func(response ocpp.Response) {
			s.Post(func() {
				s.transactionStarted(transaction, response.(*core.StartTransactionResponse))
			})
		},
		func(err error) {
			s.Post(func() {
				s.logger.Error(fmt.Sprintf("[%s] start transaction", s.id), err)
				s.abortCharging(transaction, core.ReasonOther)
			})
		},
	)
	if err != nil {
		s.logger.Error(fmt.Sprintf("[%s] sending start transaction", s.id), err)
		s.abortCharging(transaction, core.ReasonOther)
	}
}

func (s *Session) transactionStarted(transaction *models.Transaction, response *core.StartTransactionResponse) {
	if s.transaction != transaction {
		// stopped before the id was known, repeat the stop with the assigned id
		if transaction.IsFinished && transaction.Id == 0 && response.TransactionId != 0 {
			transaction.Id = response.TransactionId
			s.callStopTransaction(transaction)
		}
		return
	}
	transaction.Id = response.TransactionId
	if response.IdTagInfo == nil || response.IdTagInfo.Status != types.AuthorizationStatusAccepted {
		s.logger.FeatureEvent(core.StartTransactionFeatureName, s.id, fmt.Sprintf("transaction %d not authorized", transaction.Id))
		s.abortCharging(transaction, core.ReasonDeAuthorized)
		return
	}
	s.logger.FeatureEvent(core.StartTransactionFeatureName, s.id, fmt.Sprintf("transaction %d started", transaction.Id))
}

func (s *Session) abortCharging(transaction *models.Transaction, reason core.Reason) {
	if s.transaction != transaction || s.Status() != core.ChargePointStatusCharging {
		return
	}
	if err := s.stopCharging(reason); err != nil {
		s.logger.Warn(fmt.Sprintf("[%s] %s", s.id, err))
	}
}

func (s *Session) remoteStop(request *core.RemoteStopTransactionRequest) error {
	if s.Status() != core.ChargePointStatusCharging {
		return errors.Wrapf(ErrIllegalTransition, "remote stop in state %s", s.Status())
	}
	if s.transaction == nil || s.transaction.Id == 0 || s.transaction.Id != request.TransactionId {
		return errors.Wrapf(ErrTransactionMismatch, "transaction %d", request.TransactionId)
	}
	return s.stopCharging(core.ReasonRemote)
}

func (s *Session) stopCharging(reason core.Reason) error {
	transaction := s.transaction
	if err := s.fire(eventStopCharging); err != nil {
		return err
	}
	s.schedule(s.settings.FinishingDelay, func() {
		s.completeStop(transaction, reason)
	})
	return nil
}

func (s *Session) completeStop(transaction *models.Transaction, reason core.Reason) {
	if s.transaction != transaction || s.Status() != core.ChargePointStatusFinishing {
		return
	}
	s.sendStopTransaction(transaction, reason)
	if err := s.fire(eventFinish); err != nil {
		s.logger.Warn(fmt.Sprintf("[%s] %s", s.id, err))
	}
}

// sendStopTransaction reads the meter, issues StopTransaction and clears the active transaction
func (s *Session) sendStopTransaction(transaction *models.Transaction, reason core.Reason) {
	now := time.Now()
	transaction.Finish(s.meter.Stop(now), now, string(reason))
	s.callStopTransaction(transaction)
	s.transaction = nil
}

func (s *Session) callStopTransaction(transaction *models.Transaction) {
	request := core.NewStopTransactionRequest(*transaction.MeterStop, types.NewDateTime(*transaction.TimeStop), transaction.Id, core.Reason(transaction.Reason))
	request.IdTag = transaction.IdTag
	_, err := s.caller.Call(request,
		func(response ocpp.Response) {
			s.logger.FeatureEvent(core.StopTransactionFeatureName, s.id, fmt.Sprintf("transaction %d stopped, %d Wh", transaction.Id, transaction.Consumed()))
		},
		func(err error) {
			s.logger.Error(fmt.Sprintf("[%s] stop transaction %d", s.id, transaction.Id), err)
		},
	)
	if err != nil {
		s.logger.Error(fmt.Sprintf("[%s] sending stop transaction", s.id), err)
	}
}

// ReportStatus applies a status raised by the hardware: Faulted and Unavailable are reachable
// from any state and end a running transaction; Available recovers only an idle connector.
func (s *Session) ReportStatus(status core.ChargePointStatus, errorCode core.ChargePointErrorCode) error {
	var result error
	err := s.Do(func() {
		result = s.reportStatus(status, errorCode)
	})
	if err != nil {
		return err
	}
	return result
}

func (s *Session) reportStatus(status core.ChargePointStatus, errorCode core.ChargePointErrorCode) error {
	switch status {
	case core.ChargePointStatusFaulted:
		if errorCode == "" || errorCode == core.NoError {
			errorCode = core.OtherError
		}
		s.errorCode = errorCode
		s.dropTransaction(core.ReasonEmergencyStop)
		return s.fire(eventFault)
	case core.ChargePointStatusUnavailable:
		s.dropTransaction(core.ReasonLocal)
		return s.fire(eventDisable)
	case core.ChargePointStatusAvailable:
		if s.transaction != nil {
			return errors.Wrap(ErrIllegalTransition, "transaction in progress")
		}
		if err := s.fire(eventRecover); err != nil {
			return err
		}
		s.errorCode = core.NoError
		return nil
	default:
		return errors.Wrapf(ErrIllegalTransition, "status %s is driven by transactions", status)
	}
}

// dropTransaction ends the active transaction; one not yet reported to the central system is discarded
func (s *Session) dropTransaction(reason core.Reason) {
	transaction := s.transaction
	if transaction == nil {
		return
	}
	if transaction.TimeStart.IsZero() {
		s.transaction = nil
		return
	}
	s.sendStopTransaction(transaction, reason)
}
