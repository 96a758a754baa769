package server

import (
	"evlink/models"
	"evlink/ocpp"
	"evlink/ocpp/core"
	"sync"
	"time"
)

// ChargePointSession is the central system view of one connected charge point
type ChargePointSession struct {
	id          string
	endpoint    *ocpp.Endpoint
	socket      *WebSocket
	connectedAt time.Time

	mutex       sync.RWMutex
	vendor      string
	model       string
	status      core.ChargePointStatus
	errorCode   core.ChargePointErrorCode
	lastSeen    time.Time
	transaction *models.Transaction
}

func NewChargePointSession(id string, endpoint *ocpp.Endpoint, socket *WebSocket) *ChargePointSession {
	now := time.Now()
	return &ChargePointSession{
		id:          id,
		endpoint:    endpoint,
		socket:      socket,
		connectedAt: now,
		lastSeen:    now,
		status:      core.ChargePointStatusAvailable,
		errorCode:   core.NoError,
	}
}

func (s *ChargePointSession) ID() string {
	return s.id
}

func (s *ChargePointSession) Endpoint() *ocpp.Endpoint {
	return s.endpoint
}

func (s *ChargePointSession) Status() core.ChargePointStatus {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.status
}

func (s *ChargePointSession) ActiveTransaction() *models.Transaction {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.transaction.Copy()
}

func (s *ChargePointSession) Snapshot() *models.ChargePoint {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	snapshot := &models.ChargePoint{
		Id:          s.id,
		Vendor:      s.vendor,
		Model:       s.model,
		Status:      string(s.status),
		ErrorCode:   string(s.errorCode),
		ConnectedAt: s.connectedAt,
		LastSeen:    s.lastSeen,
	}
	if s.transaction != nil {
		snapshot.TransactionId = s.transaction.Id
	}
	return snapshot
}

func (s *ChargePointSession) touch() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.lastSeen = time.Now()
}

func (s *ChargePointSession) setBoot(vendor, model string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.vendor = vendor
	s.model = model
	s.lastSeen = time.Now()
}

func (s *ChargePointSession) setStatus(status core.ChargePointStatus, errorCode core.ChargePointErrorCode) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.status = status
	s.errorCode = errorCode
	s.lastSeen = time.Now()
}

// startTransaction keeps transaction unless one is already active, which is returned instead;
// the id is taken from nextId only when the connector is free
func (s *ChargePointSession) startTransaction(transaction *models.Transaction, nextId func() int) (active *models.Transaction, started bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.transaction != nil {
		return s.transaction.Copy(), false
	}
	transaction.Id = nextId()
	s.transaction = transaction
	return transaction.Copy(), true
}

// stopTransaction finalises the active transaction when its id matches
func (s *ChargePointSession) stopTransaction(transactionId, meterStop int, timeStop time.Time, reason string) (*models.Transaction, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.transaction == nil || s.transaction.Id != transactionId {
		return nil, false
	}
	transaction := s.transaction
	transaction.Finish(meterStop, timeStop, reason)
	s.transaction = nil
	return transaction, true
}

// Close abandons pending calls and drops the connection
func (s *ChargePointSession) Close() {
	s.endpoint.Close()
	if s.socket != nil {
		s.socket.Close()
	}
}
