package chargepoint

import (
	"evlink/internal"
	"evlink/models"
	"evlink/ocpp"
	"evlink/ocpp/core"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"github.com/pkg/errors"
)

const queueSize = 64

var ErrSessionClosed = errors.New("session closed")

// Caller issues calls to the central system; ocpp.Endpoint is the production implementation.
// Continuations may run on any goroutine.
type Caller interface {
	Call(request ocpp.Request, onResult func(ocpp.Response), onError func(error)) (string, error)
}

// Session is the charge point side state of one connection. Every mutation of the state
// machine and of the active transaction runs on the session queue, timers included.
type Session struct {
	id          string
	connectorId int
	settings    *Settings
	caller      Caller
	logger      internal.LogHandler
	meter       *Meter
	machine     *fsm.FSM
	errorCode   core.ChargePointErrorCode
	transaction *models.Transaction

	queue     chan func()
	done      chan struct{}
	closeOnce sync.Once

	timerMutex sync.Mutex
	timers     map[int]*time.Timer
	nextTimer  int
	closed     bool
}

func NewSession(settings *Settings, caller Caller, logger internal.LogHandler) *Session {
	s := &Session{
		id:          settings.Id,
		connectorId: settings.ConnectorId,
		settings:    settings,
		caller:      caller,
		logger:      logger,
		meter:       NewMeter(settings.ChargingPower),
		errorCode:   core.NoError,
		queue:       make(chan func(), queueSize),
		done:        make(chan struct{}),
		timers:      make(map[int]*time.Timer),
	}
	s.machine = newStateMachine(s.onEnterState)
	go s.run()
	return s
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) run() {
	for {
		select {
		case <-s.done:
			return
		case task := <-s.queue:
			task()
		}
	}
}

// Post queues task without waiting; it is dropped once the session is closed
func (s *Session) Post(task func()) {
	select {
	case <-s.done:
	case s.queue <- task:
	}
}

// Do runs task on the session queue and waits for it; must not be called from the queue itself
func (s *Session) Do(task func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		task()
	}
	select {
	case <-s.done:
		return ErrSessionClosed
	case s.queue <- wrapped:
	}
	select {
	case <-finished:
		return nil
	case <-s.done:
		return ErrSessionClosed
	}
}

// schedule posts task to the queue after delay, unless the session is closed first
func (s *Session) schedule(delay time.Duration, task func()) {
	s.timerMutex.Lock()
	defer s.timerMutex.Unlock()
	if s.closed {
		return
	}
	id := s.nextTimer
	s.nextTimer++
	s.timers[id] = time.AfterFunc(delay, func() {
		s.timerMutex.Lock()
		delete(s.timers, id)
		s.timerMutex.Unlock()
		s.Post(task)
	})
}

func (s *Session) pendingTimers() int {
	s.timerMutex.Lock()
	defer s.timerMutex.Unlock()
	return len(s.timers)
}

// Close stops the queue and cancels every scheduled timer
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.timerMutex.Lock()
		s.closed = true
		for id, timer := range s.timers {
			timer.Stop()
			delete(s.timers, id)
		}
		s.timerMutex.Unlock()
		close(s.done)
	})
}

func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Status is safe to call from any goroutine
func (s *Session) Status() core.ChargePointStatus {
	return core.ChargePointStatus(s.machine.Current())
}

// ActiveTransaction returns a copy of the current transaction, nil if there is none
func (s *Session) ActiveTransaction() *models.Transaction {
	var transaction *models.Transaction
	_ = s.Do(func() {
		transaction = s.transaction.Copy()
	})
	return transaction
}
