package server

import (
	"sync"
)

// Registry maps a charge point id to its live session; safe for concurrent use
type Registry struct {
	mutex    sync.RWMutex
	sessions map[string]*ChargePointSession
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*ChargePointSession),
	}
}

// Add stores session and returns the session it replaced, if any
func (r *Registry) Add(session *ChargePointSession) *ChargePointSession {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	previous := r.sessions[session.ID()]
	r.sessions[session.ID()] = session
	if previous == session {
		return nil
	}
	return previous
}

// Remove deletes the entry only while it still holds this session, so a replaced
// session going away never evicts its successor
func (r *Registry) Remove(session *ChargePointSession) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	current, ok := r.sessions[session.ID()]
	if !ok || current != session {
		return false
	}
	delete(r.sessions, session.ID())
	return true
}

func (r *Registry) Get(id string) (*ChargePointSession, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	session, ok := r.sessions[id]
	return session, ok
}

func (r *Registry) List() []*ChargePointSession {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	list := make([]*ChargePointSession, 0, len(r.sessions))
	for _, session := range r.sessions {
		list = append(list, session)
	}
	return list
}

// FindByTransaction returns the session holding the active transaction with this id
func (r *Registry) FindByTransaction(transactionId int) (*ChargePointSession, bool) {
	for _, session := range r.List() {
		if transaction := session.ActiveTransaction(); transaction != nil && transaction.Id == transactionId {
			return session, true
		}
	}
	return nil, false
}

func (r *Registry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.sessions)
}

// ActiveTransactions counts sessions with a transaction in progress
func (r *Registry) ActiveTransactions() int {
	count := 0
	for _, session := range r.List() {
		if session.ActiveTransaction() != nil {
			count++
		}
	}
	return count
}
