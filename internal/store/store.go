// Package store provides storage backends for LobbyPipe.
//
// It persists flow sessions for crash recovery and the visitor log produced by
// completed intakes. An in-memory store backs tests and single-process
// deployments; SQLite and PostgreSQL back persistent deployments.
package store

import (
	"sort"
	"sync"

	"github.com/openlobby/LobbyPipe/internal/models"
)

// Store is the persistence boundary of the coordination core.
// GetFlowSession returns (nil, nil) when no session is stored under the ID.
type Store interface {
	SaveFlowSession(session models.FlowSession) error
	GetFlowSession(sessionID string) (*models.FlowSession, error)
	DeleteFlowSession(sessionID string) error
	ListFlowSessions() ([]models.FlowSession, error)

	AddVisitorLog(log models.VisitorLog) error
	GetVisitorLogs() ([]models.VisitorLog, error)

	Close() error
}

// InMemoryStore is a map-backed store for tests and ephemeral deployments.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]models.FlowSession
	logs     []models.VisitorLog
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]models.FlowSession)}
}

func (s *InMemoryStore) SaveFlowSession(session models.FlowSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = cloneSession(session)
	return nil
}

func (s *InMemoryStore) GetFlowSession(sessionID string) (*models.FlowSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	clone := cloneSession(session)
	return &clone, nil
}

func (s *InMemoryStore) DeleteFlowSession(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

func (s *InMemoryStore) ListFlowSessions() ([]models.FlowSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessions := make([]models.FlowSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, cloneSession(session))
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ID < sessions[j].ID })
	return sessions, nil
}

func (s *InMemoryStore) AddVisitorLog(log models.VisitorLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, log)
	return nil
}

func (s *InMemoryStore) GetVisitorLogs() ([]models.VisitorLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	logs := make([]models.VisitorLog, len(s.logs))
	copy(logs, s.logs)
	return logs, nil
}

func (s *InMemoryStore) Close() error { return nil }

// cloneSession deep-copies the session so callers cannot mutate stored state.
func cloneSession(session models.FlowSession) models.FlowSession {
	clone := session
	if session.Employee != nil {
		rec := *session.Employee
		clone.Employee = &rec
	}
	if session.VisitorData != nil {
		clone.VisitorData = make(map[models.VisitorField]string, len(session.VisitorData))
		for k, v := range session.VisitorData {
			clone.VisitorData[k] = v
		}
	}
	return clone
}
