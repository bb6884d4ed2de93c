// Package signal implements the single-slot instruction mailbox used to hand
// client-side actions (start/stop capture, show the visitor form) from the
// coordination core to the polling kiosk client.
//
// This is deliberately not a queue: the client polls at a fixed interval and
// only ever needs the current instruction, so a new post overwrites any
// unconsumed one (last write wins) and a consumed signal is never seen twice.
package signal

import (
	"log/slog"
	"sync"
	"time"

	"github.com/openlobby/LobbyPipe/internal/models"
)

// Mailbox holds at most one pending signal per session.
type Mailbox struct {
	mu      sync.RWMutex
	pending map[string]*models.Signal
}

// NewMailbox creates an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{pending: make(map[string]*models.Signal)}
}

// Post stores a signal for the session, overwriting any unconsumed one.
func (m *Mailbox) Post(sessionID string, name models.SignalName, payload map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.pending[sessionID]; ok {
		slog.Debug("signal.Mailbox overwriting unconsumed signal", "session_id", sessionID, "previous", prev.Name, "next", name)
	}
	m.pending[sessionID] = &models.Signal{
		Name:      name,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
	slog.Debug("signal.Mailbox posted", "session_id", sessionID, "name", name)
}

// Peek returns the pending signal without clearing it, or nil when none.
func (m *Mailbox) Peek(sessionID string) *models.Signal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pending[sessionID]
}

// Consume clears and returns the pending signal. Calling it again without an
// intervening post is a no-op returning nil.
func (m *Mailbox) Consume(sessionID string) *models.Signal {
	m.mu.Lock()
	defer m.mu.Unlock()
	sig, ok := m.pending[sessionID]
	if !ok {
		return nil
	}
	delete(m.pending, sessionID)
	slog.Debug("signal.Mailbox consumed", "session_id", sessionID, "name", sig.Name)
	return sig
}

// Drop discards any pending signal for the session, used on teardown and
// auto-sleep. Idempotent.
func (m *Mailbox) Drop(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, sessionID)
}
