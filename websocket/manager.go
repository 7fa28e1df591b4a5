package websocket

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/PageNow/presence-api/metrics"
	"github.com/PageNow/presence-api/presence"
)

// Manager tracks the live websocket sessions owned by this instance and
// doubles as the push transport the fan-out notifier delivers through.
type Manager struct {
	sessions sync.Map // connectionID -> *ClientSession
	log      zerolog.Logger
}

func NewManager(log zerolog.Logger) *Manager {
	return &Manager{log: log}
}

// Add registers a live session.
func (m *Manager) Add(session *ClientSession) {
	m.sessions.Store(session.ID, session)
	metrics.ActiveConnections.Inc()
	metrics.TotalConnections.Inc()
	m.log.Info().
		Str("connection_id", session.ID).
		Str("user_id", session.UserID).
		Msg("client connected")
}

// Remove forgets a session. Idempotent.
func (m *Manager) Remove(connectionID string) {
	if _, loaded := m.sessions.LoadAndDelete(connectionID); loaded {
		metrics.ActiveConnections.Dec()
		m.log.Info().Str("connection_id", connectionID).Msg("client removed")
	}
}

// Get returns the live session for a connection id.
func (m *Manager) Get(connectionID string) (*ClientSession, bool) {
	if val, ok := m.sessions.Load(connectionID); ok {
		return val.(*ClientSession), true
	}
	return nil, false
}

// Send implements presence.Pusher. A connection this instance no longer holds,
// or one that rejects writes past the retry budget, is reported gone so the
// registry can heal itself.
func (m *Manager) Send(ctx context.Context, connectionID string, payload []byte) error {
	session, ok := m.Get(connectionID)
	if !ok {
		return presence.ErrConnectionGone
	}
	if err := session.SafeWrite(payload); err != nil {
		m.log.Debug().Err(err).Str("connection_id", connectionID).Msg("write failed, dropping session")
		session.Close(websocket.CloseInternalServerErr, "write failure")
		m.Remove(connectionID)
		return presence.ErrConnectionGone
	}
	return nil
}

// CloseAll closes every session, for graceful shutdown.
func (m *Manager) CloseAll(reason string) {
	m.sessions.Range(func(key, value interface{}) bool {
		session := value.(*ClientSession)
		session.Close(websocket.CloseGoingAway, reason)
		m.Remove(session.ID)
		return true
	})
}
