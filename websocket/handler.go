package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/PageNow/presence-api/auth"
	"github.com/PageNow/presence-api/config"
	"github.com/PageNow/presence-api/metrics"
	"github.com/PageNow/presence-api/presence"
)

// Client frame actions.
const (
	actionHeartbeat      = "heartbeat"
	actionUpdatePresence = "update-presence"
)

// clientFrame is the inbound message envelope. URL and Title are pointers so a
// missing field can be told apart from an empty one; an empty url is the
// legitimate "hide my activity" value.
type clientFrame struct {
	Action string  `json:"action"`
	URL    *string `json:"url"`
	Title  *string `json:"title"`
}

// Handler accepts websocket connections and translates client frames into
// coordinator triggers.
type Handler struct {
	manager     *Manager
	coordinator *presence.Coordinator
	verifier    auth.Verifier
	authCfg     *config.AuthConfig
	wsCfg       *config.WebSocketConfig
	upgrader    websocket.Upgrader
	log         zerolog.Logger
}

func NewHandler(
	manager *Manager,
	coordinator *presence.Coordinator,
	verifier auth.Verifier,
	authCfg *config.AuthConfig,
	wsCfg *config.WebSocketConfig,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		manager:     manager,
		coordinator: coordinator,
		verifier:    verifier,
		authCfg:     authCfg,
		wsCfg:       wsCfg,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: time.Duration(wsCfg.HandshakeTimeout) * time.Second,
			CheckOrigin:      func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

// HandleWebSocket authenticates the handshake, registers the connection and
// runs the read loop until the client goes away.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	tokenString := r.URL.Query().Get(h.authCfg.TokenQueryParam)
	if tokenString == "" {
		metrics.AuthFailures.WithLabelValues("missing_token").Inc()
		http.Error(w, "Missing authentication token", http.StatusUnauthorized)
		return
	}

	identity, err := h.verifier.Verify(r.Context(), tokenString)
	if err != nil || !identity.Valid {
		metrics.AuthFailures.WithLabelValues("invalid_token").Inc()
		h.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket auth failed")
		http.Error(w, "Invalid authentication token", http.StatusUnauthorized)
		return
	}
	metrics.AuthSuccess.Inc()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	connectionID := uuid.New().String()
	session := NewClientSession(connectionID, identity.UserID, conn, h.wsCfg, h.log)

	if err := h.coordinator.Connect(r.Context(), connectionID, identity.UserID); err != nil {
		h.log.Error().Err(err).Str("user_id", identity.UserID).Msg("failed to register connection")
		conn.Close()
		return
	}
	h.manager.Add(session)
	defer func() {
		h.manager.Remove(connectionID)
		// The request context is gone once the client disconnects.
		if err := h.coordinator.Disconnect(context.Background(), connectionID); err != nil {
			h.log.Error().Err(err).Str("connection_id", connectionID).Msg("disconnect cleanup failed")
		}
	}()

	conn.SetReadLimit(int64(h.wsCfg.MessageSizeLimit))
	conn.SetPongHandler(session.PongHandler())
	session.StartPing()

	// Give the client its connection id for correlation.
	if ack, err := json.Marshal(map[string]string{"connectionId": connectionID}); err == nil {
		if err := session.SafeWrite(ack); err != nil {
			h.log.Warn().Err(err).Str("connection_id", connectionID).Msg("failed to send connection ack")
			return
		}
	}

	h.readLoop(session, conn)
}

func (h *Handler) readLoop(session *ClientSession, conn *websocket.Conn) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) &&
				!errors.Is(err, net.ErrClosed) {
				h.log.Debug().Err(err).Str("connection_id", session.ID).Msg("read error")
			}
			session.Close(websocket.CloseNormalClosure, "client disconnected")
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(msg, &frame); err != nil {
			h.log.Warn().Err(err).Str("connection_id", session.ID).Msg("malformed client frame")
			continue
		}

		switch frame.Action {
		case actionHeartbeat:
			h.dispatch(session, func(ctx context.Context) error {
				return h.coordinator.Heartbeat(ctx, session.ID)
			})
		case actionUpdatePresence:
			if frame.URL == nil || frame.Title == nil {
				h.writeError(session, "missing 'url' or 'title' in update-presence frame")
				continue
			}
			rec := presence.ActivityRecord{URL: *frame.URL, Title: *frame.Title}
			h.dispatch(session, func(ctx context.Context) error {
				return h.coordinator.UpdateActivity(ctx, session.ID, rec)
			})
		default:
			h.log.Warn().Str("action", frame.Action).Str("connection_id", session.ID).Msg("unknown client action")
		}
	}
}

// dispatch runs a coordinator trigger with its own timeout budget. An unknown
// connection means this session was evicted while the socket stayed open; the
// client must reconnect and re-authenticate.
func (h *Handler) dispatch(session *ClientSession, op func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := op(ctx)
	switch {
	case errors.Is(err, presence.ErrUnknownConnection):
		h.writeError(session, "unknown connection, reconnect required")
	case err != nil:
		h.log.Error().Err(err).
			Str("connection_id", session.ID).
			Str("user_id", session.UserID).
			Msg("presence trigger failed")
	}
}

func (h *Handler) writeError(session *ClientSession, detail string) {
	payload, err := json.Marshal(map[string]string{"error": detail})
	if err != nil {
		return
	}
	if err := session.SafeWrite(payload); err != nil {
		h.log.Debug().Err(err).Str("connection_id", session.ID).Msg("failed to write error frame")
	}
}
