package websocket

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/PageNow/presence-api/config"
)

const (
	writeRetryDelay = 200 * time.Millisecond
	writeMaxRetries = 3
)

// ClientSession is one connected websocket client. Writes are serialized
// through the session mutex; gorilla connections allow only one concurrent
// writer.
type ClientSession struct {
	ID     string
	UserID string

	conn       *websocket.Conn
	cfg        *config.WebSocketConfig
	log        zerolog.Logger
	ctx        context.Context
	cancel     context.CancelFunc
	lastSeen   atomic.Int64
	pingTicker *time.Ticker
	mu         sync.Mutex
	closed     bool
}

func NewClientSession(id, userID string, conn *websocket.Conn, cfg *config.WebSocketConfig, log zerolog.Logger) *ClientSession {
	ctx, cancel := context.WithCancel(context.Background())
	cs := &ClientSession{
		ID:     id,
		UserID: userID,
		conn:   conn,
		cfg:    cfg,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
	cs.lastSeen.Store(time.Now().Unix())
	return cs
}

// SafeWrite writes a text frame with a bounded retry, so one transient write
// hiccup does not count a live client as unreachable.
func (s *ClientSession) SafeWrite(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	operation := func() error {
		deadline := time.Now().Add(time.Duration(s.cfg.WriteTimeout) * time.Second)
		if err := s.conn.SetWriteDeadline(deadline); err != nil {
			return err
		}
		return s.conn.WriteMessage(websocket.TextMessage, payload)
	}

	strategy := backoff.WithMaxRetries(
		backoff.NewConstantBackOff(writeRetryDelay),
		writeMaxRetries,
	)

	return backoff.RetryNotify(operation, strategy, func(err error, d time.Duration) {
		s.log.Debug().Err(err).Str("connection_id", s.ID).Dur("next_in", d).Msg("retrying websocket write")
	})
}

// StartPing runs the server-side keepalive loop until the session closes.
func (s *ClientSession) StartPing() {
	s.mu.Lock()
	s.pingTicker = time.NewTicker(time.Duration(s.cfg.PingInterval) * time.Second)
	s.mu.Unlock()
	go s.pingLoop()
}

func (s *ClientSession) pingLoop() {
	defer s.pingTicker.Stop()

	for {
		select {
		case <-s.pingTicker.C:
			if err := s.sendPing(); err != nil {
				s.log.Debug().Err(err).Str("connection_id", s.ID).Msg("ping failed, closing session")
				s.Close(websocket.CloseInternalServerErr, "ping failure")
				return
			}
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *ClientSession) sendPing() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteControl(
		websocket.PingMessage,
		nil,
		time.Now().Add(time.Duration(s.cfg.WriteTimeout)*time.Second),
	)
}

// PongHandler returns the handler recording client pongs. Pongs only prove the
// socket is alive; presence liveness is advanced solely by explicit heartbeat
// and update frames.
func (s *ClientSession) PongHandler() func(string) error {
	return func(string) error {
		s.lastSeen.Store(time.Now().Unix())
		return nil
	}
}

// LastSeen returns the time of the last pong or construction.
func (s *ClientSession) LastSeen() time.Time {
	return time.Unix(s.lastSeen.Load(), 0)
}

// Close sends a close frame and tears the connection down. Safe to call more
// than once.
func (s *ClientSession) Close(code int, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.pingTicker != nil {
		s.pingTicker.Stop()
	}
	s.cancel()

	deadline := time.Now().Add(time.Duration(s.cfg.WriteTimeout) * time.Second)
	if err := s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), deadline); err != nil {
		s.log.Debug().Err(err).Str("connection_id", s.ID).Msg("error sending close frame")
	}
	return s.conn.Close()
}
