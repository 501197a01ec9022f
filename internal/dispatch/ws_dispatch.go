package dispatch

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/fare-finder/internal/view"
)

const (
	writeWait  = 5 * time.Second
	sendBuffer = 16
)

// ErrSessionClosed is returned by Send once the socket has been closed.
var ErrSessionClosed = errors.New("ws session closed")

// WSSession is one open browser socket. Only its writer goroutine touches the
// connection for writing.
type WSSession struct {
	conn *websocket.Conn
	send chan view.View
	done chan struct{}
	once sync.Once
}

func newWSSession(conn *websocket.Conn) *WSSession {
	return &WSSession{conn: conn, send: make(chan view.View, sendBuffer), done: make(chan struct{})}
}

// Send queues v and never blocks. A full queue drops its oldest view, since every
// view is a complete snapshot and only the latest matters.
func (s *WSSession) Send(v view.View) error {
	for {
		select {
		case <-s.done:
			return ErrSessionClosed
		default:
		}
		select {
		case s.send <- v:
			return nil
		default:
		}
		select {
		case <-s.send:
		default:
		}
	}
}

func (s *WSSession) writePump(sessionID string, logger *slog.Logger) {
	for {
		select {
		case <-s.done:
			return
		case v := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(v); err != nil {
				logger.Warn("ws send error", "session_id", sessionID, "error", err)
				s.close()
				return
			}
		}
	}
}

func (s *WSSession) close() {
	s.once.Do(func() {
		close(s.done)
		if s.conn != nil {
			_ = s.conn.Close()
		}
	})
}

// WSRegistry fans view updates out to every socket a form session has open.
type WSRegistry struct {
	mu       sync.RWMutex
	sessions map[string]map[*WSSession]struct{}
	logger   *slog.Logger
}

func NewWSRegistry(logger *slog.Logger) *WSRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSRegistry{sessions: make(map[string]map[*WSSession]struct{}), logger: logger}
}

// Add registers a socket and returns it so the caller can Remove it later.
func (r *WSRegistry) Add(sessionID string, conn *websocket.Conn) *WSSession {
	s := newWSSession(conn)
	r.mu.Lock()
	set, ok := r.sessions[sessionID]
	if !ok {
		set = make(map[*WSSession]struct{})
		r.sessions[sessionID] = set
	}
	set[s] = struct{}{}
	r.mu.Unlock()
	go s.writePump(sessionID, r.logger)
	return s
}

func (r *WSRegistry) Remove(sessionID string, s *WSSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if set, ok := r.sessions[sessionID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(r.sessions, sessionID)
		}
	}
	s.close()
}

// Broadcast queues v on every socket of the session without waiting for the writes.
// A socket whose write fails is closed; the reader loop owning it then removes it.
func (r *WSRegistry) Broadcast(sessionID string, v view.View) {
	r.mu.RLock()
	targets := make([]*WSSession, 0, len(r.sessions[sessionID]))
	for s := range r.sessions[sessionID] {
		targets = append(targets, s)
	}
	r.mu.RUnlock()
	for _, s := range targets {
		if err := s.Send(v); err != nil {
			r.logger.Debug("ws send skipped", "session_id", sessionID, "error", err)
		}
	}
}
