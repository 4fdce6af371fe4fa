package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/filegate/filegate/pkg/logging"
)

// Event types broadcast on the change feed
const (
	EventAccountAdded      = "account_added"
	EventAccountUpdated    = "account_updated"
	EventAccountDeleted    = "account_deleted"
	EventCredentialChanged = "credential_changed"
)

// AccountEvent is one entry on the change feed. It names the account, never
// its credential material.
type AccountEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

// EventHub manages WebSocket connections for the admin GUI's live view of
// the registry.
type EventHub struct {
	upgrader websocket.Upgrader

	// mu guards the connection set and serializes writes; gorilla permits
	// only one concurrent writer per connection.
	mu    sync.Mutex
	conns map[*websocket.Conn]bool

	logger logging.Logger
}

// NewEventHub creates a new event hub.
func NewEventHub(logger logging.Logger) *EventHub {
	if logger == nil {
		logger = logging.Discard()
	}
	return &EventHub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// The admin routes already authenticated the caller.
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		conns:  make(map[*websocket.Conn]bool),
		logger: logger,
	}
}

// handleEvents upgrades the connection and keeps it registered until the
// client goes away.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	s.events.serve(w, r)
}

func (h *EventHub) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	h.mu.Lock()
	h.conns[conn] = true
	h.mu.Unlock()

	defer func() {
		h.drop(conn)
		_ = conn.Close()
	}()

	go h.pingLoop(conn)

	// The feed is one-way; reads only surface disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket closed", "error", err)
			}
			return
		}
	}
}

// Broadcast sends an event to every connected client. Connections that fail
// to accept the write are dropped.
func (h *EventHub) Broadcast(eventType, username string) {
	event := AccountEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Username:  username,
		Timestamp: time.Now(),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(event); err != nil {
			delete(h.conns, conn)
			_ = conn.Close()
		}
	}
}

func (h *EventHub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
}

func (h *EventHub) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		h.mu.Lock()
		alive := h.conns[conn]
		var err error
		if alive {
			err = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
		}
		h.mu.Unlock()
		if !alive || err != nil {
			return
		}
	}
}
