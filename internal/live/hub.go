// Package live pushes dashboard views to browser subscribers over websockets.
package live

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// TypeView is the message type carrying a full dashboard view.
const TypeView = "view"

const writeWait = 5 * time.Second

// Message is the envelope sent to subscribers.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex // serializes writes
}

func (s *subscriber) write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub tracks subscribers and fans out views to all of them.
type Hub struct {
	upgrader websocket.Upgrader
	current  func() any
	logger   *slog.Logger

	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
}

// NewHub returns a hub. current supplies the view sent to each new
// subscriber right after it connects.
func NewHub(current func() any, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		current: current,
		logger:  logger,
		subs:    map[*subscriber]struct{}{},
	}
}

// Handle upgrades the request and registers the connection as a subscriber.
func (h *Hub) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	s := &subscriber{conn: conn}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.subs[s] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()
	h.logger.Info("live subscriber connected", slog.String("remote", r.RemoteAddr), slog.Int("subscribers", n))

	if h.current != nil {
		data, err := encode(h.current())
		if err == nil {
			err = s.write(data)
		}
		if err != nil {
			h.drop(s)
			return
		}
	}
	go h.readLoop(s)
}

// readLoop discards client frames and unregisters the subscriber once the
// connection ends.
func (h *Hub) readLoop(s *subscriber) {
	defer h.drop(s)
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Publish sends view to every subscriber. Subscribers whose write fails are
// dropped.
func (h *Hub) Publish(view any) {
	data, err := encode(view)
	if err != nil {
		h.logger.Error("encode live view", slog.String("error", err.Error()))
		return
	}

	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subs))
	for s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		if err := s.write(data); err != nil {
			h.logger.Debug("live write failed", slog.String("error", err.Error()))
			h.drop(s)
		}
	}
}

// Len reports the number of connected subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close disconnects every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	subs := h.subs
	h.subs = map[*subscriber]struct{}{}
	h.mu.Unlock()

	for s := range subs {
		_ = s.conn.Close()
	}
}

func (h *Hub) drop(s *subscriber) {
	h.mu.Lock()
	_, ok := h.subs[s]
	delete(h.subs, s)
	h.mu.Unlock()
	_ = s.conn.Close()
	if ok {
		h.logger.Info("live subscriber disconnected")
	}
}

func encode(view any) ([]byte, error) {
	return json.Marshal(Message{Type: TypeView, Payload: view})
}
