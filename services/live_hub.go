package services

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"tradeQuestAPI/internal/notification"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 32
)

// LiveHub fans notifications out to every open websocket of a user.
type LiveHub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]map[*LiveClient]struct{}
}

func NewLiveHub() *LiveHub {
	return &LiveHub{clients: make(map[uuid.UUID]map[*LiveClient]struct{})}
}

// LiveClient sits between one websocket connection and the hub.
type LiveClient struct {
	hub    *LiveHub
	conn   *websocket.Conn
	userID uuid.UUID
	send   chan []byte
}

// Attach registers conn for userID and starts its pumps.
func (h *LiveHub) Attach(userID uuid.UUID, conn *websocket.Conn) *LiveClient {
	c := &LiveClient{hub: h, conn: conn, userID: userID, send: make(chan []byte, sendBuffer)}
	h.register(c)
	go c.writePump()
	go c.readPump()
	return c
}

func (h *LiveHub) register(c *LiveClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[c.userID]
	if !ok {
		set = make(map[*LiveClient]struct{})
		h.clients[c.userID] = set
	}
	set[c] = struct{}{}
	log.Debug().Str("user_id", c.userID.String()).Int("connections", len(set)).Msg("live client connected")
}

func (h *LiveHub) unregister(c *LiveClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
}

// Connections returns the number of open sockets for userID.
func (h *LiveHub) Connections(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Publish pushes n to the user's sockets. Slow clients are dropped.
func (h *LiveHub) Publish(n *notification.Notification) {
	data, err := json.Marshal(map[string]any{"action": "notification", "notification": n})
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal live notification")
		return
	}

	h.mu.RLock()
	var slow []*LiveClient
	for c := range h.clients[n.UserID] {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.unregister(c)
	}
}

// readPump only services control frames; clients never send payloads.
func (c *LiveClient) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("user_id", c.userID.String()).Msg("live client read error")
			}
			return
		}
	}
}

func (c *LiveClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
