// Package ws pushes progress snapshots to a user's connected clients.
package ws

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/masteryquest/backend/internal/models"
)

const (
	sendBuffer = 16
	writeWait  = 10 * time.Second
)

var ErrTooManyConnections = errors.New("ws: too many connections for user")

type client struct {
	conn   *websocket.Conn
	hub    *Hub
	userID int64
	send   chan []byte
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.hub.RemoveClient(c)
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// Hub tracks websocket clients per user.
type Hub struct {
	mu         sync.RWMutex
	clients    map[int64]map[*client]bool
	maxPerUser int
}

// NewHub returns a hub allowing maxPerUser connections per user; zero means
// unlimited.
func NewHub(maxPerUser int) *Hub {
	return &Hub{
		clients:    make(map[int64]map[*client]bool),
		maxPerUser: maxPerUser,
	}
}

func (h *Hub) AddClient(userID int64, conn *websocket.Conn) (*client, error) {
	c := &client{
		conn:   conn,
		hub:    h,
		userID: userID,
		send:   make(chan []byte, sendBuffer),
	}

	h.mu.Lock()
	set := h.clients[userID]
	if h.maxPerUser > 0 && len(set) >= h.maxPerUser {
		h.mu.Unlock()
		return nil, ErrTooManyConnections
	}
	if set == nil {
		set = make(map[*client]bool)
		h.clients[userID] = set
	}
	set[c] = true
	h.mu.Unlock()

	go c.writePump()
	return c, nil
}

func (h *Hub) RemoveClient(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.clients[c.userID]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
	close(c.send)
}

// Publish sends a snapshot to every client of userID. It never blocks;
// clients whose buffer is full are disconnected.
func (h *Hub) Publish(userID int64, state *models.ProgressState) {
	h.Send(userID, WSMessage{Type: MsgSnapshot, Payload: SnapshotPayload{Progress: state}})
}

func (h *Hub) Send(userID int64, msg WSMessage) {
	h.mu.RLock()
	set := h.clients[userID]
	clients := make([]*client, 0, len(set))
	for c := range set {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[ws] marshal error: %v", err)
		return
	}

	for _, c := range clients {
		h.enqueue(c, data)
	}
}

func (h *Hub) enqueue(c *client, data []byte) {
	// RemoveClient closes send under the write lock; holding the read lock
	// here keeps the channel open for the duration of the send.
	h.mu.RLock()
	if !h.clients[c.userID][c] {
		h.mu.RUnlock()
		return
	}
	select {
	case c.send <- data:
		h.mu.RUnlock()
	default:
		h.mu.RUnlock()
		log.Printf("[ws] client for user %d too slow, disconnecting", c.userID)
		h.RemoveClient(c)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, set := range h.clients {
		for c := range set {
			close(c.send)
		}
		delete(h.clients, userID)
	}
}
