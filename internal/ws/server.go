package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/masteryquest/backend/internal/models"
)

// SnapshotSource supplies the snapshot sent when a client connects.
type SnapshotSource interface {
	Snapshot(ctx context.Context, userID int64) *models.ProgressState
}

type TokenParser interface {
	ParseToken(token string) (int64, error)
}

// Handler upgrades authenticated requests and registers them with the hub.
// Browsers cannot set headers on websocket requests, so the token may also
// come from the "token" query parameter.
type Handler struct {
	hub       *Hub
	source    SnapshotSource
	tokens    TokenParser
	origins   map[string]bool
	anyOrigin bool
}

func NewHandler(hub *Hub, source SnapshotSource, tokens TokenParser, allowedOrigins []string) *Handler {
	h := &Handler{
		hub:     hub,
		source:  source,
		tokens:  tokens,
		origins: make(map[string]bool),
	}
	for _, o := range allowedOrigins {
		o = strings.TrimSpace(o)
		switch o {
		case "":
		case "*":
			h.anyOrigin = true
		default:
			h.origins[o] = true
		}
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := h.tokens.ParseToken(bearerToken(r))
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	upgrader := websocket.Upgrader{CheckOrigin: h.checkOrigin}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade error: %v", err)
		return
	}

	c, err := h.hub.AddClient(userID, conn)
	if err != nil {
		if errors.Is(err, ErrTooManyConnections) {
			data, _ := json.Marshal(WSMessage{Type: MsgError, Payload: ErrorPayload{Message: err.Error()}})
			conn.WriteMessage(websocket.TextMessage, data)
		}
		conn.Close()
		return
	}
	log.Printf("[ws] user %d connected from %s", userID, r.RemoteAddr)

	h.hub.Publish(userID, h.source.Snapshot(r.Context(), userID))

	// Drain reads so close frames are processed.
	go func() {
		defer func() {
			h.hub.RemoveClient(c)
			log.Printf("[ws] user %d disconnected", userID)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || h.anyOrigin {
		return true
	}
	return h.origins[origin]
}

func bearerToken(r *http.Request) string {
	if t, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return t
	}
	return r.URL.Query().Get("token")
}
