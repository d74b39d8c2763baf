package handler

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/freeeve/tworooms/internal/event"
	"github.com/freeeve/tworooms/internal/model"
)

// WSConn is one player's live connection to a game. Journal events flow
// through sub; direct responses (results, errors) through send.
type WSConn struct {
	conn     *websocket.Conn
	gameID   string
	playerID string
	send     chan []byte
	sub      *event.Subscription
}

// ClientMessage is the envelope for messages sent from the client: a
// command to dispatch, an acknowledgement of the last seen sequence, or
// a request for a full state sync.
type ClientMessage struct {
	Type      string        `json:"type"` // "COMMAND", "ACK", or "SYNC"
	RequestID string        `json:"request_id,omitempty"`
	AckSeq    int64         `json:"ack_seq,omitempty"`
	Command   model.Command `json:"command,omitempty"`
}

// Hub tracks one connection per player per game. A player reconnecting
// replaces their previous connection.
type Hub struct {
	mu    sync.RWMutex
	games map[string]map[string]*WSConn // gameID -> playerID -> conn
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{games: make(map[string]map[string]*WSConn)}
}

// Register adds a connection, returning the previous connection for the
// same player if one existed so the caller can close it.
func (h *Hub) Register(c *WSConn) *WSConn {
	h.mu.Lock()
	defer h.mu.Unlock()
	players := h.games[c.gameID]
	if players == nil {
		players = make(map[string]*WSConn)
		h.games[c.gameID] = players
	}
	prev := players[c.playerID]
	players[c.playerID] = c
	return prev
}

// Unregister removes the connection if it is still the player's current
// one. Returns true when the player now has no connection.
func (h *Hub) Unregister(c *WSConn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	players, ok := h.games[c.gameID]
	if !ok || players[c.playerID] != c {
		return false
	}
	delete(players, c.playerID)
	if len(players) == 0 {
		delete(h.games, c.gameID)
	}
	return true
}

// ConnectionCount returns the number of live connections across games.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, players := range h.games {
		n += len(players)
	}
	return n
}

// GameConnectionCount returns the number of connected players in a game.
func (h *Hub) GameConnectionCount(gameID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.games[gameID])
}
