package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/tworooms/internal/auth"
	"github.com/freeeve/tworooms/internal/controller"
	"github.com/freeeve/tworooms/internal/event"
	"github.com/freeeve/tworooms/internal/model"
)

const (
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = 54 * time.Second // Must be less than pongWait
	maxMsgSize  = 8192
	sendBufSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS handled by middleware; tighten in production
	},
}

// WSHandler handles WebSocket connections.
type WSHandler struct {
	hub        *Hub
	controller *controller.Controller
	jwtMgr     *auth.JWTManager
}

// NewWSHandler creates a WSHandler.
func NewWSHandler(hub *Hub, ctrl *controller.Controller, jwtMgr *auth.JWTManager) *WSHandler {
	return &WSHandler{hub: hub, controller: ctrl, jwtMgr: jwtMgr}
}

// ServeWS handles GET /api/v1/ws — upgrades to WebSocket.
// Auth via ?token= query parameter (WebSocket can't send headers);
// ?ack= carries the last event sequence the client has seen, so the
// journal replays everything newer before live delivery starts.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, `{"error":"missing token parameter"}`, http.StatusUnauthorized)
		return
	}

	claims, err := h.jwtMgr.ValidateToken(tokenStr)
	if err != nil {
		http.Error(w, `{"error":"invalid or expired token"}`, http.StatusUnauthorized)
		return
	}

	acked, _ := strconv.ParseInt(r.URL.Query().Get("ack"), 10, 64)

	g, err := h.controller.Store().Get(claims.GameID)
	if err != nil {
		http.Error(w, `{"error":"game not found"}`, http.StatusNotFound)
		return
	}
	journal, ok := g.Journal.(*event.Journal)
	if !ok {
		http.Error(w, `{"error":"game has no event stream"}`, http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &WSConn{
		conn:     conn,
		gameID:   claims.GameID,
		playerID: claims.PlayerID,
		send:     make(chan []byte, sendBufSize),
		sub:      journal.Subscribe(claims.PlayerID, acked, sendBufSize),
	}
	if prev := h.hub.Register(client); prev != nil {
		prev.conn.Close()
	}

	if err := h.controller.HandleReconnect(claims.GameID, claims.PlayerID, tokenStr); err != nil {
		log.Warn().Err(err).Str("playerId", claims.PlayerID).Msg("Reconnect bookkeeping failed")
	}

	welcome, _ := json.Marshal(map[string]any{
		"type":      model.EventConnected,
		"game_id":   claims.GameID,
		"player_id": claims.PlayerID,
		"last_seq":  journal.LastSeq(),
	})
	client.send <- welcome

	go h.writePump(client)
	go h.readPump(client)

	log.Info().Str("gameId", claims.GameID).Str("playerId", claims.PlayerID).
		Int("total", h.hub.ConnectionCount()).Msg("WebSocket client connected")
}

// readPump reads commands and acks from the WebSocket connection.
func (h *WSHandler) readPump(c *WSConn) {
	defer func() {
		if h.hub.Unregister(c) {
			h.controller.HandleDisconnect(c.gameID, c.playerID)
		}
		c.sub.Close()
		c.conn.Close()
		log.Info().Str("gameId", c.gameID).Str("playerId", c.playerID).Msg("WebSocket client disconnected")
	}()

	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("playerId", c.playerID).Msg("WebSocket unexpected close")
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "ACK":
			h.recordAck(c, msg.AckSeq)
		case "SYNC":
			h.sendStateSync(c)
		case "COMMAND":
			h.dispatch(c, msg)
		}
	}
}

// dispatch routes one command through the controller, forcing the
// identity fields from the session so clients cannot impersonate.
func (h *WSHandler) dispatch(c *WSConn, msg ClientMessage) {
	cmd := msg.Command
	cmd.GameID = c.gameID
	cmd.PlayerID = c.playerID
	if cmd.Timestamp.IsZero() {
		cmd.Timestamp = time.Now()
	}

	res, err := h.controller.Dispatch(context.Background(), cmd)
	if err != nil {
		h.sendError(c, msg.RequestID, cmd.Type, err)
		return
	}

	reply, merr := json.Marshal(map[string]any{
		"type":       "RESULT",
		"request_id": msg.RequestID,
		"command":    cmd.Type,
		"warnings":   res.Warnings,
		"payload":    res.Payload,
	})
	if merr != nil {
		log.Error().Err(merr).Msg("Failed to marshal command result")
		return
	}
	c.enqueue(reply)
}

// sendError surfaces a command failure on the ERROR envelope, keeping
// validation structure (code, suggestion, context) intact.
func (h *WSHandler) sendError(c *WSConn, requestID string, cmdType model.CommandType, err error) {
	body := map[string]any{
		"type":       model.EventError,
		"request_id": requestID,
		"command":    cmdType,
	}
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		body["error"] = verr
	} else {
		body["error"] = map[string]any{"code": model.CodeInvalidState, "message": err.Error()}
	}
	data, merr := json.Marshal(body)
	if merr != nil {
		log.Error().Err(merr).Msg("Failed to marshal error envelope")
		return
	}
	c.enqueue(data)
}

// recordAck stores the client's last seen sequence for replay bounds. An
// ack ahead of the journal head means the client's picture of the game
// has diverged; it gets a DESYNC_DETECTED notice and a full state sync,
// and its cursor is left untouched.
func (h *WSHandler) recordAck(c *WSConn, seq int64) {
	g, err := h.controller.Store().Get(c.gameID)
	if err != nil {
		return
	}
	g.Lock()
	last := g.Journal.LastSeq()
	if p := g.Players[c.playerID]; p != nil && seq > p.AckedSeq && seq <= last {
		p.AckedSeq = seq
	}
	g.Unlock()

	if seq <= last {
		return
	}
	log.Warn().Str("gameId", c.gameID).Str("playerId", c.playerID).
		Int64("ackSeq", seq).Int64("lastSeq", last).Msg("Client acked past journal head")
	notice, err := json.Marshal(map[string]any{
		"type":        model.EventDesyncDetected,
		"claimed_seq": seq,
		"last_seq":    last,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal desync notice")
		return
	}
	c.enqueue(notice)
	h.sendStateSync(c)
}

// sendStateSync pushes the full STATE_SYNC envelope: the public snapshot,
// the player's private view, and the journal high-water mark. Clients
// request it with a SYNC message; the server volunteers it on desync.
func (h *WSHandler) sendStateSync(c *WSConn) {
	g, err := h.controller.Store().Get(c.gameID)
	if err != nil {
		return
	}
	snapshot := h.controller.PublicSnapshot(g)

	g.Lock()
	var private any
	if p := g.Players[c.playerID]; p != nil {
		private = p.Private()
	}
	last := g.Journal.LastSeq()
	g.Unlock()

	data, err := json.Marshal(map[string]any{
		"type":     model.EventStateSync,
		"state":    snapshot,
		"private":  private,
		"last_seq": last,
	})
	if err != nil {
		log.Error().Err(err).Str("gameId", c.gameID).Msg("Failed to marshal state sync")
		return
	}
	c.enqueue(data)
}

// enqueue drops the message when the client cannot keep up; the journal
// replay on reconnect recovers anything missed.
func (c *WSConn) enqueue(data []byte) {
	select {
	case c.send <- data:
	default:
		log.Warn().Str("playerId", c.playerID).Msg("Dropping WebSocket message, buffer full")
	}
}

// writePump writes journal events and direct responses to the connection.
func (h *WSHandler) writePump(c *WSConn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	writeRaw := func(data []byte) bool {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		w, err := c.conn.NextWriter(websocket.TextMessage)
		if err != nil {
			return false
		}
		w.Write(data)
		return w.Close() == nil
	}

	for {
		select {
		case ev, ok := <-c.sub.C:
			if !ok {
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				log.Error().Err(err).Str("gameId", c.gameID).Msg("Failed to marshal event")
				continue
			}
			if !writeRaw(data) {
				return
			}
		case message, ok := <-c.send:
			if !ok {
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if !writeRaw(message) {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
