package handler

import (
	"net/http"
	"strconv"

	"github.com/freeeve/tworooms/internal/auth"
	"github.com/freeeve/tworooms/internal/catalog"
	"github.com/freeeve/tworooms/internal/controller"
	"github.com/freeeve/tworooms/internal/model"
	"github.com/freeeve/tworooms/internal/repository/postgres"
)

// GameHandler handles the HTTP surface: game creation and joining (which
// hand out session tokens), public snapshots, and the character catalogue.
// All gameplay flows over the WebSocket.
type GameHandler struct {
	controller *controller.Controller
	catalog    *catalog.Catalog
	jwtMgr     *auth.JWTManager
	archive    *postgres.ArchiveRepo // nil when no database is configured
}

// NewGameHandler creates a GameHandler. archive may be nil.
func NewGameHandler(ctrl *controller.Controller, cat *catalog.Catalog,
	jwtMgr *auth.JWTManager, archive *postgres.ArchiveRepo) *GameHandler {
	return &GameHandler{controller: ctrl, catalog: cat, jwtMgr: jwtMgr, archive: archive}
}

// sessionResponse is returned by create and join: everything a client
// needs to open the WebSocket.
type sessionResponse struct {
	GameID   string `json:"game_id"`
	Code     string `json:"code"`
	PlayerID string `json:"player_id"`
	Token    string `json:"token"`
}

// CreateGame handles POST /api/v1/games
func (h *GameHandler) CreateGame(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HostName string `json:"host_name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.HostName == "" {
		writeError(w, http.StatusBadRequest, "host_name is required")
		return
	}

	res, err := h.controller.Dispatch(r.Context(), model.Command{
		Type:     model.CmdCreateGame,
		HostName: req.HostName,
	})
	if err != nil {
		writeCommandError(w, err)
		return
	}
	h.writeSession(w, http.StatusCreated, res)
}

// JoinGame handles POST /api/v1/games/join
func (h *GameHandler) JoinGame(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code       string `json:"code"`
		PlayerName string `json:"player_name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Code == "" || req.PlayerName == "" {
		writeError(w, http.StatusBadRequest, "code and player_name are required")
		return
	}

	res, err := h.controller.Dispatch(r.Context(), model.Command{
		Type:       model.CmdJoinGame,
		Code:       req.Code,
		PlayerName: req.PlayerName,
	})
	if err != nil {
		writeCommandError(w, err)
		return
	}
	h.writeSession(w, http.StatusOK, res)
}

// writeSession mints the session token for a create/join result.
func (h *GameHandler) writeSession(w http.ResponseWriter, status int, res *controller.Result) {
	payload, ok := res.Payload.(map[string]any)
	if !ok {
		writeError(w, http.StatusInternalServerError, "unexpected command payload")
		return
	}
	gameID, _ := payload["game_id"].(string)
	playerID, _ := payload["player_id"].(string)
	code, _ := payload["code"].(string)

	token, err := h.jwtMgr.GenerateSessionToken(gameID, playerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue session token")
		return
	}
	writeJSON(w, status, sessionResponse{
		GameID:   gameID,
		Code:     code,
		PlayerID: playerID,
		Token:    token,
	})
}

// GetGame handles GET /api/v1/games/{id} — the observer-safe snapshot.
func (h *GameHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	g, err := h.controller.Store().Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "game not found")
		return
	}
	writeJSON(w, http.StatusOK, h.controller.PublicSnapshot(g))
}

// GetGameByCode handles GET /api/v1/games/code/{code}
func (h *GameHandler) GetGameByCode(w http.ResponseWriter, r *http.Request) {
	g, err := h.controller.Store().GetByCode(r.PathValue("code"))
	if err != nil {
		writeError(w, http.StatusNotFound, "game not found")
		return
	}
	writeJSON(w, http.StatusOK, h.controller.PublicSnapshot(g))
}

// ListCharacters handles GET /api/v1/characters — the full catalogue,
// optionally filtered by ?team= and ?max_complexity=.
func (h *GameHandler) ListCharacters(w http.ResponseWriter, r *http.Request) {
	chars := h.catalog.All()
	if team := r.URL.Query().Get("team"); team != "" {
		chars = h.catalog.ByTeam(model.Team(team))
	} else if max := r.URL.Query().Get("max_complexity"); max != "" {
		if n, err := strconv.Atoi(max); err == nil {
			chars = h.catalog.MaxComplexity(n)
		}
	}
	writeJSON(w, http.StatusOK, chars)
}

// GetMe handles GET /api/v1/me — the authenticated player's private
// view: role, conditions, collected information. Serves as an
// out-of-band resync when the client suspects drift.
func (h *GameHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "no session")
		return
	}
	g, err := h.controller.Store().Get(claims.GameID)
	if err != nil {
		writeError(w, http.StatusNotFound, "game not found")
		return
	}
	g.Lock()
	defer g.Unlock()
	p := g.Players[claims.PlayerID]
	if p == nil {
		writeError(w, http.StatusNotFound, "player not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"player":   p.Public(),
		"private":  p.Private(),
		"room":     p.CurrentRoom,
		"version":  g.Version,
		"last_seq": g.Journal.LastSeq(),
	})
}

// ListArchive handles GET /api/v1/archive — recently finished games.
func (h *GameHandler) ListArchive(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	games, err := h.archive.ListRecent(r.Context(), 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list archive")
		return
	}
	if games == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, games)
}
