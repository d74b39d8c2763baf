package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/tworooms/internal/model"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Error encoding response")
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeCommandError maps a dispatch failure to an HTTP status, keeping
// the structured validation payload (code, suggestion, context) intact.
func writeCommandError(w http.ResponseWriter, err error) {
	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	status := http.StatusUnprocessableEntity
	switch verr.Code {
	case model.CodeGameNotFound:
		status = http.StatusNotFound
	case model.CodeUnauthorized, model.CodeNotLeader:
		status = http.StatusForbidden
	case model.CodeNameTaken, model.CodeAlreadyJoined:
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]any{"error": verr})
}

// decodeJSON reads and decodes JSON from a request body.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
