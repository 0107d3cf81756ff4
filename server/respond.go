package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"taptunes/core/playback"
	"taptunes/core/rfid"
	"taptunes/logger"
)

// errorResponse is the machine-readable error body: a short code plus a
// human-readable message.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	CardID  string `json:"cardId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to encode response", logger.ErrorField(err))
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// writeOperationError maps the playback/rfid error taxonomy onto HTTP
// statuses.
func writeOperationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, playback.ErrTrackNotFound):
		writeError(w, http.StatusNotFound, "track_not_found", err.Error())
	case errors.Is(err, rfid.ErrCardNotRegistered):
		writeError(w, http.StatusNotFound, "card_not_registered", err.Error())
	case errors.Is(err, playback.ErrInvalidSeek):
		writeError(w, http.StatusBadRequest, "invalid_seek", err.Error())
	case errors.Is(err, playback.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, playback.ErrNoPlayerAvailable):
		writeError(w, http.StatusInternalServerError, "no_player_available", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body: "+err.Error())
		return false
	}
	return true
}
