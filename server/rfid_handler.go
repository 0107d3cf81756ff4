package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"taptunes/cache"
	"taptunes/core/rfid"
	"taptunes/logger"
	"taptunes/model"
	"taptunes/repository"
)

// RFIDHandler exposes card management and the scan dispatch endpoints.
type RFIDHandler struct {
	cardRepo   repository.CardRepository
	dispatcher *rfid.Dispatcher
	registrar  *rfid.Registrar
}

// NewRFIDHandler creates an RFIDHandler.
func NewRFIDHandler(cardRepo repository.CardRepository, dispatcher *rfid.Dispatcher, registrar *rfid.Registrar) *RFIDHandler {
	return &RFIDHandler{
		cardRepo:   cardRepo,
		dispatcher: dispatcher,
		registrar:  registrar,
	}
}

// UpsertCardHandler registers a card or replaces its assignment.
func (h *RFIDHandler) UpsertCardHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CardID   string `json:"cardId"`
		Name     string `json:"name"`
		Type     string `json:"type"`
		TargetID string `json:"targetId"`
		Action   string `json:"action"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	cardID := rfid.NormalizeCardID(req.CardID)
	if cardID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "cardId is required")
		return
	}

	switch req.Type {
	case model.CardTypeTrack, model.CardTypePlaylist, model.CardTypeAlbum,
		model.CardTypeArtist, model.CardTypeAudiobook, model.CardTypeStream:
		if req.TargetID == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "targetId is required for this card type")
			return
		}
	case model.CardTypeAction:
		switch req.Action {
		case model.CardActionPlayPause, model.CardActionStop, model.CardActionNext, model.CardActionPrevious:
		default:
			writeError(w, http.StatusBadRequest, "invalid_request", "unknown card action")
			return
		}
	default:
		writeError(w, http.StatusBadRequest, "invalid_request", "unknown card type")
		return
	}

	card := &model.Card{
		CardID:   cardID,
		Name:     req.Name,
		Type:     req.Type,
		TargetID: req.TargetID,
		Action:   req.Action,
	}
	if err := h.cardRepo.Upsert(r.Context(), card); err != nil {
		writeOperationError(w, err)
		return
	}

	logger.Info("card registered",
		logger.String("cardId", cardID),
		logger.String("type", req.Type))
	writeJSON(w, http.StatusOK, card)
}

// ListCardsHandler returns all registered cards.
func (h *RFIDHandler) ListCardsHandler(w http.ResponseWriter, r *http.Request) {
	cards, err := h.cardRepo.List(r.Context())
	if err != nil {
		writeOperationError(w, err)
		return
	}
	if cards == nil {
		cards = []model.Card{}
	}
	writeJSON(w, http.StatusOK, cards)
}

// DeleteCardHandler removes a card registration.
func (h *RFIDHandler) DeleteCardHandler(w http.ResponseWriter, r *http.Request) {
	cardID := rfid.NormalizeCardID(mux.Vars(r)["id"])
	if err := h.cardRepo.Delete(r.Context(), cardID); err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "cardId": cardID})
}

// ScanHandler runs the dispatch policy for a scanned card.
func (h *RFIDHandler) ScanHandler(w http.ResponseWriter, r *http.Request) {
	h.handleScan(w, r, false)
}

// CardDetectedHandler is the hardware reader's entry point. A pending
// registration read consumes the card instead of dispatching it.
func (h *RFIDHandler) CardDetectedHandler(w http.ResponseWriter, r *http.Request) {
	h.handleScan(w, r, true)
}

func (h *RFIDHandler) handleScan(w http.ResponseWriter, r *http.Request, allowRegistration bool) {
	var req struct {
		CardID string `json:"cardId"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	cardID := rfid.NormalizeCardID(req.CardID)
	if cardID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "cardId is required")
		return
	}

	if !cache.AcquireScanLock(r.Context(), cardID) {
		// Reader repeat within the debounce window.
		writeJSON(w, http.StatusOK, map[string]string{"status": "debounced", "cardId": cardID})
		return
	}

	if allowRegistration && h.registrar.Resolve(cardID) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "registration_read", "cardId": cardID})
		return
	}

	result, err := h.dispatcher.HandleScan(r.Context(), req.CardID)
	if err != nil {
		if errors.Is(err, rfid.ErrCardNotRegistered) {
			// Return the normalized id so the caller can offer to
			// register this card.
			writeJSON(w, http.StatusNotFound, errorResponse{
				Error:   "card_not_registered",
				Message: "card is not registered",
				CardID:  cardID,
			})
			return
		}
		writeOperationError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ReadCardHandler opens a registration read and waits up to 30 seconds for
// the next scanned card.
func (h *RFIDHandler) ReadCardHandler(w http.ResponseWriter, r *http.Request) {
	sessionID, pending, err := h.registrar.Begin()
	if err != nil {
		writeError(w, http.StatusConflict, "read_in_progress", err.Error())
		return
	}

	select {
	case cardID := <-pending:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "cardId": cardID})
	case <-time.After(rfid.DefaultReadTimeout):
		h.registrar.Cancel(sessionID)
		writeError(w, http.StatusRequestTimeout, "read_timeout", "no card presented within 30 seconds")
	case <-r.Context().Done():
		h.registrar.Cancel(sessionID)
	}
}
