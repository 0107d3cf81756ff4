package server

import (
	"net/http"

	"taptunes/logger"
	"taptunes/model"
	"taptunes/repository"
)

// SettingsHandler exposes the runtime tunables, most importantly the
// same-card re-tap behavior.
type SettingsHandler struct {
	settingsRepo repository.SettingsRepository
}

// NewSettingsHandler creates a SettingsHandler.
func NewSettingsHandler(settingsRepo repository.SettingsRepository) *SettingsHandler {
	return &SettingsHandler{settingsRepo: settingsRepo}
}

// GetSettingsHandler returns the current settings.
func (h *SettingsHandler) GetSettingsHandler(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settingsRepo.Load(r.Context())
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// UpdateSettingsHandler updates the same-card behavior.
func (h *SettingsHandler) UpdateSettingsHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SameCardBehavior string `json:"sameCardBehavior"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if !model.ValidSameCardBehavior(req.SameCardBehavior) {
		writeError(w, http.StatusBadRequest, "invalid_request", "unknown same-card behavior")
		return
	}
	if err := h.settingsRepo.SetSameCardBehavior(r.Context(), req.SameCardBehavior); err != nil {
		writeOperationError(w, err)
		return
	}

	logger.Info("same-card behavior updated", logger.String("behavior", req.SameCardBehavior))
	settings, err := h.settingsRepo.Load(r.Context())
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}
