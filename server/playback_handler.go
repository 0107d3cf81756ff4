package server

import (
	"net/http"

	"taptunes/core/playback"
	"taptunes/logger"
	"taptunes/model"
	"taptunes/repository"
)

// PlaybackHandler exposes the playback engine over HTTP.
type PlaybackHandler struct {
	engine       *playback.Engine
	trackRepo    repository.TrackRepository
	settingsRepo repository.SettingsRepository
}

// NewPlaybackHandler creates a PlaybackHandler.
func NewPlaybackHandler(engine *playback.Engine, trackRepo repository.TrackRepository, settingsRepo repository.SettingsRepository) *PlaybackHandler {
	return &PlaybackHandler{
		engine:       engine,
		trackRepo:    trackRepo,
		settingsRepo: settingsRepo,
	}
}

// StatusHandler returns the current playback snapshot. Polled frequently by
// the UI, so it must stay side-effect free.
func (h *PlaybackHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Status())
}

// PlayTrackHandler starts playback of a single track by id.
func (h *PlaybackHandler) PlayTrackHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TrackID int64 `json:"trackId"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	track, err := h.engine.PlayTrack(r.Context(), req.TrackID)
	if err != nil {
		writeOperationError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "playing",
		"track":        track,
		"playbackMode": h.engine.Mode(),
	})
}

// PlayPlaylistHandler replaces the play queue with the given track ids and
// starts at startIndex.
func (h *PlaybackHandler) PlayPlaylistHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tracks     []int64 `json:"tracks"`
		Name       string  `json:"name"`
		StartIndex int     `json:"startIndex"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	tracks := make([]model.Track, 0, len(req.Tracks))
	for _, id := range req.Tracks {
		track, err := h.trackRepo.TrackByID(r.Context(), id)
		if err != nil {
			writeOperationError(w, err)
			return
		}
		if track == nil {
			writeError(w, http.StatusNotFound, "track_not_found", "no such track in library")
			return
		}
		tracks = append(tracks, *track)
	}

	if err := h.engine.PlayPlaylist(tracks, req.Name, req.StartIndex); err != nil {
		writeOperationError(w, err)
		return
	}

	st := h.engine.Status()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "playing",
		"playlist":   st.Playlist,
		"trackIndex": st.TrackIndex,
	})
}

// PlayHandler resumes playback.
func (h *PlaybackHandler) PlayHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Play(); err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "playing"})
}

// PauseHandler suspends playback.
func (h *PlaybackHandler) PauseHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Pause(); err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "paused"})
}

// StopHandler stops playback and rewinds to the playlist start.
func (h *PlaybackHandler) StopHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Stop(); err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// NextHandler advances to the next track.
func (h *PlaybackHandler) NextHandler(w http.ResponseWriter, r *http.Request) {
	index, err := h.engine.Next()
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"trackIndex": index})
}

// PreviousHandler moves to the previous track, or restarts the current one
// past the three-second mark.
func (h *PlaybackHandler) PreviousHandler(w http.ResponseWriter, r *http.Request) {
	index, err := h.engine.Previous()
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"trackIndex": index})
}

// SeekHandler updates the playback position.
func (h *PlaybackHandler) SeekHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Time float64 `json:"time"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.engine.Seek(req.Time); err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"currentTime": h.engine.Status().CurrentTime,
	})
}

// VolumeHandler sets the volume and persists it for the next start.
func (h *PlaybackHandler) VolumeHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Volume int `json:"volume"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.engine.SetVolume(req.Volume); err != nil {
		writeOperationError(w, err)
		return
	}
	if err := h.settingsRepo.SetVolume(r.Context(), req.Volume); err != nil {
		logger.Warn("failed to persist volume", logger.ErrorField(err))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"volume":       req.Volume,
		"playbackMode": h.engine.Mode(),
	})
}

// ModeHandler switches between browser and hardware output.
func (h *PlaybackHandler) ModeHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.engine.SetMode(playback.Mode(req.Mode)); err != nil {
		writeOperationError(w, err)
		return
	}
	if err := h.settingsRepo.SetPlaybackMode(r.Context(), req.Mode); err != nil {
		logger.Warn("failed to persist playback mode", logger.ErrorField(err))
	}

	st := h.engine.Status()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"playbackMode": st.PlaybackMode,
		"volume":       st.Volume,
	})
}
