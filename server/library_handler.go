package server

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"taptunes/core/playback"
	"taptunes/logger"
	"taptunes/model"
	"taptunes/repository"
)

// LibraryHandler is a thin surface over the track library: enough to
// register tracks and feed the UI's pickers. Upload and metadata enrichment
// live outside this service.
type LibraryHandler struct {
	trackRepo repository.TrackRepository
}

// NewLibraryHandler creates a LibraryHandler.
func NewLibraryHandler(trackRepo repository.TrackRepository) *LibraryHandler {
	return &LibraryHandler{trackRepo: trackRepo}
}

// ListTracksHandler returns the whole library.
func (h *LibraryHandler) ListTracksHandler(w http.ResponseWriter, r *http.Request) {
	tracks, err := h.trackRepo.AllTracks(r.Context())
	if err != nil {
		writeOperationError(w, err)
		return
	}
	if tracks == nil {
		tracks = []model.Track{}
	}
	writeJSON(w, http.StatusOK, tracks)
}

// CreateTrackHandler registers a file already present in the library
// directory (or a stream URL) with its metadata.
func (h *LibraryHandler) CreateTrackHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title     string  `json:"title"`
		Artist    string  `json:"artist"`
		Album     string  `json:"album"`
		Kind      string  `json:"kind"`
		Type      string  `json:"type"`
		Location  string  `json:"location"`
		Duration  float64 `json:"duration"`
		SortOrder int     `json:"sortOrder"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if req.Title == "" || req.Location == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "title and location are required")
		return
	}
	trackType := model.TrackType(req.Type)
	if trackType == "" {
		trackType = model.TrackTypeFile
	}
	if trackType != model.TrackTypeFile && trackType != model.TrackTypeStream {
		writeError(w, http.StatusBadRequest, "invalid_request", "type must be file or stream")
		return
	}
	kind := req.Kind
	if kind == "" {
		kind = model.TrackKindMusic
	}

	track := &model.Track{
		Title:     req.Title,
		Artist:    req.Artist,
		Album:     req.Album,
		Kind:      kind,
		Type:      trackType,
		Location:  req.Location,
		Duration:  req.Duration,
		SortOrder: req.SortOrder,
	}
	if track.Duration == 0 && trackType == model.TrackTypeFile {
		if d, err := playback.ProbeDuration(track.Location); err == nil {
			track.Duration = d
		} else {
			logger.Debug("duration probe failed",
				logger.String("location", track.Location),
				logger.ErrorField(err))
		}
	}
	id, err := h.trackRepo.CreateTrack(r.Context(), track)
	if err != nil {
		writeOperationError(w, err)
		return
	}
	track.ID = id

	writeJSON(w, http.StatusCreated, track)
}

// DeleteTrackHandler removes a track from the library.
func (h *LibraryHandler) DeleteTrackHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "track id must be numeric")
		return
	}

	if err := h.trackRepo.DeleteTrack(r.Context(), id); err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// PlaylistTracksHandler returns a stored playlist's tracks in order.
func (h *LibraryHandler) PlaylistTracksHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "playlist id must be numeric")
		return
	}

	tracks, err := h.trackRepo.PlaylistTracks(r.Context(), id)
	if err != nil {
		writeOperationError(w, err)
		return
	}
	if tracks == nil {
		tracks = []model.Track{}
	}
	writeJSON(w, http.StatusOK, tracks)
}
