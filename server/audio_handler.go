package server

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"taptunes/logger"
	"taptunes/storage"
)

// AudioHandler serves audio files to browser-mode clients, from MinIO when
// object storage is enabled, from the local library directory otherwise.
type AudioHandler struct {
	audioDir string
}

// NewAudioHandler creates an AudioHandler rooted at audioDir.
func NewAudioHandler(audioDir string) *AudioHandler {
	return &AudioHandler{audioDir: audioDir}
}

// ServeHTTP handles GET /audio/{path}.
func (h *AudioHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	objectPath := strings.TrimPrefix(r.URL.Path, "/audio/")
	if objectPath == "" || strings.Contains(objectPath, "..") {
		http.Error(w, "invalid path", http.StatusBadRequest)
		return
	}

	if storage.Enabled() {
		object, err := storage.OpenObject(r.Context(), objectPath)
		if err != nil {
			http.Error(w, "file not found", http.StatusNotFound)
			return
		}
		defer object.Close()

		w.Header().Set("Content-Type", contentTypeFor(objectPath))
		w.Header().Set("Cache-Control", "public, max-age=86400")
		if _, err := io.Copy(w, object); err != nil {
			logger.Warn("error serving audio from object storage", logger.ErrorField(err))
		}
		return
	}

	// Local disk fallback; ServeFile handles range requests for the
	// browser's audio element.
	http.ServeFile(w, r, filepath.Join(h.audioDir, filepath.FromSlash(objectPath)))
}

func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return "audio/mpeg"
	case ".ogg":
		return "audio/ogg"
	case ".flac":
		return "audio/flac"
	case ".wav":
		return "audio/wav"
	case ".m4a", ".aac":
		return "audio/aac"
	default:
		return "application/octet-stream"
	}
}
