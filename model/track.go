package model

import "time"

// TrackType distinguishes local files from network streams.
type TrackType string

const (
	TrackTypeFile   TrackType = "file"
	TrackTypeStream TrackType = "stream"
)

// Track kinds. Audiobooks get ordered resume-style playback on the UI side;
// the playback engine treats both the same.
const (
	TrackKindMusic     = "music"
	TrackKindAudiobook = "audiobook"
)

// Track represents a playable entry in the library. Tracks are immutable once
// loaded; playback structures copy them by value.
type Track struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Artist    string    `json:"artist"`
	Album     string    `json:"album"`
	Kind      string    `json:"kind"`     // music or audiobook
	Type      TrackType `json:"type"`     // file or stream
	Location  string    `json:"location"` // local file path or stream URL
	Duration  float64   `json:"duration"` // seconds, 0 when unknown
	SortOrder int       `json:"sortOrder"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
