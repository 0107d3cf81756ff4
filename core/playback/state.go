package playback

import (
	"time"

	"taptunes/model"
)

// Mode selects where audio comes out.
type Mode string

const (
	// ModeBrowser leaves playback to the web client; the engine only tracks
	// logical state.
	ModeBrowser Mode = "browser"

	// ModeHardware drives physical speakers through an external player
	// subprocess.
	ModeHardware Mode = "hardware"
)

// ValidMode reports whether m is a recognized playback mode.
func ValidMode(m Mode) bool {
	return m == ModeBrowser || m == ModeHardware
}

// state is the engine's single mutable record of what is playing. All access
// goes through Engine methods under its mutex.
type state struct {
	playlist *model.Playlist
	index    int
	playing  bool

	// elapsed accumulates played seconds up to the last pause/seek/start.
	// While playing, the live position is elapsed + wall clock since startedAt.
	elapsed   float64
	duration  float64
	startedAt time.Time // zero while paused or stopped

	mode   Mode
	volume int
}

// Status is the read-only snapshot returned to polling clients. Safe to call
// at high frequency; building it has no side effects.
type Status struct {
	Playlist     *model.Playlist `json:"playlist"`
	TrackIndex   int             `json:"trackIndex"`
	IsPlaying    bool            `json:"isPlaying"`
	CurrentTrack *model.Track    `json:"currentTrack"`
	Progress     float64         `json:"progress"` // percent [0,100]
	CurrentTime  float64         `json:"currentTime"`
	Duration     float64         `json:"duration"`
	PlaybackMode Mode            `json:"playbackMode"`
	Volume       int             `json:"volume"`
}
