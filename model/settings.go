package model

// SameCardBehavior values: what happens when the currently-playing track's
// own card is re-scanned while it is playing.
const (
	SameCardNothing = "nothing"
	SameCardPause   = "pause"
	SameCardStop    = "stop"
	SameCardRestart = "restart"
)

// Settings holds the user-tunable runtime settings.
type Settings struct {
	SameCardBehavior string `json:"sameCardBehavior"`
	Volume           int    `json:"volume"`
	PlaybackMode     string `json:"playbackMode"`
}

// ValidSameCardBehavior reports whether v is a recognized behavior.
func ValidSameCardBehavior(v string) bool {
	switch v {
	case SameCardNothing, SameCardPause, SameCardStop, SameCardRestart:
		return true
	}
	return false
}
