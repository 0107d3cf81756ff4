package model

import "time"

// Card assignment types.
const (
	CardTypeTrack     = "track"
	CardTypePlaylist  = "playlist"
	CardTypeAlbum     = "album"
	CardTypeArtist    = "artist"
	CardTypeAudiobook = "audiobook"
	CardTypeStream    = "stream"
	CardTypeAction    = "action"
)

// Literal control actions for action-type cards.
const (
	CardActionPlayPause = "play_pause"
	CardActionStop      = "stop"
	CardActionNext      = "next"
	CardActionPrevious  = "previous"
)

// Card maps a physical RFID card to a playback assignment. CardID is stored
// normalized (trimmed, upper-cased) so scans are insensitive to reader case
// and whitespace quirks.
type Card struct {
	CardID     string     `json:"cardId" gorm:"primaryKey;column:card_id;size:64"`
	Name       string     `json:"name" gorm:"column:name;size:255"`
	Type       string     `json:"type" gorm:"column:type;size:32"`
	TargetID   string     `json:"targetId" gorm:"column:target_id;size:255"`
	Action     string     `json:"action,omitempty" gorm:"column:action;size:32"`
	UseCount   int64      `json:"useCount" gorm:"column:use_count"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty" gorm:"column:last_used_at"`
	CreatedAt  time.Time  `json:"createdAt" gorm:"column:created_at"`
	UpdatedAt  time.Time  `json:"updatedAt" gorm:"column:updated_at"`
}

// TableName sets the gorm table name.
func (Card) TableName() string {
	return "cards"
}
