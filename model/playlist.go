package model

// Playlist is the transient, in-memory play queue held by the playback
// engine. It is replaced wholesale on every new playback request and is not
// persisted; stored playlists live in the library tables and are expanded
// into one of these when played.
type Playlist struct {
	ID     string  `json:"id"` // uuid, regenerated per playback request
	Name   string  `json:"name"`
	Tracks []Track `json:"tracks"`
}
