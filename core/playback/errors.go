package playback

import "errors"

// Sentinel errors for playback operations. Handlers map these onto HTTP
// status codes; callers test with errors.Is.
var (
	// ErrTrackNotFound means the library has no track with the requested id.
	ErrTrackNotFound = errors.New("track not found")

	// ErrInvalidRequest covers malformed input: empty track lists,
	// out-of-range volume, unknown playback mode.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrInvalidSeek means the seek target is outside [0, duration].
	ErrInvalidSeek = errors.New("invalid seek position")

	// ErrNoPlayerAvailable means no supported external player binary was
	// found on this host. Fatal to the playback attempt, not to the engine.
	ErrNoPlayerAvailable = errors.New("no audio player available")
)
