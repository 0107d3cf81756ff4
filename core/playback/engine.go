package playback

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"taptunes/logger"
	"taptunes/model"
)

// restartThreshold: previous() restarts the current track instead of moving
// back once this many seconds have elapsed, matching conventional
// media-player back-button behavior.
const restartThreshold = 3.0

// Library is the track-lookup collaborator the engine consumes.
type Library interface {
	TrackByID(ctx context.Context, id int64) (*model.Track, error)
}

// ChangeFunc observes every state mutation with a fresh snapshot. Used for
// websocket pushes and Redis persistence; invoked on its own goroutine.
type ChangeFunc func(Status)

// Engine is the single process-wide playback state store. Every operation
// runs under one mutex, so overlapping requests serialize instead of
// interleaving mid-operation.
type Engine struct {
	mu  sync.Mutex
	st  state
	now func() time.Time

	library    Library
	supervisor *Supervisor
	volume     *VolumeController

	onChange ChangeFunc
}

// NewEngine wires an Engine to its collaborators and registers itself for
// the supervisor's exit and duration events.
func NewEngine(library Library, sup *Supervisor, vol *VolumeController) *Engine {
	e := &Engine{
		st: state{
			mode:   ModeBrowser,
			volume: 70,
		},
		now:        time.Now,
		library:    library,
		supervisor: sup,
		volume:     vol,
	}
	if sup != nil {
		sup.SetHandlers(e.handlePlayerExit, e.handleDurationHint)
	}
	return e
}

// OnChange installs the mutation observer.
func (e *Engine) OnChange(fn ChangeFunc) {
	e.mu.Lock()
	e.onChange = fn
	e.mu.Unlock()
}

// Restore seeds volume and mode from persisted settings at startup.
func (e *Engine) Restore(volume int, mode Mode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if volume >= 0 && volume <= 100 {
		e.st.volume = volume
	}
	if ValidMode(mode) {
		e.st.mode = mode
	}
}

// PlayTrack starts playback of a single track. If the track is already in
// the current playlist it jumps there instead of replacing the playlist, so
// a still-relevant queue survives.
func (e *Engine) PlayTrack(ctx context.Context, trackID int64) (*model.Track, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.notifyLocked()

	if e.st.playlist != nil {
		for i, t := range e.st.playlist.Tracks {
			if t.ID == trackID {
				e.st.index = i
				e.startTrackLocked(t)
				return &t, nil
			}
		}
	}

	track, err := e.library.TrackByID(ctx, trackID)
	if err != nil {
		return nil, fmt.Errorf("library lookup for track %d: %w", trackID, err)
	}
	if track == nil {
		return nil, fmt.Errorf("track %d: %w", trackID, ErrTrackNotFound)
	}

	e.st.playlist = &model.Playlist{
		ID:     uuid.NewString(),
		Name:   track.Title,
		Tracks: []model.Track{*track},
	}
	e.st.index = 0
	e.startTrackLocked(*track)
	return track, nil
}

// PlayPlaylist replaces the playlist wholesale and starts at startIndex,
// clamped into bounds.
func (e *Engine) PlayPlaylist(tracks []model.Track, name string, startIndex int) error {
	if len(tracks) == 0 {
		return fmt.Errorf("empty track list: %w", ErrInvalidRequest)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.notifyLocked()

	if startIndex < 0 {
		startIndex = 0
	}
	if startIndex >= len(tracks) {
		startIndex = len(tracks) - 1
	}

	e.st.playlist = &model.Playlist{
		ID:     uuid.NewString(),
		Name:   name,
		Tracks: tracks,
	}
	e.st.index = startIndex
	e.startTrackLocked(tracks[startIndex])
	return nil
}

// Play resumes (or confirms) playback. With a live control channel the
// paused process is resumed in place; otherwise a fresh subprocess starts
// from the stored elapsed offset.
func (e *Engine) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.notifyLocked()

	if e.st.playing {
		return nil
	}

	e.st.playing = true
	e.st.startedAt = e.now()

	if e.st.mode != ModeHardware {
		return nil
	}

	if e.supervisor.Alive() && e.supervisor.SupportsLiveControl() {
		if err := e.supervisor.TogglePause(); err == nil {
			return nil
		}
		// Control channel gone; fall through to a restart.
	}

	track, ok := e.currentTrackLocked()
	if !ok {
		return nil
	}
	if _, err := e.supervisor.Start(track.Location, e.st.elapsed); err != nil {
		e.st.playing = false
		e.st.startedAt = time.Time{}
		return err
	}
	return nil
}

// Pause suspends playback. Tools with live control are paused in place;
// others have their elapsed time computed from the wall clock and are
// terminated, to be restarted from that offset on the next Play.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.notifyLocked()

	if !e.st.playing {
		return nil
	}

	e.st.elapsed = e.elapsedLocked()
	e.st.playing = false
	e.st.startedAt = time.Time{}

	if e.st.mode != ModeHardware {
		return nil
	}

	if e.supervisor.Alive() && e.supervisor.SupportsLiveControl() {
		if err := e.supervisor.TogglePause(); err == nil {
			return nil
		}
	}
	e.supervisor.Stop()
	return nil
}

// Stop halts playback and rewinds to the start of the playlist. The
// playlist itself is retained.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.notifyLocked()

	e.st.index = 0
	e.st.elapsed = 0
	e.st.playing = false
	e.st.startedAt = time.Time{}
	if e.st.playlist != nil && len(e.st.playlist.Tracks) > 0 {
		e.st.duration = e.st.playlist.Tracks[0].Duration
	}

	if e.st.mode == ModeHardware {
		e.supervisor.Stop()
	}
	return nil
}

// Next advances one track, clamped at the end of the playlist, and returns
// the resulting index.
func (e *Engine) Next() (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.notifyLocked()

	if e.st.playlist == nil {
		return 0, fmt.Errorf("no playlist: %w", ErrInvalidRequest)
	}

	if e.st.index < len(e.st.playlist.Tracks)-1 {
		e.st.index++
	}
	e.restartCurrentLocked()
	return e.st.index, nil
}

// Previous moves back one track, clamped at the start. Once more than three
// seconds of the current track have elapsed it restarts the current track
// instead.
func (e *Engine) Previous() (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.notifyLocked()

	if e.st.playlist == nil {
		return 0, fmt.Errorf("no playlist: %w", ErrInvalidRequest)
	}

	if e.elapsedLocked() <= restartThreshold && e.st.index > 0 {
		e.st.index--
	}
	e.restartCurrentLocked()
	return e.st.index, nil
}

// Seek updates the elapsed-time bookkeeping. Hardware playback is not
// re-positioned here; real seeking only happens through the pause/resume
// restart-with-offset path.
func (e *Engine) Seek(seconds float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.notifyLocked()

	if seconds < 0 || (e.st.duration > 0 && seconds > e.st.duration) {
		return fmt.Errorf("seek to %.1fs with duration %.1fs: %w", seconds, e.st.duration, ErrInvalidSeek)
	}

	e.st.elapsed = seconds
	if e.st.playing {
		e.st.startedAt = e.now()
	}
	return nil
}

// SetVolume stores percent and, in hardware mode, applies it to the system
// mixer. Mixer failures are logged and swallowed so playback is never
// blocked by a volume-control quirk.
func (e *Engine) SetVolume(percent int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("volume %d out of range: %w", percent, ErrInvalidRequest)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.notifyLocked()

	e.st.volume = percent
	if e.st.mode == ModeHardware && e.volume != nil {
		if err := e.volume.Set(percent); err != nil {
			logger.Warn("system volume control failed", logger.ErrorField(err))
		}
	}
	return nil
}

// SetMode switches the output between browser and hardware. Leaving
// hardware mode terminates the subprocess but keeps the logical position;
// entering it while playing starts the player at that position.
func (e *Engine) SetMode(mode Mode) error {
	if !ValidMode(mode) {
		return fmt.Errorf("unknown playback mode %q: %w", mode, ErrInvalidRequest)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.notifyLocked()

	if mode == e.st.mode {
		return nil
	}

	if e.st.mode == ModeHardware {
		e.st.elapsed = e.elapsedLocked()
		if e.st.playing {
			e.st.startedAt = e.now()
		}
		e.supervisor.Stop()
	}

	e.st.mode = mode

	if mode == ModeHardware && e.st.playing {
		if track, ok := e.currentTrackLocked(); ok {
			if _, err := e.supervisor.Start(track.Location, e.st.elapsed); err != nil {
				return err
			}
		}
	}
	return nil
}

// Status returns a read-only snapshot with the elapsed time recomputed from
// the wall clock.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statusLocked()
}

// Mode returns the current output mode.
func (e *Engine) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.st.mode
}

// handlePlayerExit reacts to a natural subprocess exit: advance to the next
// track, or reset to the idle state at the end of the playlist.
func (e *Engine) handlePlayerExit(exitOK bool) {
	// A new subprocess may already have been attached by a later
	// operation; its exit is not ours to handle.
	if e.supervisor.Alive() {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.notifyLocked()

	if !exitOK {
		logger.Warn("player exited with error, pausing playback")
		e.st.elapsed = e.elapsedLocked()
		e.st.playing = false
		e.st.startedAt = time.Time{}
		return
	}

	if e.st.playlist == nil {
		return
	}

	if e.st.index < len(e.st.playlist.Tracks)-1 {
		e.st.index++
		e.restartCurrentLocked()
		return
	}

	// End of playlist: back to idle rather than a stale "playing the last
	// track" state.
	e.st.playlist = nil
	e.st.index = 0
	e.st.elapsed = 0
	e.st.duration = 0
	e.st.playing = false
	e.st.startedAt = time.Time{}
	logger.Info("end of playlist, playback idle")
}

// handleDurationHint overwrites the stored duration when player output
// reveals a materially different total.
func (e *Engine) handleDurationHint(seconds float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if seconds <= 0 || math.Abs(seconds-e.st.duration) < 0.5 {
		return
	}
	logger.Debug("duration corrected from player output",
		logger.Float64("was", e.st.duration),
		logger.Float64("now", seconds))
	e.st.duration = seconds
}

// startTrackLocked begins playback of track from position zero.
func (e *Engine) startTrackLocked(track model.Track) {
	e.st.elapsed = 0
	e.st.duration = track.Duration
	e.st.playing = true
	e.st.startedAt = e.now()

	if e.st.mode != ModeHardware {
		return
	}
	if _, err := e.supervisor.Start(track.Location, 0); err != nil {
		logger.Error("hardware playback start failed",
			logger.Int64("trackId", track.ID),
			logger.ErrorField(err))
		e.st.playing = false
		e.st.startedAt = time.Time{}
	}
}

// restartCurrentLocked restarts the track at the current index from zero,
// keeping the playing/paused state.
func (e *Engine) restartCurrentLocked() {
	track, ok := e.currentTrackLocked()
	if !ok {
		return
	}

	e.st.elapsed = 0
	e.st.duration = track.Duration
	if !e.st.playing {
		e.st.startedAt = time.Time{}
		return
	}
	e.st.startedAt = e.now()

	if e.st.mode != ModeHardware {
		return
	}
	if _, err := e.supervisor.Start(track.Location, 0); err != nil {
		logger.Error("hardware playback restart failed", logger.ErrorField(err))
		e.st.playing = false
		e.st.startedAt = time.Time{}
	}
}

func (e *Engine) currentTrackLocked() (model.Track, bool) {
	if e.st.playlist == nil || e.st.index < 0 || e.st.index >= len(e.st.playlist.Tracks) {
		return model.Track{}, false
	}
	return e.st.playlist.Tracks[e.st.index], true
}

// elapsedLocked returns the live elapsed time, clamped to the duration when
// one is known.
func (e *Engine) elapsedLocked() float64 {
	elapsed := e.st.elapsed
	if e.st.playing && !e.st.startedAt.IsZero() {
		elapsed += e.now().Sub(e.st.startedAt).Seconds()
	}
	if e.st.duration > 0 && elapsed > e.st.duration {
		elapsed = e.st.duration
	}
	if elapsed < 0 {
		elapsed = 0
	}
	return elapsed
}

func (e *Engine) statusLocked() Status {
	st := Status{
		Playlist:     e.st.playlist,
		TrackIndex:   e.st.index,
		IsPlaying:    e.st.playing,
		CurrentTime:  e.elapsedLocked(),
		Duration:     e.st.duration,
		PlaybackMode: e.st.mode,
		Volume:       e.st.volume,
	}
	if track, ok := e.currentTrackLocked(); ok {
		st.CurrentTrack = &track
	}
	if st.Duration > 0 {
		st.Progress = st.CurrentTime / st.Duration * 100
		if st.Progress > 100 {
			st.Progress = 100
		}
	}
	return st
}

// notifyLocked dispatches a snapshot to the change observer. Runs before the
// mutex is released (deferred LIFO), delivery happens on a fresh goroutine.
func (e *Engine) notifyLocked() {
	if e.onChange == nil {
		return
	}
	st := e.statusLocked()
	go e.onChange(st)
}
