package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"taptunes/model"
)

type fakeHandle struct {
	mu      sync.Mutex
	once    sync.Once
	done    chan struct{}
	exitOK  bool
	control []string
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{done: make(chan struct{})}
}

func (h *fakeHandle) finish(exitOK bool) {
	h.once.Do(func() {
		h.mu.Lock()
		h.exitOK = exitOK
		h.mu.Unlock()
		close(h.done)
	})
}

func (h *fakeHandle) Terminate() error { h.finish(false); return nil }

func (h *fakeHandle) Kill() error { h.finish(false); return nil }

func (h *fakeHandle) Done() <-chan struct{} { return h.done }

func (h *fakeHandle) ExitOK() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitOK
}

func (h *fakeHandle) WriteControl(cmd string) error {
	h.mu.Lock()
	h.control = append(h.control, cmd)
	h.mu.Unlock()
	return nil
}

type spawn struct {
	player   string
	location string
	offset   float64
	handle   *fakeHandle
}

// spawner records every launched process and flags any moment where a new
// process was spawned while an old one was still live.
type spawner struct {
	mu      sync.Mutex
	spawns  []*spawn
	overlap bool
}

func (sp *spawner) launch(p Player, location string, offset float64, onLine func(string)) (Handle, error) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	for _, s := range sp.spawns {
		select {
		case <-s.handle.done:
		default:
			sp.overlap = true
		}
	}
	h := newFakeHandle()
	sp.spawns = append(sp.spawns, &spawn{player: p.Name, location: location, offset: offset, handle: h})
	return h, nil
}

func (sp *spawner) last() *spawn {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	if len(sp.spawns) == 0 {
		return nil
	}
	return sp.spawns[len(sp.spawns)-1]
}

func (sp *spawner) count() int {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return len(sp.spawns)
}

type fakeLibrary struct {
	tracks map[int64]model.Track
}

func (l *fakeLibrary) TrackByID(ctx context.Context, id int64) (*model.Track, error) {
	t, ok := l.tracks[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func testTracks() []model.Track {
	return []model.Track{
		{ID: 1, Title: "One", Location: "/music/one.mp3", Duration: 180},
		{ID: 2, Title: "Two", Location: "/music/two.mp3", Duration: 200},
		{ID: 3, Title: "Three", Location: "/music/three.mp3", Duration: 160},
	}
}

func newTestEngine(t *testing.T, available ...string) (*Engine, *spawner, *fakeClock) {
	t.Helper()
	if len(available) == 0 {
		available = []string{"mpg123"}
	}
	sel := &Selector{
		goos: "linux",
		lookPath: func(name string) (string, error) {
			for _, a := range available {
				if a == name {
					return "/usr/bin/" + name, nil
				}
			}
			return "", errors.New("not found")
		},
	}

	sup := NewSupervisor(sel)
	sup.grace = 100 * time.Millisecond

	sp := &spawner{}
	sup.launch = sp.launch

	lib := &fakeLibrary{tracks: map[int64]model.Track{}}
	for _, tr := range testTracks() {
		lib.tracks[tr.ID] = tr
	}

	e := NewEngine(lib, sup, nil)
	clock := newFakeClock()
	e.now = clock.now
	return e, sp, clock
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestPlayPlaylistStartIndex(t *testing.T) {
	e, _, _ := newTestEngine(t)

	if err := e.PlayPlaylist(testTracks(), "mix", 1); err != nil {
		t.Fatalf("PlayPlaylist: %v", err)
	}

	st := e.Status()
	if st.TrackIndex != 1 {
		t.Errorf("TrackIndex = %d, want 1", st.TrackIndex)
	}
	if !st.IsPlaying {
		t.Error("IsPlaying = false, want true")
	}
	if st.CurrentTrack == nil || st.CurrentTrack.ID != 2 {
		t.Errorf("CurrentTrack = %+v, want track 2", st.CurrentTrack)
	}
	if st.Duration != 200 {
		t.Errorf("Duration = %v, want 200", st.Duration)
	}
}

func TestPlayPlaylistClampsStartIndex(t *testing.T) {
	e, _, _ := newTestEngine(t)

	cases := []struct {
		start int
		want  int
	}{
		{-1, 0},
		{99, 2},
	}
	for _, c := range cases {
		if err := e.PlayPlaylist(testTracks(), "mix", c.start); err != nil {
			t.Fatalf("PlayPlaylist(%d): %v", c.start, err)
		}
		if got := e.Status().TrackIndex; got != c.want {
			t.Errorf("startIndex %d: TrackIndex = %d, want %d", c.start, got, c.want)
		}
	}
}

func TestPlayPlaylistEmpty(t *testing.T) {
	e, _, _ := newTestEngine(t)

	err := e.PlayPlaylist(nil, "empty", 0)
	if !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("err = %v, want ErrInvalidRequest", err)
	}
}

func TestPlayTrackJumpsWithinPlaylist(t *testing.T) {
	e, _, _ := newTestEngine(t)

	if err := e.PlayPlaylist(testTracks(), "mix", 0); err != nil {
		t.Fatalf("PlayPlaylist: %v", err)
	}
	playlistID := e.Status().Playlist.ID

	if _, err := e.PlayTrack(context.Background(), 3); err != nil {
		t.Fatalf("PlayTrack: %v", err)
	}

	st := e.Status()
	if st.TrackIndex != 2 {
		t.Errorf("TrackIndex = %d, want 2", st.TrackIndex)
	}
	if st.Playlist.ID != playlistID {
		t.Error("playlist was replaced, want jump within existing playlist")
	}
}

func TestPlayTrackUnknown(t *testing.T) {
	e, _, _ := newTestEngine(t)

	_, err := e.PlayTrack(context.Background(), 404)
	if !errors.Is(err, ErrTrackNotFound) {
		t.Errorf("err = %v, want ErrTrackNotFound", err)
	}
}

func TestPlayTrackBuildsSingletonPlaylist(t *testing.T) {
	e, _, _ := newTestEngine(t)

	track, err := e.PlayTrack(context.Background(), 2)
	if err != nil {
		t.Fatalf("PlayTrack: %v", err)
	}
	if track.ID != 2 {
		t.Errorf("track.ID = %d, want 2", track.ID)
	}

	st := e.Status()
	if st.Playlist == nil || len(st.Playlist.Tracks) != 1 {
		t.Fatalf("Playlist = %+v, want one-track playlist", st.Playlist)
	}
	if st.Playlist.Name != "Two" {
		t.Errorf("Playlist.Name = %q, want %q", st.Playlist.Name, "Two")
	}
}

func TestPauseIsIdempotent(t *testing.T) {
	e, _, clock := newTestEngine(t)

	if err := e.PlayPlaylist(testTracks(), "mix", 0); err != nil {
		t.Fatalf("PlayPlaylist: %v", err)
	}
	clock.advance(10 * time.Second)

	if err := e.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	first := e.Status().CurrentTime

	clock.advance(30 * time.Second)
	if err := e.Pause(); err != nil {
		t.Fatalf("second Pause: %v", err)
	}
	second := e.Status().CurrentTime

	if first != 10 {
		t.Errorf("CurrentTime after pause = %v, want 10", first)
	}
	if second != first {
		t.Errorf("second pause moved CurrentTime from %v to %v", first, second)
	}
}

func TestPlayResumesFromPausedOffset(t *testing.T) {
	e, sp, clock := newTestEngine(t)

	if err := e.SetMode(ModeHardware); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if err := e.PlayPlaylist(testTracks(), "mix", 0); err != nil {
		t.Fatalf("PlayPlaylist: %v", err)
	}
	clock.advance(42 * time.Second)

	if err := e.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if err := e.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}

	last := sp.last()
	if last == nil {
		t.Fatal("no process spawned")
	}
	if last.offset != 42 {
		t.Errorf("resume offset = %v, want 42", last.offset)
	}
}

func TestSeekBounds(t *testing.T) {
	e, _, _ := newTestEngine(t)

	if err := e.PlayPlaylist(testTracks(), "mix", 0); err != nil {
		t.Fatalf("PlayPlaylist: %v", err)
	}

	cases := []struct {
		seconds float64
		wantErr bool
	}{
		{-5, true},
		{200, true},
		{90, false},
		{0, false},
		{180, false},
	}
	for _, c := range cases {
		err := e.Seek(c.seconds)
		if c.wantErr && !errors.Is(err, ErrInvalidSeek) {
			t.Errorf("Seek(%v) = %v, want ErrInvalidSeek", c.seconds, err)
		}
		if !c.wantErr && err != nil {
			t.Errorf("Seek(%v) = %v, want nil", c.seconds, err)
		}
	}

	if got := e.Status().CurrentTime; got != 180 {
		t.Errorf("CurrentTime = %v, want 180", got)
	}
}

func TestPreviousRestartRule(t *testing.T) {
	e, _, clock := newTestEngine(t)

	if err := e.PlayPlaylist(testTracks(), "mix", 1); err != nil {
		t.Fatalf("PlayPlaylist: %v", err)
	}

	// Deep into the track: restart it.
	clock.advance(10 * time.Second)
	idx, err := e.Previous()
	if err != nil {
		t.Fatalf("Previous: %v", err)
	}
	if idx != 1 {
		t.Errorf("index after late Previous = %d, want 1 (restart)", idx)
	}
	if got := e.Status().CurrentTime; got != 0 {
		t.Errorf("CurrentTime after restart = %v, want 0", got)
	}

	// Within the first seconds: move back.
	clock.advance(2 * time.Second)
	idx, err = e.Previous()
	if err != nil {
		t.Fatalf("Previous: %v", err)
	}
	if idx != 0 {
		t.Errorf("index after early Previous = %d, want 0", idx)
	}

	// Already at the start: stay there.
	idx, err = e.Previous()
	if err != nil {
		t.Fatalf("Previous: %v", err)
	}
	if idx != 0 {
		t.Errorf("index at playlist start = %d, want 0", idx)
	}
}

func TestNextClampsAtEnd(t *testing.T) {
	e, _, _ := newTestEngine(t)

	if err := e.PlayPlaylist(testTracks(), "mix", 2); err != nil {
		t.Fatalf("PlayPlaylist: %v", err)
	}
	idx, err := e.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if idx != 2 {
		t.Errorf("index = %d, want clamp at 2", idx)
	}
	if got := e.Status().CurrentTime; got != 0 {
		t.Errorf("CurrentTime = %v, want 0 (track restarted)", got)
	}
}

func TestNextWithoutPlaylist(t *testing.T) {
	e, _, _ := newTestEngine(t)

	if _, err := e.Next(); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("Next = %v, want ErrInvalidRequest", err)
	}
	if _, err := e.Previous(); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("Previous = %v, want ErrInvalidRequest", err)
	}
}

func TestStopRewindsKeepsPlaylist(t *testing.T) {
	e, _, clock := newTestEngine(t)

	if err := e.PlayPlaylist(testTracks(), "mix", 2); err != nil {
		t.Fatalf("PlayPlaylist: %v", err)
	}
	clock.advance(30 * time.Second)

	if err := e.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	st := e.Status()
	if st.IsPlaying {
		t.Error("IsPlaying = true after Stop")
	}
	if st.TrackIndex != 0 {
		t.Errorf("TrackIndex = %d, want 0", st.TrackIndex)
	}
	if st.CurrentTime != 0 {
		t.Errorf("CurrentTime = %v, want 0", st.CurrentTime)
	}
	if st.Playlist == nil {
		t.Error("Playlist = nil, want retained")
	}
}

func TestSetVolumeRange(t *testing.T) {
	e, _, _ := newTestEngine(t)

	for _, bad := range []int{-1, 101} {
		if err := e.SetVolume(bad); !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("SetVolume(%d) = %v, want ErrInvalidRequest", bad, err)
		}
	}
	if err := e.SetVolume(55); err != nil {
		t.Fatalf("SetVolume(55): %v", err)
	}
	if got := e.Status().Volume; got != 55 {
		t.Errorf("Volume = %d, want 55", got)
	}
}

func TestNaturalExitAdvances(t *testing.T) {
	e, sp, _ := newTestEngine(t)

	if err := e.SetMode(ModeHardware); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if err := e.PlayPlaylist(testTracks(), "mix", 0); err != nil {
		t.Fatalf("PlayPlaylist: %v", err)
	}

	sp.last().handle.finish(true)
	waitFor(t, func() bool { return e.Status().TrackIndex == 1 })

	last := sp.last()
	if last.location != "/music/two.mp3" {
		t.Errorf("spawned %q, want /music/two.mp3", last.location)
	}
	if !e.Status().IsPlaying {
		t.Error("IsPlaying = false after auto-advance")
	}
}

func TestNaturalExitAtEndResetsToIdle(t *testing.T) {
	e, sp, _ := newTestEngine(t)

	if err := e.SetMode(ModeHardware); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if err := e.PlayPlaylist(testTracks(), "mix", 2); err != nil {
		t.Fatalf("PlayPlaylist: %v", err)
	}

	sp.last().handle.finish(true)
	waitFor(t, func() bool { return e.Status().Playlist == nil })

	st := e.Status()
	if st.IsPlaying || st.TrackIndex != 0 || st.CurrentTime != 0 || st.Duration != 0 {
		t.Errorf("state after end of playlist = %+v, want idle", st)
	}
}

func TestErrorExitPauses(t *testing.T) {
	e, sp, _ := newTestEngine(t)

	if err := e.SetMode(ModeHardware); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if err := e.PlayPlaylist(testTracks(), "mix", 0); err != nil {
		t.Fatalf("PlayPlaylist: %v", err)
	}

	sp.last().handle.finish(false)
	waitFor(t, func() bool { return !e.Status().IsPlaying })

	st := e.Status()
	if st.Playlist == nil || st.TrackIndex != 0 {
		t.Errorf("state after error exit = %+v, want paused on same track", st)
	}
	if sp.count() != 1 {
		t.Errorf("spawn count = %d, want 1 (no auto-advance)", sp.count())
	}
}

func TestNoOverlappingSubprocesses(t *testing.T) {
	e, sp, _ := newTestEngine(t)

	if err := e.SetMode(ModeHardware); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if err := e.PlayPlaylist(testTracks(), "mix", 0); err != nil {
		t.Fatalf("PlayPlaylist: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := e.Next(); err != nil {
			t.Fatalf("Next: %v", err)
		}
		if _, err := e.Previous(); err != nil {
			t.Fatalf("Previous: %v", err)
		}
	}

	if sp.overlap {
		t.Error("two player subprocesses were live at once")
	}
}

func TestIntentionalStopDoesNotAdvance(t *testing.T) {
	e, sp, _ := newTestEngine(t)

	if err := e.SetMode(ModeHardware); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if err := e.PlayPlaylist(testTracks(), "mix", 0); err != nil {
		t.Fatalf("PlayPlaylist: %v", err)
	}
	if err := e.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}

	// Give a wrongly-dispatched exit event time to surface.
	time.Sleep(50 * time.Millisecond)

	st := e.Status()
	if st.TrackIndex != 0 {
		t.Errorf("TrackIndex = %d, want 0 (pause must not auto-advance)", st.TrackIndex)
	}
	if sp.count() != 1 {
		t.Errorf("spawn count = %d, want 1", sp.count())
	}
}

func TestLiveControlPause(t *testing.T) {
	e, sp, _ := newTestEngine(t, "mplayer")

	if err := e.SetMode(ModeHardware); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if err := e.PlayPlaylist(testTracks(), "mix", 0); err != nil {
		t.Fatalf("PlayPlaylist: %v", err)
	}

	if err := e.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if err := e.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}

	if sp.count() != 1 {
		t.Fatalf("spawn count = %d, want 1 (pause/resume in place)", sp.count())
	}
	h := sp.last().handle
	h.mu.Lock()
	got := len(h.control)
	h.mu.Unlock()
	if got != 2 {
		t.Errorf("control writes = %d, want 2 (pause, resume)", got)
	}
}

func TestSetModeStopsHardwarePlayback(t *testing.T) {
	e, sp, clock := newTestEngine(t)

	if err := e.SetMode(ModeHardware); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if err := e.PlayPlaylist(testTracks(), "mix", 0); err != nil {
		t.Fatalf("PlayPlaylist: %v", err)
	}
	clock.advance(25 * time.Second)

	if err := e.SetMode(ModeBrowser); err != nil {
		t.Fatalf("SetMode(browser): %v", err)
	}

	select {
	case <-sp.last().handle.done:
	default:
		t.Error("subprocess still live after leaving hardware mode")
	}
	st := e.Status()
	if !st.IsPlaying {
		t.Error("IsPlaying = false, logical playback should continue")
	}

	// Back to hardware: resume where we left off.
	if err := e.SetMode(ModeHardware); err != nil {
		t.Fatalf("SetMode(hardware): %v", err)
	}
	if got := sp.last().offset; got != 25 {
		t.Errorf("restart offset = %v, want 25", got)
	}
}

func TestDurationHintCorrection(t *testing.T) {
	e, _, _ := newTestEngine(t)

	if err := e.PlayPlaylist(testTracks(), "mix", 0); err != nil {
		t.Fatalf("PlayPlaylist: %v", err)
	}

	e.handleDurationHint(180.2) // within tolerance, ignored
	if got := e.Status().Duration; got != 180 {
		t.Errorf("Duration = %v, want 180 after in-tolerance hint", got)
	}

	e.handleDurationHint(195.5)
	if got := e.Status().Duration; got != 195.5 {
		t.Errorf("Duration = %v, want 195.5", got)
	}
}

func TestRestoreSeedsVolumeAndMode(t *testing.T) {
	e, _, _ := newTestEngine(t)

	e.Restore(30, ModeHardware)
	st := e.Status()
	if st.Volume != 30 || st.PlaybackMode != ModeHardware {
		t.Errorf("restored state = volume %d mode %s, want 30/hardware", st.Volume, st.PlaybackMode)
	}

	e.Restore(999, Mode("tape"))
	st = e.Status()
	if st.Volume != 30 || st.PlaybackMode != ModeHardware {
		t.Errorf("invalid restore changed state to volume %d mode %s", st.Volume, st.PlaybackMode)
	}
}
