package rfid

import (
	"context"
	"errors"
	"testing"

	"taptunes/core/playback"
	"taptunes/model"
)

type fakeCardStore struct {
	cards map[string]*model.Card
	usage []string
}

func (s *fakeCardStore) GetByID(ctx context.Context, cardID string) (*model.Card, error) {
	return s.cards[cardID], nil
}

func (s *fakeCardStore) RecordUsage(ctx context.Context, cardID string) error {
	s.usage = append(s.usage, cardID)
	return nil
}

type fakeLibrary struct {
	tracks    map[int64]model.Track
	albums    map[string][]model.Track
	playlists map[int64][]model.Track
}

func (l *fakeLibrary) TrackByID(ctx context.Context, id int64) (*model.Track, error) {
	t, ok := l.tracks[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (l *fakeLibrary) TracksByAlbum(ctx context.Context, album string) ([]model.Track, error) {
	return l.albums[album], nil
}

func (l *fakeLibrary) TracksByArtist(ctx context.Context, artist string) ([]model.Track, error) {
	return nil, nil
}

func (l *fakeLibrary) AudiobookTracks(ctx context.Context, album string) ([]model.Track, error) {
	return l.albums[album], nil
}

func (l *fakeLibrary) PlaylistTracks(ctx context.Context, playlistID int64) ([]model.Track, error) {
	return l.playlists[playlistID], nil
}

type fakeSettings struct {
	behavior string
	err      error
}

func (s *fakeSettings) SameCardBehavior(ctx context.Context) (string, error) {
	return s.behavior, s.err
}

// fakePlayback records which engine methods were called and serves a canned
// status snapshot.
type fakePlayback struct {
	status playback.Status
	calls  []string
}

func (p *fakePlayback) Status() playback.Status { return p.status }

func (p *fakePlayback) PlayTrack(ctx context.Context, trackID int64) (*model.Track, error) {
	p.calls = append(p.calls, "playTrack")
	return nil, nil
}

func (p *fakePlayback) PlayPlaylist(tracks []model.Track, name string, startIndex int) error {
	p.calls = append(p.calls, "playPlaylist")
	if len(tracks) == 0 {
		return playback.ErrInvalidRequest
	}
	return nil
}

func (p *fakePlayback) Play() error { p.calls = append(p.calls, "play"); return nil }

func (p *fakePlayback) Pause() error { p.calls = append(p.calls, "pause"); return nil }

func (p *fakePlayback) Stop() error { p.calls = append(p.calls, "stop"); return nil }

func (p *fakePlayback) Next() (int, error) {
	p.calls = append(p.calls, "next")
	return 0, nil
}

func (p *fakePlayback) Previous() (int, error) {
	p.calls = append(p.calls, "previous")
	return 0, nil
}

func newTestDispatcher(behavior string) (*Dispatcher, *fakeCardStore, *fakePlayback) {
	trackSeven := model.Track{ID: 7, Title: "Seven", Location: "/music/seven.mp3", Duration: 120}
	cards := &fakeCardStore{cards: map[string]*model.Card{
		"AB12": {CardID: "AB12", Type: model.CardTypeTrack, TargetID: "7"},
		"CD34": {CardID: "CD34", Type: model.CardTypePlaylist, TargetID: "5", Name: "Bedtime"},
		"EF56": {CardID: "EF56", Type: model.CardTypeAlbum, TargetID: "Blue"},
		"PP01": {CardID: "PP01", Type: model.CardTypeAction, Action: model.CardActionPlayPause},
		"NX01": {CardID: "NX01", Type: model.CardTypeAction, Action: model.CardActionNext},
	}}
	lib := &fakeLibrary{
		tracks:    map[int64]model.Track{7: trackSeven},
		albums:    map[string][]model.Track{"Blue": {trackSeven}},
		playlists: map[int64][]model.Track{5: {trackSeven}},
	}
	pb := &fakePlayback{}
	d := NewDispatcher(cards, lib, &fakeSettings{behavior: behavior}, pb)
	return d, cards, pb
}

func TestNormalizeCardID(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{" ab12 ", "AB12"},
		{"AB12", "AB12"},
		{"ab12\n", "AB12"},
		{"  ", ""},
	}
	for _, c := range cases {
		if got := NormalizeCardID(c.raw); got != c.want {
			t.Errorf("NormalizeCardID(%q) = %q, want %q", c.raw, got, c.want)
		}
	}
}

func TestScanNormalizesBeforeLookup(t *testing.T) {
	d, cards, pb := newTestDispatcher(model.SameCardNothing)

	res, err := d.HandleScan(context.Background(), " ab12 ")
	if err != nil {
		t.Fatalf("HandleScan: %v", err)
	}
	if res.CardID != "AB12" {
		t.Errorf("CardID = %q, want AB12", res.CardID)
	}
	if res.Action != "started" {
		t.Errorf("Action = %q, want started", res.Action)
	}
	if len(cards.usage) != 1 || cards.usage[0] != "AB12" {
		t.Errorf("usage recorded for %v, want [AB12]", cards.usage)
	}
	if len(pb.calls) != 1 || pb.calls[0] != "playTrack" {
		t.Errorf("playback calls = %v, want [playTrack]", pb.calls)
	}
}

func TestScanUnregisteredCard(t *testing.T) {
	d, _, pb := newTestDispatcher(model.SameCardNothing)

	_, err := d.HandleScan(context.Background(), "ZZZ999")
	if !errors.Is(err, ErrCardNotRegistered) {
		t.Fatalf("err = %v, want ErrCardNotRegistered", err)
	}
	if len(pb.calls) != 0 {
		t.Errorf("playback calls = %v, want none", pb.calls)
	}
}

func TestScanEmptyCardID(t *testing.T) {
	d, _, _ := newTestDispatcher(model.SameCardNothing)

	_, err := d.HandleScan(context.Background(), "   ")
	if !errors.Is(err, playback.ErrInvalidRequest) {
		t.Errorf("err = %v, want ErrInvalidRequest", err)
	}
}

func TestSameCardBehaviors(t *testing.T) {
	playing := playback.Status{
		CurrentTrack: &model.Track{ID: 7},
		IsPlaying:    true,
	}

	cases := []struct {
		behavior   string
		wantAction string
		wantCalls  []string
	}{
		{model.SameCardNothing, "unchanged", nil},
		{model.SameCardPause, "paused", []string{"pause"}},
		{model.SameCardStop, "stopped", []string{"stop"}},
		{model.SameCardRestart, "restarted", []string{"playTrack"}},
		{"bogus", "unchanged", nil},
	}

	for _, c := range cases {
		t.Run(c.behavior, func(t *testing.T) {
			d, _, pb := newTestDispatcher(c.behavior)
			pb.status = playing

			res, err := d.HandleScan(context.Background(), "AB12")
			if err != nil {
				t.Fatalf("HandleScan: %v", err)
			}
			if res.Action != c.wantAction {
				t.Errorf("Action = %q, want %q", res.Action, c.wantAction)
			}
			if len(pb.calls) != len(c.wantCalls) {
				t.Fatalf("calls = %v, want %v", pb.calls, c.wantCalls)
			}
			for i := range c.wantCalls {
				if pb.calls[i] != c.wantCalls[i] {
					t.Errorf("calls = %v, want %v", pb.calls, c.wantCalls)
				}
			}
		})
	}
}

func TestSameCardWhilePausedResumes(t *testing.T) {
	d, _, pb := newTestDispatcher(model.SameCardStop)
	pb.status = playback.Status{
		CurrentTrack: &model.Track{ID: 7},
		IsPlaying:    false,
	}

	res, err := d.HandleScan(context.Background(), "AB12")
	if err != nil {
		t.Fatalf("HandleScan: %v", err)
	}
	if res.Action != "resumed" {
		t.Errorf("Action = %q, want resumed", res.Action)
	}
	if len(pb.calls) != 1 || pb.calls[0] != "play" {
		t.Errorf("calls = %v, want [play]", pb.calls)
	}
}

func TestDifferentTrackCardStartsIt(t *testing.T) {
	d, _, pb := newTestDispatcher(model.SameCardPause)
	pb.status = playback.Status{
		CurrentTrack: &model.Track{ID: 99},
		IsPlaying:    true,
	}

	res, err := d.HandleScan(context.Background(), "AB12")
	if err != nil {
		t.Fatalf("HandleScan: %v", err)
	}
	if res.Action != "started" {
		t.Errorf("Action = %q, want started", res.Action)
	}
	if len(pb.calls) != 1 || pb.calls[0] != "playTrack" {
		t.Errorf("calls = %v, want [playTrack]", pb.calls)
	}
}

func TestSettingsFailureDefaultsToNothing(t *testing.T) {
	trackSeven := model.Track{ID: 7}
	cards := &fakeCardStore{cards: map[string]*model.Card{
		"AB12": {CardID: "AB12", Type: model.CardTypeTrack, TargetID: "7"},
	}}
	lib := &fakeLibrary{tracks: map[int64]model.Track{7: trackSeven}}
	pb := &fakePlayback{status: playback.Status{CurrentTrack: &trackSeven, IsPlaying: true}}
	d := NewDispatcher(cards, lib, &fakeSettings{err: errors.New("db down")}, pb)

	res, err := d.HandleScan(context.Background(), "AB12")
	if err != nil {
		t.Fatalf("HandleScan: %v", err)
	}
	if res.Action != "unchanged" {
		t.Errorf("Action = %q, want unchanged", res.Action)
	}
	if len(pb.calls) != 0 {
		t.Errorf("calls = %v, want none", pb.calls)
	}
}

func TestPlaylistAndAlbumCards(t *testing.T) {
	for _, id := range []string{"CD34", "EF56"} {
		d, _, pb := newTestDispatcher(model.SameCardNothing)

		res, err := d.HandleScan(context.Background(), id)
		if err != nil {
			t.Fatalf("HandleScan(%s): %v", id, err)
		}
		if res.Action != "started" {
			t.Errorf("%s: Action = %q, want started", id, res.Action)
		}
		if len(pb.calls) != 1 || pb.calls[0] != "playPlaylist" {
			t.Errorf("%s: calls = %v, want [playPlaylist]", id, pb.calls)
		}
	}
}

func TestActionCards(t *testing.T) {
	t.Run("play_pause toggles", func(t *testing.T) {
		d, _, pb := newTestDispatcher(model.SameCardNothing)
		pb.status = playback.Status{IsPlaying: true}

		res, err := d.HandleScan(context.Background(), "PP01")
		if err != nil {
			t.Fatalf("HandleScan: %v", err)
		}
		if res.Action != "paused" || pb.calls[0] != "pause" {
			t.Errorf("Action = %q calls = %v, want pause", res.Action, pb.calls)
		}

		pb.status = playback.Status{IsPlaying: false}
		pb.calls = nil
		res, err = d.HandleScan(context.Background(), "PP01")
		if err != nil {
			t.Fatalf("HandleScan: %v", err)
		}
		if res.Action != "resumed" || pb.calls[0] != "play" {
			t.Errorf("Action = %q calls = %v, want play", res.Action, pb.calls)
		}
	})

	t.Run("next", func(t *testing.T) {
		d, _, pb := newTestDispatcher(model.SameCardNothing)

		res, err := d.HandleScan(context.Background(), "NX01")
		if err != nil {
			t.Fatalf("HandleScan: %v", err)
		}
		if res.Action != "next" || pb.calls[0] != "next" {
			t.Errorf("Action = %q calls = %v, want next", res.Action, pb.calls)
		}
	})
}

func TestCardWithMissingTrack(t *testing.T) {
	cards := &fakeCardStore{cards: map[string]*model.Card{
		"AB12": {CardID: "AB12", Type: model.CardTypeTrack, TargetID: "404"},
	}}
	d := NewDispatcher(cards, &fakeLibrary{}, &fakeSettings{behavior: model.SameCardNothing}, &fakePlayback{})

	_, err := d.HandleScan(context.Background(), "AB12")
	if !errors.Is(err, playback.ErrTrackNotFound) {
		t.Errorf("err = %v, want ErrTrackNotFound", err)
	}
}
