package rfid

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"taptunes/core/playback"
	"taptunes/logger"
	"taptunes/model"
)

// ErrCardNotRegistered means the scanned card id has no assignment. The
// handler returns the normalized id so the UI can offer registration.
var ErrCardNotRegistered = errors.New("card not registered")

// NormalizeCardID canonicalizes a raw scanned identifier. Lookup must be
// invariant to reader whitespace and letter-case quirks.
func NormalizeCardID(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// CardStore is the card-persistence collaborator.
type CardStore interface {
	GetByID(ctx context.Context, cardID string) (*model.Card, error)
	RecordUsage(ctx context.Context, cardID string) error
}

// Library resolves card targets to playable tracks.
type Library interface {
	TrackByID(ctx context.Context, id int64) (*model.Track, error)
	TracksByAlbum(ctx context.Context, album string) ([]model.Track, error)
	TracksByArtist(ctx context.Context, artist string) ([]model.Track, error)
	AudiobookTracks(ctx context.Context, album string) ([]model.Track, error)
	PlaylistTracks(ctx context.Context, playlistID int64) ([]model.Track, error)
}

// SettingsReader exposes the tunables the dispatch policy depends on.
type SettingsReader interface {
	SameCardBehavior(ctx context.Context) (string, error)
}

// Playback is the engine surface the dispatcher drives. Calls are direct and
// in-process.
type Playback interface {
	Status() playback.Status
	PlayTrack(ctx context.Context, trackID int64) (*model.Track, error)
	PlayPlaylist(tracks []model.Track, name string, startIndex int) error
	Play() error
	Pause() error
	Stop() error
	Next() (int, error)
	Previous() (int, error)
}

// ScanResult reports what a scan did.
type ScanResult struct {
	CardID string      `json:"cardId"`
	Card   *model.Card `json:"card,omitempty"`
	Action string      `json:"action"`
}

// Dispatcher turns scanned card ids into playback actions.
type Dispatcher struct {
	cards    CardStore
	library  Library
	settings SettingsReader
	playback Playback
}

// NewDispatcher wires a Dispatcher to its collaborators.
func NewDispatcher(cards CardStore, library Library, settings SettingsReader, pb Playback) *Dispatcher {
	return &Dispatcher{
		cards:    cards,
		library:  library,
		settings: settings,
		playback: pb,
	}
}

// HandleScan resolves the card and applies its assignment. Unregistered
// cards produce ErrCardNotRegistered and no playback action.
func (d *Dispatcher) HandleScan(ctx context.Context, rawID string) (*ScanResult, error) {
	cardID := NormalizeCardID(rawID)
	if cardID == "" {
		return nil, fmt.Errorf("empty card id: %w", playback.ErrInvalidRequest)
	}

	card, err := d.cards.GetByID(ctx, cardID)
	if err != nil {
		return nil, fmt.Errorf("card lookup %s: %w", cardID, err)
	}
	if card == nil {
		return nil, fmt.Errorf("card %s: %w", cardID, ErrCardNotRegistered)
	}

	if err := d.cards.RecordUsage(ctx, cardID); err != nil {
		// Usage accounting never blocks the scan itself.
		logger.Warn("card usage update failed",
			logger.String("cardId", cardID),
			logger.ErrorField(err))
	}

	result := &ScanResult{CardID: cardID, Card: card}

	switch card.Type {
	case model.CardTypeTrack, model.CardTypeStream:
		result.Action, err = d.dispatchTrack(ctx, card)
	case model.CardTypePlaylist:
		result.Action, err = d.dispatchTrackList(ctx, card, d.resolvePlaylist)
	case model.CardTypeAlbum:
		result.Action, err = d.dispatchTrackList(ctx, card, d.library.TracksByAlbum)
	case model.CardTypeArtist:
		result.Action, err = d.dispatchTrackList(ctx, card, d.library.TracksByArtist)
	case model.CardTypeAudiobook:
		result.Action, err = d.dispatchTrackList(ctx, card, d.library.AudiobookTracks)
	case model.CardTypeAction:
		result.Action, err = d.dispatchAction(card)
	default:
		logger.Warn("card has unrecognized assignment type, ignoring",
			logger.String("cardId", cardID),
			logger.String("type", card.Type))
		result.Action = "ignored"
	}
	if err != nil {
		return nil, err
	}

	logger.Info("card dispatched",
		logger.String("cardId", cardID),
		logger.String("type", card.Type),
		logger.String("action", result.Action))
	return result, nil
}

// dispatchTrack handles track and stream cards, including the same-card
// re-tap policy: re-scanning the card of the currently playing track applies
// the configured behavior instead of restarting playback.
func (d *Dispatcher) dispatchTrack(ctx context.Context, card *model.Card) (string, error) {
	trackID, err := strconv.ParseInt(card.TargetID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("card %s has non-numeric track target %q: %w",
			card.CardID, card.TargetID, playback.ErrInvalidRequest)
	}

	track, err := d.library.TrackByID(ctx, trackID)
	if err != nil {
		return "", err
	}
	if track == nil {
		return "", fmt.Errorf("track %d: %w", trackID, playback.ErrTrackNotFound)
	}

	st := d.playback.Status()
	current := st.CurrentTrack != nil && st.CurrentTrack.ID == track.ID

	if current && st.IsPlaying {
		behavior := d.sameCardBehavior(ctx)
		switch behavior {
		case model.SameCardPause:
			return "paused", d.playback.Pause()
		case model.SameCardStop:
			return "stopped", d.playback.Stop()
		case model.SameCardRestart:
			_, err := d.playback.PlayTrack(ctx, track.ID)
			return "restarted", err
		default: // nothing
			return "unchanged", nil
		}
	}

	if current && !st.IsPlaying {
		return "resumed", d.playback.Play()
	}

	_, err = d.playback.PlayTrack(ctx, track.ID)
	return "started", err
}

type trackListResolver func(ctx context.Context, target string) ([]model.Track, error)

func (d *Dispatcher) dispatchTrackList(ctx context.Context, card *model.Card, resolve trackListResolver) (string, error) {
	tracks, err := resolve(ctx, card.TargetID)
	if err != nil {
		return "", err
	}
	name := card.Name
	if name == "" {
		name = card.TargetID
	}
	return "started", d.playback.PlayPlaylist(tracks, name, 0)
}

// resolvePlaylist adapts the id-keyed playlist lookup to trackListResolver.
func (d *Dispatcher) resolvePlaylist(ctx context.Context, target string) ([]model.Track, error) {
	playlistID, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("non-numeric playlist target %q: %w", target, playback.ErrInvalidRequest)
	}
	return d.library.PlaylistTracks(ctx, playlistID)
}

func (d *Dispatcher) dispatchAction(card *model.Card) (string, error) {
	switch card.Action {
	case model.CardActionPlayPause:
		if d.playback.Status().IsPlaying {
			return "paused", d.playback.Pause()
		}
		return "resumed", d.playback.Play()
	case model.CardActionStop:
		return "stopped", d.playback.Stop()
	case model.CardActionNext:
		_, err := d.playback.Next()
		return "next", err
	case model.CardActionPrevious:
		_, err := d.playback.Previous()
		return "previous", err
	default:
		logger.Warn("card has unrecognized action, ignoring",
			logger.String("cardId", card.CardID),
			logger.String("action", card.Action))
		return "ignored", nil
	}
}

func (d *Dispatcher) sameCardBehavior(ctx context.Context) string {
	behavior, err := d.settings.SameCardBehavior(ctx)
	if err != nil || !model.ValidSameCardBehavior(behavior) {
		return model.SameCardNothing
	}
	return behavior
}
