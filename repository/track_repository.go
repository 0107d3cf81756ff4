package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"taptunes/model"
)

// TrackRepository defines the interface for track library lookups.
type TrackRepository interface {
	CreateTrack(ctx context.Context, track *model.Track) (int64, error)
	TrackByID(ctx context.Context, id int64) (*model.Track, error)
	AllTracks(ctx context.Context) ([]model.Track, error)
	TracksByAlbum(ctx context.Context, album string) ([]model.Track, error)
	TracksByArtist(ctx context.Context, artist string) ([]model.Track, error)
	AudiobookTracks(ctx context.Context, album string) ([]model.Track, error)
	PlaylistTracks(ctx context.Context, playlistID int64) ([]model.Track, error)
	DeleteTrack(ctx context.Context, id int64) error
}

const trackColumns = `id, title, artist, album, kind, type, location, duration, sort_order, created_at, updated_at`

// mysqlTrackRepository implements TrackRepository for MySQL.
type mysqlTrackRepository struct {
	db *sql.DB
}

// NewMySQLTrackRepository creates a new instance of mysqlTrackRepository.
func NewMySQLTrackRepository(db *sql.DB) TrackRepository {
	return &mysqlTrackRepository{db: db}
}

// CreateTrack adds a new track to the library.
func (r *mysqlTrackRepository) CreateTrack(ctx context.Context, track *model.Track) (int64, error) {
	query := `INSERT INTO tracks (title, artist, album, kind, type, location, duration, sort_order, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	now := time.Now()
	res, err := r.db.ExecContext(ctx, query,
		track.Title, track.Artist, track.Album, track.Kind, track.Type,
		track.Location, track.Duration, track.SortOrder, now, now)
	if err != nil {
		return 0, fmt.Errorf("failed to execute CreateTrack: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for CreateTrack: %w", err)
	}
	return id, nil
}

// TrackByID retrieves a track by its ID. Returns (nil, nil) when no such
// track exists.
func (r *mysqlTrackRepository) TrackByID(ctx context.Context, id int64) (*model.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)

	track, err := scanTrack(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan track by ID %d: %w", id, err)
	}
	return track, nil
}

// AllTracks retrieves the whole library ordered for display.
func (r *mysqlTrackRepository) AllTracks(ctx context.Context) ([]model.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks ORDER BY artist, album, sort_order, title`
	return r.queryTracks(ctx, query)
}

// TracksByAlbum retrieves an album's tracks in playback order.
func (r *mysqlTrackRepository) TracksByAlbum(ctx context.Context, album string) ([]model.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE album = ? ORDER BY sort_order, title`
	return r.queryTracks(ctx, query, album)
}

// TracksByArtist retrieves an artist's tracks in playback order.
func (r *mysqlTrackRepository) TracksByArtist(ctx context.Context, artist string) ([]model.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE artist = ? ORDER BY album, sort_order, title`
	return r.queryTracks(ctx, query, artist)
}

// AudiobookTracks retrieves an audiobook's chapters in listening order. An
// audiobook is an album whose tracks carry the audiobook kind.
func (r *mysqlTrackRepository) AudiobookTracks(ctx context.Context, album string) ([]model.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE album = ? AND kind = ? ORDER BY sort_order, title`
	return r.queryTracks(ctx, query, album, model.TrackKindAudiobook)
}

// PlaylistTracks retrieves a stored playlist's tracks in position order.
func (r *mysqlTrackRepository) PlaylistTracks(ctx context.Context, playlistID int64) ([]model.Track, error) {
	query := `SELECT t.id, t.title, t.artist, t.album, t.kind, t.type, t.location, t.duration, t.sort_order, t.created_at, t.updated_at
	           FROM tracks t
	           JOIN playlist_tracks pt ON pt.track_id = t.id
	           WHERE pt.playlist_id = ?
	           ORDER BY pt.position`
	return r.queryTracks(ctx, query, playlistID)
}

// DeleteTrack removes a track from the library.
func (r *mysqlTrackRepository) DeleteTrack(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM playlist_tracks WHERE track_id = ?`, id); err != nil {
		return fmt.Errorf("failed to remove track %d from playlists: %w", id, err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM tracks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete track %d: %w", id, err)
	}
	return nil
}

func (r *mysqlTrackRepository) queryTracks(ctx context.Context, query string, args ...interface{}) ([]model.Track, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []model.Track
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan track row: %w", err)
		}
		tracks = append(tracks, *track)
	}
	return tracks, rows.Err()
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTrack(row rowScanner) (*model.Track, error) {
	track := &model.Track{}
	err := row.Scan(&track.ID, &track.Title, &track.Artist, &track.Album,
		&track.Kind, &track.Type, &track.Location, &track.Duration,
		&track.SortOrder, &track.CreatedAt, &track.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return track, nil
}
