package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"taptunes/model"
)

// Setting names in the settings table.
const (
	settingSameCardBehavior = "same_card_behavior"
	settingVolume           = "volume"
	settingPlaybackMode     = "playback_mode"
)

// SettingsRepository exposes the user-tunable runtime settings.
type SettingsRepository interface {
	Load(ctx context.Context) (*model.Settings, error)
	SameCardBehavior(ctx context.Context) (string, error)
	SetSameCardBehavior(ctx context.Context, behavior string) error
	SetVolume(ctx context.Context, volume int) error
	SetPlaybackMode(ctx context.Context, mode string) error
}

// mysqlSettingsRepository implements SettingsRepository over a key/value
// settings table.
type mysqlSettingsRepository struct {
	db *sql.DB
}

// NewMySQLSettingsRepository creates a settings repository.
func NewMySQLSettingsRepository(db *sql.DB) SettingsRepository {
	return &mysqlSettingsRepository{db: db}
}

// Load returns all settings with defaults filled in for unset values.
func (r *mysqlSettingsRepository) Load(ctx context.Context) (*model.Settings, error) {
	behavior, err := r.get(ctx, settingSameCardBehavior, model.SameCardNothing)
	if err != nil {
		return nil, err
	}
	volumeStr, err := r.get(ctx, settingVolume, "70")
	if err != nil {
		return nil, err
	}
	mode, err := r.get(ctx, settingPlaybackMode, "browser")
	if err != nil {
		return nil, err
	}

	volume, err := strconv.Atoi(volumeStr)
	if err != nil {
		volume = 70
	}

	return &model.Settings{
		SameCardBehavior: behavior,
		Volume:           volume,
		PlaybackMode:     mode,
	}, nil
}

// SameCardBehavior returns the configured same-card re-tap behavior.
func (r *mysqlSettingsRepository) SameCardBehavior(ctx context.Context) (string, error) {
	return r.get(ctx, settingSameCardBehavior, model.SameCardNothing)
}

// SetSameCardBehavior stores the same-card re-tap behavior.
func (r *mysqlSettingsRepository) SetSameCardBehavior(ctx context.Context, behavior string) error {
	if !model.ValidSameCardBehavior(behavior) {
		return fmt.Errorf("unknown same-card behavior %q", behavior)
	}
	return r.set(ctx, settingSameCardBehavior, behavior)
}

// SetVolume stores the last applied volume for restore on restart.
func (r *mysqlSettingsRepository) SetVolume(ctx context.Context, volume int) error {
	return r.set(ctx, settingVolume, strconv.Itoa(volume))
}

// SetPlaybackMode stores the last selected playback mode.
func (r *mysqlSettingsRepository) SetPlaybackMode(ctx context.Context, mode string) error {
	return r.set(ctx, settingPlaybackMode, mode)
}

func (r *mysqlSettingsRepository) get(ctx context.Context, name, fallback string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE name = ?`, name).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return fallback, nil
		}
		return "", fmt.Errorf("failed to read setting %s: %w", name, err)
	}
	return value, nil
}

func (r *mysqlSettingsRepository) set(ctx context.Context, name, value string) error {
	query := `INSERT INTO settings (name, value) VALUES (?, ?)
	           ON DUPLICATE KEY UPDATE value = VALUES(value)`
	if _, err := r.db.ExecContext(ctx, query, name, value); err != nil {
		return fmt.Errorf("failed to store setting %s: %w", name, err)
	}
	return nil
}
