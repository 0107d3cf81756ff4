package server

import (
	"testing"

	"taptunes/config"
	"taptunes/core/playback"
	"taptunes/model"
)

func TestStartupVolumeMode(t *testing.T) {
	cfg := &config.Config{DefaultVolume: 70, DefaultMode: "browser"}

	cases := []struct {
		name       string
		settings   *model.Settings
		snapshot   *playback.Status
		wantVolume int
		wantMode   playback.Mode
	}{
		{
			name:       "first boot falls back to config defaults",
			wantVolume: 70,
			wantMode:   playback.ModeBrowser,
		},
		{
			name:       "settings rows win over defaults",
			settings:   &model.Settings{Volume: 40, PlaybackMode: "hardware"},
			wantVolume: 40,
			wantMode:   playback.ModeHardware,
		},
		{
			// A fresh database serves default-valued settings; the
			// snapshot must still be consulted.
			name:       "snapshot wins over default-valued settings",
			settings:   &model.Settings{Volume: 70, PlaybackMode: "browser"},
			snapshot:   &playback.Status{Volume: 25, PlaybackMode: playback.ModeHardware},
			wantVolume: 25,
			wantMode:   playback.ModeHardware,
		},
		{
			name:       "snapshot wins over explicit settings",
			settings:   &model.Settings{Volume: 40, PlaybackMode: "hardware"},
			snapshot:   &playback.Status{Volume: 90, PlaybackMode: playback.ModeBrowser},
			wantVolume: 90,
			wantMode:   playback.ModeBrowser,
		},
		{
			name:       "corrupt snapshot values are ignored",
			settings:   &model.Settings{Volume: 40, PlaybackMode: "hardware"},
			snapshot:   &playback.Status{Volume: 500, PlaybackMode: playback.Mode("tape")},
			wantVolume: 40,
			wantMode:   playback.ModeHardware,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			volume, mode := startupVolumeMode(cfg, c.settings, c.snapshot)
			if volume != c.wantVolume || mode != c.wantMode {
				t.Errorf("startupVolumeMode = (%d, %s), want (%d, %s)",
					volume, mode, c.wantVolume, c.wantMode)
			}
		})
	}
}
