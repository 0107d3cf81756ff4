package playback

import (
	"fmt"
	"os/exec"
	"runtime"
	"strconv"

	"taptunes/logger"
)

// CommandRunner executes a system command. Swappable for tests.
type CommandRunner func(name string, args ...string) error

func execRunner(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

// VolumeController sets the system output volume through platform tools.
// Mixer control names vary across sound-card hardware, so on Linux it walks
// an ordered candidate list and the first command that succeeds wins.
// Callers must never treat a volume failure as a playback failure.
type VolumeController struct {
	goos string
	run  CommandRunner
}

// NewVolumeController creates a controller for the current platform.
func NewVolumeController() *VolumeController {
	return &VolumeController{goos: runtime.GOOS, run: execRunner}
}

// candidates returns the volume commands for percent in priority order.
func (v *VolumeController) candidates(percent int) [][]string {
	pct := strconv.Itoa(percent)
	switch v.goos {
	case "linux":
		return [][]string{
			{"amixer", "set", "Master", pct + "%"},
			{"amixer", "-c", "0", "set", "PCM", pct + "%"},
			{"amixer", "-c", "0", "set", "Headphone", pct + "%"},
			{"amixer", "-c", "1", "set", "PCM", pct + "%"},
		}
	case "darwin":
		return [][]string{
			{"osascript", "-e", fmt.Sprintf("set volume output volume %d", percent)},
		}
	default:
		return nil
	}
}

// Set applies percent [0,100] to the system mixer. It returns an error only
// when every candidate command failed; the engine logs and swallows it.
func (v *VolumeController) Set(percent int) error {
	cands := v.candidates(percent)
	if len(cands) == 0 {
		return fmt.Errorf("system volume control not supported on %s", v.goos)
	}

	var lastErr error
	for _, c := range cands {
		if err := v.run(c[0], c[1:]...); err != nil {
			lastErr = err
			logger.Debug("volume command failed, trying next",
				logger.String("command", c[0]),
				logger.ErrorField(err))
			continue
		}
		return nil
	}
	return fmt.Errorf("all volume commands failed: %w", lastErr)
}
